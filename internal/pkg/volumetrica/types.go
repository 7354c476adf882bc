package volumetrica

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// FlexString accepts either a JSON string or a JSON number. The platform is
// not consistent about how it serializes identifiers.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		*f = ""
		return nil
	}
	if s[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(v))
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("expected string or number, got %s", s)
	}
	*f = FlexString(s)
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// Ptr returns nil for empty values, which maps to NULL columns.
func (f FlexString) Ptr() *string {
	if f == "" {
		return nil
	}
	s := string(f)
	return &s
}

// Account is a trading account as delivered by webhooks and the REST API.
type Account struct {
	AccountID         FlexString      `json:"accountId"`
	UserID            FlexString      `json:"userId"`
	Status            any             `json:"status"`
	TradingPermission any             `json:"tradingPermission"`
	Enabled           *bool           `json:"enabled"`
	Reason            string          `json:"reason"`
	EndDate           string          `json:"endDate"`
	RuleID            FlexString      `json:"ruleId"`
	RuleName          string          `json:"ruleName"`
	AccountFamilyID   FlexString      `json:"accountFamilyId"`
	OwnerUserID       FlexString      `json:"ownerOrganizationUserId"`
	Snapshot          json.RawMessage `json:"snapshot"`

	Raw json.RawMessage `json:"-"`
}

// Subscription is a platform or data-feed subscription.
type Subscription struct {
	SubscriptionID FlexString      `json:"subscriptionId"`
	UserID         FlexString      `json:"userId"`
	AccountID      FlexString      `json:"accountId"`
	Status         any             `json:"status"`
	ActivationDate string          `json:"activationDate"`
	ExpirationDate string          `json:"expirationDate"`
	DataFeeds      json.RawMessage `json:"dataFeeds"`
	Platform       any             `json:"platform"`
	LicenseKey     string          `json:"licenseKey"`
	DownloadURL    string          `json:"downloadUrl"`

	Raw json.RawMessage `json:"-"`
}

// Position is an open position line.
type Position struct {
	PositionID FlexString          `json:"positionId"`
	AccountID  FlexString          `json:"accountId"`
	ContractID FlexString          `json:"contractId"`
	Symbol     string              `json:"symbol"`
	EntryDate  string              `json:"entryDate"`
	Price      decimal.NullDecimal `json:"price"`
	Quantity   decimal.NullDecimal `json:"quantity"`
	DailyPL    decimal.NullDecimal `json:"dailyPl"`
	OpenPL     decimal.NullDecimal `json:"openPl"`

	Raw json.RawMessage `json:"-"`
}

// Trade is a closed trade report line.
type Trade struct {
	TradeID        FlexString          `json:"tradeId"`
	AccountID      FlexString          `json:"accountId"`
	ContractID     FlexString          `json:"contractId"`
	Symbol         string              `json:"symbol"`
	EntryDate      string              `json:"entryDate"`
	ExitDate       string              `json:"exitDate"`
	Quantity       decimal.NullDecimal `json:"quantity"`
	OpenPrice      decimal.NullDecimal `json:"openPrice"`
	ClosePrice     decimal.NullDecimal `json:"closePrice"`
	PL             decimal.NullDecimal `json:"pl"`
	ConvertedPL    decimal.NullDecimal `json:"convertedPl"`
	CommissionPaid decimal.NullDecimal `json:"commissionPaid"`

	Raw json.RawMessage `json:"-"`
}

// User is an organization user on the platform.
type User struct {
	UserID     FlexString `json:"userId"`
	ExternalID FlexString `json:"externalId"`
	Email      string     `json:"email"`
	FirstName  string     `json:"firstName"`
	LastName   string     `json:"lastName"`
	Status     any        `json:"status"`
	InviteURL  string     `json:"inviteUrl"`

	Raw json.RawMessage `json:"-"`
}

// DecodeAccount decodes one account object and keeps its raw bytes.
func DecodeAccount(raw []byte) (*Account, error) {
	var a Account
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	a.Raw = append(json.RawMessage(nil), raw...)
	return &a, nil
}

// DecodeSubscription decodes one subscription object and keeps its raw bytes.
func DecodeSubscription(raw []byte) (*Subscription, error) {
	var s Subscription
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	s.Raw = append(json.RawMessage(nil), raw...)
	return &s, nil
}

// DecodePosition decodes one position object and keeps its raw bytes.
func DecodePosition(raw []byte) (*Position, error) {
	var p Position
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	p.Raw = append(json.RawMessage(nil), raw...)
	return &p, nil
}

// DecodeTrade decodes one trade object and keeps its raw bytes.
func DecodeTrade(raw []byte) (*Trade, error) {
	var t Trade
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	t.Raw = append(json.RawMessage(nil), raw...)
	return &t, nil
}

// DecodeUser decodes one user object and keeps its raw bytes.
func DecodeUser(raw []byte) (*User, error) {
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, err
	}
	u.Raw = append(json.RawMessage(nil), raw...)
	return &u, nil
}

// CreateUserRequest registers a new organization user.
type CreateUserRequest struct {
	ExternalID string `json:"externalId"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	SendInvite bool   `json:"sendInvite"`
}

// UpdateUserRequest updates profile fields of an organization user.
type UpdateUserRequest struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// AccountStatusRequest changes an account lifecycle status.
type AccountStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// SubscriptionRequest creates or updates a subscription.
type SubscriptionRequest struct {
	UserID         string   `json:"userId,omitempty"`
	AccountID      string   `json:"accountId,omitempty"`
	Platform       string   `json:"platform,omitempty"`
	DataFeeds      []string `json:"dataFeeds,omitempty"`
	ExpirationDate string   `json:"expirationDate,omitempty"`
}
