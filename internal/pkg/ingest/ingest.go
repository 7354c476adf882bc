package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PropSync/app/models"
	"github.com/ManuelReschke/PropSync/internal/pkg/audit"
	"github.com/ManuelReschke/PropSync/internal/pkg/config"
	"github.com/ManuelReschke/PropSync/internal/pkg/ledger"
	"github.com/ManuelReschke/PropSync/internal/pkg/projection"
	"github.com/ManuelReschke/PropSync/internal/pkg/webhook"
)

// Projector applies a validated envelope.
type Projector interface {
	Apply(ctx context.Context, env webhook.Envelope, meta projection.EventMeta) projection.Result
}

// Request is one inbound delivery as seen by the transport.
type Request struct {
	Body          []byte
	Header        func(string) string
	Headers       map[string]string
	SourceIP      string
	CorrelationID string
}

// Debug explains an auth failure outside production without echoing secrets.
type Debug struct {
	AuthMode       string `json:"authMode"`
	ExpectedHeader string `json:"expectedHeader"`
	HeaderPresent  bool   `json:"headerPresent"`
}

// Response is returned to the sender as JSON; Status is the HTTP status.
type Response struct {
	Status    int      `json:"-"`
	OK        bool     `json:"ok"`
	EventID   string   `json:"eventId"`
	Error     string   `json:"error,omitempty"`
	Duplicate bool     `json:"duplicate,omitempty"`
	Updates   []string `json:"updates,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	Debug     *Debug   `json:"debug,omitempty"`

	// Err carries the failure class for callers that branch on it.
	Err error `json:"-"`
}

type Service struct {
	cfg        config.WebhookConfig
	production bool
	auth       *webhook.Authenticator
	ledger     ledger.Ledger
	projector  Projector
	audit      audit.Recorder
	now        func() time.Time
}

func NewService(cfg config.WebhookConfig, production bool, l ledger.Ledger, p Projector, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.Nop
	}
	return &Service{
		cfg:        cfg,
		production: production,
		auth:       webhook.NewAuthenticator(webhook.AuthConfigFrom(cfg)),
		ledger:     l,
		projector:  p,
		audit:      recorder,
		now:        time.Now,
	}
}

// Handle runs the full pipeline for one delivery: size and emptiness checks,
// authentication on the raw bytes, decoding, identity, ledger dedup,
// validation and projection.
func (s *Service) Handle(ctx context.Context, req Request) Response {
	receivedAt := s.now().UTC()

	if len(req.Body) > s.cfg.MaxBodyBytes {
		eventID := webhook.RawEventID(req.Body)
		s.reject(ctx, req, audit.ActionWebhookTooLarge, eventID, map[string]any{"size": len(req.Body), "limit": s.cfg.MaxBodyBytes})
		return Response{Status: http.StatusRequestEntityTooLarge, EventID: eventID, Error: "payload too large", Err: webhook.ErrPayloadTooLarge}
	}
	if len(bytes.TrimSpace(req.Body)) == 0 {
		eventID := webhook.RawEventID(req.Body)
		s.reject(ctx, req, audit.ActionWebhookRejected, eventID, map[string]any{"reason": "empty_body"})
		return Response{Status: http.StatusBadRequest, EventID: eventID, Error: "empty body", Err: webhook.ErrEmptyBody}
	}

	authResult := s.auth.Verify(req.Header, req.Body)
	if !authResult.Valid {
		eventID := webhook.RawEventID(req.Body)
		s.reject(ctx, req, audit.ActionWebhookRejected, eventID, map[string]any{"reason": "auth_failed", "authMode": authResult.Mode, "authError": authResult.Error})
		if s.production {
			return Response{Status: http.StatusUnauthorized, EventID: eventID, Error: "unauthorized", Err: webhook.ErrAuthFailure}
		}
		return Response{
			Status:  http.StatusOK,
			EventID: eventID,
			Error:   authResult.Error,
			Err:     webhook.ErrAuthFailure,
			Debug: &Debug{
				AuthMode:       s.auth.Mode(),
				ExpectedHeader: s.auth.ExpectedHeader(),
				HeaderPresent:  strings.TrimSpace(req.Header(s.auth.ExpectedHeader())) != "",
			},
		}
	}

	payload, err := webhook.DecodeJSON(req.Body)
	if err != nil {
		eventID := webhook.RawEventID(req.Body)
		s.reject(ctx, req, audit.ActionWebhookRejected, eventID, map[string]any{"reason": "invalid_json", "error": err.Error()})
		return Response{Status: http.StatusBadRequest, EventID: eventID, Error: "invalid JSON payload", Err: webhook.ErrMalformedBody}
	}

	identity := webhook.ResolveEventID(payload, s.cfg.EventIDPath)
	validation := webhook.ValidatePayload(payload)

	event := s.ledgerRow(req, payload, identity, authResult, receivedAt)
	inserted, err := s.ledger.Insert(ctx, event)
	if err != nil {
		log.Errorf("[Webhook] ledger insert for %s failed: %v", identity.EventID, err)
		s.reject(ctx, req, audit.ActionWebhookLedgerFailed, identity.EventID, map[string]any{"error": err.Error()})
		return Response{Status: http.StatusInternalServerError, EventID: identity.EventID, Error: "failed to record event", Err: fmt.Errorf("%w: %v", webhook.ErrLedgerFailure, err)}
	}
	if inserted.Duplicate {
		log.Infof("[Webhook] duplicate delivery %s ignored", identity.EventID)
		return Response{Status: http.StatusOK, OK: true, EventID: identity.EventID, Duplicate: true}
	}

	if !validation.Valid {
		s.reject(ctx, req, audit.ActionWebhookInvalid, identity.EventID, map[string]any{"errors": validation.Errors})
		return Response{Status: http.StatusOK, EventID: identity.EventID, Error: "invalid payload", Errors: validation.Errors, Err: webhook.ErrValidationFailure}
	}

	env, err := webhook.DecodeEnvelope(req.Body)
	if err != nil {
		s.reject(ctx, req, audit.ActionWebhookInvalid, identity.EventID, map[string]any{"errors": []string{err.Error()}})
		return Response{Status: http.StatusOK, EventID: identity.EventID, Error: "invalid payload", Errors: []string{err.Error()}, Err: webhook.ErrValidationFailure}
	}

	result := s.projector.Apply(ctx, env, projection.EventMeta{EventID: identity.EventID, ReceivedAt: receivedAt})
	if !result.OK() {
		log.Warnf("[Webhook] event %s projected with errors: %v", identity.EventID, result.Errors)
		s.reject(ctx, req, audit.ActionWebhookProjectionErr, identity.EventID, map[string]any{"updates": result.Updates, "errors": result.Errors})
		return Response{
			Status:  http.StatusOK,
			EventID: identity.EventID,
			Error:   strings.Join(result.Errors, "; "),
			Updates: result.Updates,
			Errors:  result.Errors,
			Err:     webhook.ErrProjectionFailure,
		}
	}

	log.Infof("[Webhook] event %s projected: %v", identity.EventID, result.Updates)
	return Response{Status: http.StatusOK, OK: true, EventID: identity.EventID, Updates: result.Updates}
}

func (s *Service) ledgerRow(req Request, payload any, identity webhook.EventIdentity, auth webhook.AuthResult, receivedAt time.Time) *models.WebhookEvent {
	obj, _ := payload.(map[string]any)

	headersJSON, err := json.Marshal(webhook.RedactHeaders(req.Headers, s.cfg.SecretHeader, s.cfg.HMACHeader))
	if err != nil {
		headersJSON = []byte("{}")
	}
	return &models.WebhookEvent{
		EventID:        identity.EventID,
		AuthMode:       auth.Mode,
		SignatureValid: auth.Valid,
		Category:       webhook.NormalizeEnumValue(obj["category"]),
		Event:          webhook.NormalizeEnumValue(obj["event"]),
		AccountID:      scalarString(obj["accountId"]),
		UserID:         scalarString(obj["userId"]),
		PayloadJSON:    string(req.Body),
		HeadersJSON:    string(headersJSON),
		CorrelationID:  req.CorrelationID,
		SourceIP:       req.SourceIP,
		ReceivedAt:     receivedAt,
	}
}

func (s *Service) reject(ctx context.Context, req Request, action, eventID string, meta map[string]any) {
	meta["eventId"] = eventID
	meta["sourceIp"] = req.SourceIP
	s.audit.Record(ctx, audit.Entry{
		Action:        action,
		TargetType:    "webhook_event",
		TargetID:      eventID,
		CorrelationID: req.CorrelationID,
		Metadata:      meta,
	})
}

func scalarString(v any) *string {
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case json.Number:
		s = t.String()
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	return &s
}

// IsClientError reports whether the failure was caused by the request.
func (r Response) IsClientError() bool {
	return errors.Is(r.Err, webhook.ErrPayloadTooLarge) ||
		errors.Is(r.Err, webhook.ErrEmptyBody) ||
		errors.Is(r.Err, webhook.ErrMalformedBody) ||
		errors.Is(r.Err, webhook.ErrAuthFailure) ||
		errors.Is(r.Err, webhook.ErrValidationFailure)
}
