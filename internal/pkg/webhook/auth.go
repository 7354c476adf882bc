package webhook

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/ManuelReschke/PropSync/internal/pkg/config"
)

// Auth failure codes reported in AuthResult.Error.
const (
	AuthErrMissingSecretHeader        = "missing_secret_header"
	AuthErrSecretNotConfigured        = "secret_not_configured"
	AuthErrSecretMismatch             = "secret_mismatch"
	AuthErrMissingSignature           = "missing_signature"
	AuthErrSigningSecretNotConfigured = "signing_secret_not_configured"
	AuthErrSignatureMalformed         = "signature_malformed"
	AuthErrSignatureMismatch          = "signature_mismatch"
	AuthErrUnsupportedAlgorithm       = "unsupported_algorithm"
	AuthErrUnsupportedMode            = "unsupported_auth_mode"
)

// AuthConfig selects and parameterizes one of the two auth schemes.
type AuthConfig struct {
	Mode          string
	SecretHeader  string
	Secret        string
	HMACHeader    string
	HMACAlgorithm string
	HMACEncoding  string
	HMACSecret    string
}

// AuthConfigFrom maps the webhook section of the app config.
func AuthConfigFrom(cfg config.WebhookConfig) AuthConfig {
	return AuthConfig{
		Mode:          cfg.AuthMode,
		SecretHeader:  cfg.SecretHeader,
		Secret:        cfg.Secret,
		HMACHeader:    cfg.HMACHeader,
		HMACAlgorithm: cfg.HMACAlgorithm,
		HMACEncoding:  cfg.HMACEncoding,
		HMACSecret:    cfg.HMACSecret,
	}
}

// AuthResult is the outcome of Verify. Signature holds the received HMAC
// header with any algorithm prefix removed; it is empty in secret mode.
type AuthResult struct {
	Mode      string
	Valid     bool
	Signature string
	Error     string
}

type Authenticator struct {
	cfg AuthConfig
}

func NewAuthenticator(cfg AuthConfig) *Authenticator {
	return &Authenticator{cfg: cfg}
}

// Mode returns the configured scheme.
func (a *Authenticator) Mode() string {
	return a.cfg.Mode
}

// ExpectedHeader returns the header name the active scheme reads.
func (a *Authenticator) ExpectedHeader() string {
	if a.cfg.Mode == config.AuthModeHMAC {
		return a.cfg.HMACHeader
	}
	return a.cfg.SecretHeader
}

// Verify authenticates a delivery. header looks up a request header by name
// and rawBody must be the body exactly as received.
func (a *Authenticator) Verify(header func(string) string, rawBody []byte) AuthResult {
	switch a.cfg.Mode {
	case config.AuthModeSecret:
		return a.verifySecret(header)
	case config.AuthModeHMAC:
		return a.verifyHMAC(header, rawBody)
	default:
		return AuthResult{Mode: a.cfg.Mode, Error: AuthErrUnsupportedMode}
	}
}

func (a *Authenticator) verifySecret(header func(string) string) AuthResult {
	res := AuthResult{Mode: config.AuthModeSecret}

	received := strings.TrimSpace(header(a.cfg.SecretHeader))
	expected := strings.TrimSpace(a.cfg.Secret)
	switch {
	case expected == "":
		res.Error = AuthErrSecretNotConfigured
		return res
	case received == "":
		res.Error = AuthErrMissingSecretHeader
		return res
	}

	// Compare fixed-size digests so the length of the secret is not observable.
	rs := sha256.Sum256([]byte(received))
	es := sha256.Sum256([]byte(expected))
	if subtle.ConstantTimeCompare(rs[:], es[:]) != 1 {
		res.Error = AuthErrSecretMismatch
		return res
	}
	res.Valid = true
	return res
}

func (a *Authenticator) verifyHMAC(header func(string) string, rawBody []byte) AuthResult {
	res := AuthResult{Mode: config.AuthModeHMAC}

	algorithm := strings.ToLower(strings.TrimSpace(a.cfg.HMACAlgorithm))
	hashFunc, ok := hashFor(algorithm)
	if !ok {
		res.Error = AuthErrUnsupportedAlgorithm
		return res
	}
	secret := a.cfg.HMACSecret
	if strings.TrimSpace(secret) == "" {
		res.Error = AuthErrSigningSecretNotConfigured
		return res
	}

	sig := stripAlgorithmPrefix(strings.TrimSpace(header(a.cfg.HMACHeader)), algorithm)
	if sig == "" {
		res.Error = AuthErrMissingSignature
		return res
	}
	res.Signature = sig

	received, err := decodeSignature(sig, a.cfg.HMACEncoding)
	if err != nil {
		res.Error = AuthErrSignatureMalformed
		return res
	}

	mac := hmac.New(hashFunc, []byte(secret))
	mac.Write(rawBody)
	if !hmac.Equal(mac.Sum(nil), received) {
		res.Error = AuthErrSignatureMismatch
		return res
	}
	res.Valid = true
	return res
}

// Sign computes the encoded HMAC the provider would send for body.
func Sign(algorithm, encoding, secret string, body []byte) (string, bool) {
	hashFunc, ok := hashFor(strings.ToLower(algorithm))
	if !ok {
		return "", false
	}
	mac := hmac.New(hashFunc, []byte(secret))
	mac.Write(body)
	sum := mac.Sum(nil)
	if strings.EqualFold(encoding, "base64") {
		return base64.StdEncoding.EncodeToString(sum), true
	}
	return hex.EncodeToString(sum), true
}

func hashFor(algorithm string) (func() hash.Hash, bool) {
	switch algorithm {
	case "sha256":
		return sha256.New, true
	case "sha1":
		return sha1.New, true
	case "sha512":
		return sha512.New, true
	case "md5":
		return md5.New, true
	default:
		return nil, false
	}
}

func stripAlgorithmPrefix(sig, algorithm string) string {
	prefix, rest, found := strings.Cut(sig, "=")
	if found && strings.EqualFold(strings.TrimSpace(prefix), algorithm) {
		return strings.TrimSpace(rest)
	}
	return sig
}

func decodeSignature(sig, encoding string) ([]byte, error) {
	if strings.EqualFold(encoding, "base64") {
		if b, err := base64.StdEncoding.DecodeString(sig); err == nil {
			return b, nil
		}
		return base64.RawStdEncoding.DecodeString(strings.TrimRight(sig, "="))
	}
	return hex.DecodeString(strings.ToLower(sig))
}
