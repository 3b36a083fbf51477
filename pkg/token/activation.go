package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMalformed is returned for tokens that do not parse.
	ErrMalformed = errors.New("malformed token")
	// ErrSignature is returned when the signature does not match the subject state.
	ErrSignature = errors.New("invalid token signature")
	// ErrExpired is returned once the embedded expiry has passed.
	ErrExpired = errors.New("token expired")
)

// Signer issues HMAC-SHA256 tokens bound to a subject and its current state.
// Changing the state (for instance confirming the e-mail) invalidates every
// token issued before the change.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner builds a signer; a non-positive ttl defaults to 72 hours.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// TTL returns the lifetime of generated tokens.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Generate returns a token of the form <expiry-unix>.<hex-signature>.
func (s *Signer) Generate(subject, state string, now time.Time) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("subject required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := now.Add(s.ttl).Truncate(time.Second)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	return ts + "." + s.sign(subject, state, ts), expiresAt, nil
}

// Verify checks token against subject and state at instant now.
func (s *Signer) Verify(token, subject, state string, now time.Time) error {
	ts, signature, ok := strings.Cut(token, ".")
	if !ok || ts == "" || signature == "" {
		return ErrMalformed
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrMalformed
	}
	expected := s.sign(subject, state, ts)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignature
	}
	if now.After(time.Unix(expUnix, 0)) {
		return ErrExpired
	}
	return nil
}

func (s *Signer) sign(subject, state, ts string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(subject + "|" + state + "|" + ts))
	return hex.EncodeToString(mac.Sum(nil))
}
