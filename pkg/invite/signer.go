package invite

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
	ErrInvalidToken = errors.New("invalid invitation token")
	ErrExpiredToken = errors.New("invitation token expired")
)

// Signer issues and checks invitation tokens bound to classroom, role and email.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner constructs a signer. Tokens expire after ttl (default 7 days).
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a token of the form "<expiry>.<signature>".
func (s *Signer) Sign(classroomID, role, email string) (string, error) {
	if classroomID == "" || role == "" || email == "" {
		return "", fmt.Errorf("classroomID, role and email required")
	}
	if len(s.secret) == 0 {
		return "", fmt.Errorf("signing secret missing")
	}
	exp := strconv.FormatInt(s.now().Add(s.ttl).Unix(), 10)
	return exp + "." + s.signature(classroomID, role, email, exp), nil
}

// Verify checks the token against the claimed classroom, role and email.
func (s *Signer) Verify(token, classroomID, role, email string) error {
	exp, sig, ok := strings.Cut(token, ".")
	if !ok || exp == "" || sig == "" {
		return ErrInvalidToken
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return ErrInvalidToken
	}
	expected := s.signature(classroomID, role, email, exp)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrInvalidToken
	}
	if s.now().After(time.Unix(expUnix, 0)) {
		return ErrExpiredToken
	}
	return nil
}

func (s *Signer) signature(classroomID, role, email, exp string) string {
	payload := strings.Join([]string{classroomID, strings.ToUpper(role), strings.ToLower(strings.TrimSpace(email)), exp}, "|")
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
