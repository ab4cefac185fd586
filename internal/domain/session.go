package domain

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"
	"regexp"
	"strings"
	"time"
)

const (
	// MaxContentLength is the hard cap on plaintext clipboard size, enforced
	// after sanitization.
	MaxContentLength = 1000

	// SessionTTL is the expiry window. Any write resets it, so an active
	// session stays alive indefinitely; an untouched one vanishes with its key.
	SessionTTL = 24 * time.Hour

	secretKeyBytes = 32

	codeMin  = 100000
	codeSpan = 900000
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidCode        = errors.New("invalid device code")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrCodeSpaceExhausted = errors.New("device code space exhausted")
	ErrInvalidInput       = errors.New("invalid input")

	codePattern = regexp.MustCompile(`^\d{6}$`)
	codeSpanBig = big.NewInt(codeSpan)

	// Characters stripped from clipboard text before storage.
	unsafeChars = strings.NewReplacer("<", "", ">", "", "'", "", `"`, "", "&", "")
)

// Session is the single persisted entity: one code-addressed clipboard value.
// Content holds ciphertext only; plaintext never reaches the store.
type Session struct {
	Code         string    `json:"code"`
	SecretKey    string    `json:"secretKey"`
	Content      string    `json:"content"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// SessionStore is the sole source of truth for clipboard state. Put is an
// upsert that resets the TTL countdown.
type SessionStore interface {
	Exists(ctx context.Context, code string) (bool, error)
	Get(ctx context.Context, code string) (*Session, error)
	Put(ctx context.Context, session *Session, ttl time.Duration) error
}

// NewSession creates a session with a fresh secret key and empty content.
// Code and key are set together; the record is stored in a single Put.
func NewSession(code string) (*Session, error) {
	if !ValidCode(code) {
		return nil, ErrInvalidCode
	}

	key, err := generateSecretKey()
	if err != nil {
		return nil, err
	}

	return &Session{
		Code:         code,
		SecretKey:    key,
		Content:      "",
		LastActiveAt: time.Now().UTC(),
	}, nil
}

// Touch refreshes the activity timestamp. Callers persist via Put, which also
// renews the TTL.
func (s *Session) Touch() {
	s.LastActiveAt = time.Now().UTC()
}

// ValidCode reports whether code is exactly six digits.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// GenerateCode draws a uniformly random 6-digit code (100000-999999).
// Uniqueness against live sessions is the allocator's job.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpanBig)
	if err != nil {
		return "", err
	}
	return big.NewInt(codeMin + n.Int64()).String(), nil
}

// SanitizeContent strips the characters `< > ' " &`, trims surrounding
// whitespace and hard-truncates to MaxContentLength runes.
func SanitizeContent(text string) string {
	cleaned := strings.TrimSpace(unsafeChars.Replace(text))
	if runes := []rune(cleaned); len(runes) > MaxContentLength {
		return string(runes[:MaxContentLength])
	}
	return cleaned
}

func generateSecretKey() (string, error) {
	b := make([]byte, secretKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
