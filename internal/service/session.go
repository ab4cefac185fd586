package service

import (
	"context"
	"errors"
	"time"

	"github.com/devclip/clipsync/internal/domain"
	"github.com/devclip/clipsync/internal/infrastructure/cipher"
	"go.uber.org/zap"
)

// SessionService orchestrates session creation, joins and clipboard
// mutations. It is the only writer to the session store; the realtime layer
// delegates every mutation here so HTTP and websocket paths share semantics.
type SessionService struct {
	store     domain.SessionStore
	cipher    cipher.Cipher
	allocator *CodeAllocator
	ttl       time.Duration
	logger    *zap.SugaredLogger
}

type ConnectResult struct {
	Code      string
	SecretKey string
	IsNew     bool
}

func NewSessionService(
	store domain.SessionStore,
	c cipher.Cipher,
	ttl time.Duration,
	logger *zap.SugaredLogger,
) *SessionService {
	if ttl <= 0 {
		ttl = domain.SessionTTL
	}

	return &SessionService{
		store:     store,
		cipher:    c,
		allocator: NewCodeAllocator(store),
		ttl:       ttl,
		logger:    logger,
	}
}

// Connect creates a session when requestedCode is empty, otherwise joins the
// existing one and refreshes its activity timestamp. The stored secret key is
// returned in both cases; it is generated exactly once per session.
func (s *SessionService) Connect(ctx context.Context, requestedCode string) (*ConnectResult, error) {
	if requestedCode == "" {
		return s.create(ctx)
	}

	if !domain.ValidCode(requestedCode) {
		return nil, domain.ErrInvalidCode
	}

	session, err := s.store.Get(ctx, requestedCode)
	if err != nil {
		return nil, err
	}

	session.Touch()
	if err := s.store.Put(ctx, session, s.ttl); err != nil {
		return nil, err
	}

	return &ConnectResult{
		Code:      session.Code,
		SecretKey: session.SecretKey,
		IsNew:     false,
	}, nil
}

func (s *SessionService) create(ctx context.Context) (*ConnectResult, error) {
	code, err := s.allocator.Allocate(ctx)
	if err != nil {
		return nil, err
	}

	session, err := domain.NewSession(code)
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, session, s.ttl); err != nil {
		return nil, err
	}

	s.logger.Infow("session created", "code", session.Code)

	return &ConnectResult{
		Code:      session.Code,
		SecretKey: session.SecretKey,
		IsNew:     true,
	}, nil
}

// Read returns the decrypted clipboard text and the last activity timestamp.
// Empty content and undecryptable content both read as "".
func (s *SessionService) Read(ctx context.Context, code string) (string, time.Time, error) {
	if !domain.ValidCode(code) {
		return "", time.Time{}, domain.ErrInvalidCode
	}

	session, err := s.store.Get(ctx, code)
	if err != nil {
		return "", time.Time{}, err
	}

	return s.decrypt(session), session.LastActiveAt, nil
}

// Authorize resolves a session for the realtime join. A wrong key and an
// unknown code both come back as ErrUnauthorized so a caller without the key
// cannot probe which codes exist.
func (s *SessionService) Authorize(ctx context.Context, code, secretKey string) (*domain.Session, error) {
	if !domain.ValidCode(code) {
		return nil, domain.ErrInvalidCode
	}

	session, err := s.store.Get(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}

	if session.SecretKey != secretKey {
		return nil, domain.ErrUnauthorized
	}

	return session, nil
}

// Update sanitizes, encrypts and stores new clipboard text, returning the
// sanitized plaintext and timestamp for the broadcaster. Concurrent updates
// to the same code are last-write-wins on the store key.
func (s *SessionService) Update(ctx context.Context, code, secretKey, text string) (string, time.Time, error) {
	session, err := s.Authorize(ctx, code, secretKey)
	if err != nil {
		return "", time.Time{}, err
	}

	sanitized := domain.SanitizeContent(text)

	encrypted := ""
	if sanitized != "" {
		encrypted, err = s.cipher.Encrypt(sanitized, session.SecretKey)
		if err != nil {
			return "", time.Time{}, err
		}
	}

	session.Content = encrypted
	session.Touch()
	if err := s.store.Put(ctx, session, s.ttl); err != nil {
		return "", time.Time{}, err
	}

	return sanitized, session.LastActiveAt, nil
}

// Clear empties the clipboard and returns the mutation timestamp.
func (s *SessionService) Clear(ctx context.Context, code, secretKey string) (time.Time, error) {
	session, err := s.Authorize(ctx, code, secretKey)
	if err != nil {
		return time.Time{}, err
	}

	session.Content = ""
	session.Touch()
	if err := s.store.Put(ctx, session, s.ttl); err != nil {
		return time.Time{}, err
	}

	return session.LastActiveAt, nil
}

// CurrentText decrypts a session's content for delivery to a freshly joined
// connection.
func (s *SessionService) CurrentText(session *domain.Session) string {
	return s.decrypt(session)
}

func (s *SessionService) decrypt(session *domain.Session) string {
	if session.Content == "" {
		return ""
	}

	text, err := s.cipher.Decrypt(session.Content, session.SecretKey)
	if err != nil {
		// Corrupted blob or key mismatch degrades to an empty clipboard; the
		// caller never sees a decrypt error.
		s.logger.Errorw("failed to decrypt clipboard", "code", session.Code, "error", err)
		return ""
	}

	return text
}
