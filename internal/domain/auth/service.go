package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/taberna/internal/kv"
)

const (
	msgInvalidCredentials = "Credenciales inválidas. Por favor, intente de nuevo."
	msgTooManyAttempts    = "Demasiados intentos. Por favor, espera unos minutos e inténtalo de nuevo."
	msgLoginFailed        = "Ocurrió un error al iniciar sesión. Por favor, intente de nuevo."
	msgEmailTaken         = "Este email ya está registrado"
	msgUsernameTaken      = "Este nombre de usuario ya está en uso"
	msgRegisterFailed     = "Error al registrar usuario. Por favor, inténtalo de nuevo"
)

// Service runs the login, registration and logout flows.
type Service struct {
	provider Provider
	store    kv.Store
	ttl      time.Duration
	now      func() time.Time
}

// NewService creates a Service. Sessions are kept for ttl; zero keeps them
// until logout.
func NewService(provider Provider, store kv.Store, ttl time.Duration) *Service {
	return &Service{
		provider: provider,
		store:    store,
		ttl:      ttl,
		now:      time.Now,
	}
}

// SessionKey returns the storage key of a session id.
func SessionKey(sessionID string) string {
	return "session:" + sessionID
}

// Login validates the form, authenticates against the provider and stores
// the session under sessionID.
func (s *Service) Login(ctx context.Context, sessionID string, req LoginRequest) (*Session, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sess, err := s.provider.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, mapLoginError(err)
	}

	if err := s.save(ctx, sessionID, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Register validates the form, creates the account, stores the session and
// saves the optional phone number. A failed phone update is logged only: the
// account already exists.
func (s *Service) Register(ctx context.Context, sessionID string, req RegisterRequest) (*Session, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sess, err := s.provider.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return nil, mapRegisterError(err)
	}

	if req.Phone != "" && sess.Token != "" {
		if err := s.provider.UpdatePhone(ctx, sess.Token, sess.User.ID, req.Phone); err != nil {
			zctx.From(ctx).Warn("Save phone after registration",
				zap.Int("user_id", sess.User.ID),
				zap.Error(err),
			)
		} else {
			sess.User.Phone = req.Phone
		}
	}

	if err := s.save(ctx, sessionID, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Current returns the session stored under sessionID.
func (s *Service) Current(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	raw, err := s.store.Get(ctx, SessionKey(sessionID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, errors.Wrap(err, "load session")
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil || sess.Token == "" {
		zctx.From(ctx).Warn("Discarding malformed session", zap.Error(err))
		return nil, ErrNoSession
	}
	return &sess, nil
}

// Logout forgets the session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.store.Delete(ctx, SessionKey(sessionID)); err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}

func (s *Service) save(ctx context.Context, sessionID string, sess *Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now().UTC()
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	if err := s.store.Set(ctx, SessionKey(sessionID), raw, s.ttl); err != nil {
		return errors.Wrap(err, "save session")
	}
	return nil
}

func mapLoginError(err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Status {
		case http.StatusBadRequest:
			return &Error{Status: pe.Status, Message: msgInvalidCredentials, Err: err}
		case http.StatusTooManyRequests:
			return &Error{Status: pe.Status, Message: msgTooManyAttempts, Err: err}
		}
		return &Error{Status: pe.Status, Message: msgLoginFailed, Err: err}
	}
	return &Error{Message: msgLoginFailed, Err: err}
}

func mapRegisterError(err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Status {
		case http.StatusBadRequest:
			switch {
			case strings.Contains(pe.Message, "Email already taken"):
				return &Error{Status: pe.Status, Message: msgEmailTaken, Err: err}
			case strings.Contains(pe.Message, "Username already taken"):
				return &Error{Status: pe.Status, Message: msgUsernameTaken, Err: err}
			case pe.Message != "":
				return &Error{Status: pe.Status, Message: pe.Message, Err: err}
			}
			return &Error{Status: pe.Status, Message: msgRegisterFailed, Err: err}
		case http.StatusTooManyRequests:
			return &Error{Status: pe.Status, Message: msgTooManyAttempts, Err: err}
		}
		return &Error{Status: pe.Status, Message: msgRegisterFailed, Err: err}
	}
	return &Error{Message: msgRegisterFailed, Err: err}
}
