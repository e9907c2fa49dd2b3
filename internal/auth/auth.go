package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"lokapos/agent/internal/domain"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type agentClaims struct {
	jwtlib.RegisteredClaims
	OwnerID string `json:"owner_id"`
}

// Manager holds the single device session of this terminal. It issues and
// parses the bearer tokens of the localhost API and acts as the sync engine's
// owner provider: CurrentOwnerID returns "" until a login succeeds and again
// after Logout, which makes the sync engine abort with its auth error.
type Manager struct {
	secret       []byte
	tokenTTL     time.Duration
	ownerID      string
	passwordHash string

	mu            sync.RWMutex
	authenticated bool
}

func NewManager(secret string, tokenTTL time.Duration, ownerID, password string) (*Manager, error) {
	if len(secret) < 32 {
		return nil, errors.New("auth secret must be at least 32 characters")
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, errors.New("owner id must be configured")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	return &Manager{
		secret:       []byte(secret),
		tokenTTL:     tokenTTL,
		ownerID:      ownerID,
		passwordHash: string(hash),
	}, nil
}

func (m *Manager) Login(req domain.LoginRequest) (domain.LoginResponse, error) {
	device := strings.TrimSpace(req.Device)
	if device == "" {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(m.passwordHash), []byte(req.Password)) != nil {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}

	expiresAt := time.Now().UTC().Add(m.tokenTTL)
	token, err := m.sign(device, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	m.mu.Lock()
	m.authenticated = true
	m.mu.Unlock()

	return domain.LoginResponse{
		AccessToken: token,
		OwnerID:     m.ownerID,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (m *Manager) Logout() {
	m.mu.Lock()
	m.authenticated = false
	m.mu.Unlock()
}

// CurrentOwnerID implements syncengine.OwnerProvider.
func (m *Manager) CurrentOwnerID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.authenticated {
		return ""
	}
	return m.ownerID
}

func (m *Manager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &agentClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{Device: sub, OwnerID: claims.OwnerID}, nil
}

func (m *Manager) sign(device string, expiresAt time.Time) (string, error) {
	claims := agentClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   device,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "lokapos-agent",
		},
		OwnerID: m.ownerID,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}
