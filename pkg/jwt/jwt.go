package jwt

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrRevokedToken = errors.New("token has been revoked")
	ErrEmptySecret  = errors.New("jwt secret is required")
)

// Claims identifies an overlay operator.
type Claims struct {
	jwt.RegisteredClaims
	OperatorID string   `json:"operator_id"`
	Sessions   []string `json:"sessions,omitempty"` // empty means every session
}

// CanOperate reports whether the claims grant control of sessionID.
func (c *Claims) CanOperate(sessionID string) bool {
	if len(c.Sessions) == 0 {
		return true
	}
	for _, s := range c.Sessions {
		if s == sessionID {
			return true
		}
	}
	return false
}

// Manager issues and validates HS256 operator tokens.
type Manager struct {
	secret   []byte
	duration time.Duration
	issuer   string

	// Revocations are per operator and expire with the longest token lifetime.
	revoked map[string]time.Time
	mu      sync.RWMutex
}

// NewManager creates a manager signing with secret.
func NewManager(secret string, duration time.Duration, issuer string) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Manager{
		secret:   []byte(secret),
		duration: duration,
		issuer:   issuer,
		revoked:  make(map[string]time.Time),
	}, nil
}

// GenerateToken creates a token for operatorID limited to sessions.
func (m *Manager) GenerateToken(operatorID string, sessions []string) (string, int64, error) {
	now := time.Now()
	exp := now.Add(m.duration)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   operatorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		OperatorID: operatorID,
		Sessions:   sessions,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", 0, err
	}
	return token, exp.Unix(), nil
}

// ValidateToken validates a token and returns claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.OperatorID == "" {
		return nil, ErrInvalidToken
	}

	if m.IsRevoked(claims.OperatorID) {
		return nil, ErrRevokedToken
	}

	return claims, nil
}

// RevokeOperator rejects every token issued to operatorID until they expire.
func (m *Manager) RevokeOperator(operatorID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[operatorID] = time.Now().Add(m.duration)
}

// IsRevoked checks if an operator's tokens are revoked.
func (m *Manager) IsRevoked(operatorID string) bool {
	m.mu.RLock()
	expiry, exists := m.revoked[operatorID]
	m.mu.RUnlock()
	return exists && time.Now().Before(expiry)
}

// CleanupExpiredRevocations removes expired revocation entries.
func (m *Manager) CleanupExpiredRevocations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for id, expiry := range m.revoked {
		if now.After(expiry) {
			delete(m.revoked, id)
		}
	}
}
