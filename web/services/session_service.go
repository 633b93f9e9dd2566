// Package services holds the admin panel's web-facing services.
package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	SessionCookieName = "smartvendo_admin"
	sessionLifetime   = 24 * time.Hour
)

// AdminSession is the signed payload stored in the admin cookie.
type AdminSession struct {
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionService issues and validates HMAC-signed admin sessions. There is
// one admin identity, configured statically, so no session store is needed.
type SessionService struct {
	secret        []byte
	adminEmail    string
	adminPassword string
	secureCookies bool
}

func NewSessionService(secret, adminEmail, adminPassword string, secureCookies bool) *SessionService {
	return &SessionService{
		secret:        []byte(secret),
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
		secureCookies: secureCookies,
	}
}

// Authenticate checks the configured admin credentials.
func (s *SessionService) Authenticate(email, password string) bool {
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.adminEmail)) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword)) == 1
	return emailOK && passwordOK
}

// CreateSession issues a signed session cookie for the admin.
func (s *SessionService) CreateSession(c *fiber.Ctx, email string) error {
	now := time.Now()
	session := AdminSession{
		Email:     email,
		IssuedAt:  now,
		ExpiresAt: now.Add(sessionLifetime),
	}

	sessionData, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	signed, err := s.signData(sessionData)
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     SessionCookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(sessionLifetime / time.Second),
		Secure:   s.secureCookies,
		HTTPOnly: true,
		SameSite: "Lax",
	})

	slog.Info("Admin session created",
		slog.String("type", "sys"),
		slog.String("email", email))

	return nil
}

// GetSession retrieves and validates the admin session from the request.
func (s *SessionService) GetSession(c *fiber.Ctx) (*AdminSession, error) {
	cookie := c.Cookies(SessionCookieName)
	if cookie == "" {
		return nil, fmt.Errorf("no session cookie found")
	}

	sessionData, err := s.verifyAndDecodeData(cookie)
	if err != nil {
		return nil, fmt.Errorf("invalid session signature: %w", err)
	}

	var session AdminSession
	if err := json.Unmarshal(sessionData, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		s.DestroySession(c)
		return nil, fmt.Errorf("session expired")
	}

	return &session, nil
}

// DestroySession removes the session cookie.
func (s *SessionService) DestroySession(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   s.secureCookies,
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

// signData signs data using HMAC-SHA256
func (s *SessionService) signData(data []byte) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("session secret not configured")
	}

	h := hmac.New(sha256.New, s.secret)
	h.Write(data)
	signature := h.Sum(nil)

	combined := append(data, signature...)
	return base64.URLEncoding.EncodeToString(combined), nil
}

// verifyAndDecodeData verifies the signature and returns the original data
func (s *SessionService) verifyAndDecodeData(encoded string) ([]byte, error) {
	if len(s.secret) == 0 {
		return nil, fmt.Errorf("session secret not configured")
	}

	combined, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}

	if len(combined) < sha256.Size {
		return nil, fmt.Errorf("invalid data length")
	}

	data := combined[:len(combined)-sha256.Size]
	receivedSignature := combined[len(combined)-sha256.Size:]

	h := hmac.New(sha256.New, s.secret)
	h.Write(data)
	expectedSignature := h.Sum(nil)

	if !hmac.Equal(receivedSignature, expectedSignature) {
		return nil, fmt.Errorf("signature verification failed")
	}

	return data, nil
}
