// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"time"

	"idlink/config"
	"idlink/internal/domain/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const sessionIssuer = "idlink"

// sessionService signs session cookies as HS256 JWTs.
type sessionService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionService is the constructor for sessionService.
func NewSessionService(cfg *config.Config) (service.SessionTokenService, error) {
	if cfg.Session.Secret == "" {
		return nil, errors.New("session secret must be provided")
	}

	return &sessionService{
		secret: []byte(cfg.Session.Secret),
		ttl:    cfg.Session.TTL,
		now:    time.Now,
	}, nil
}

// Issue creates a signed session token for the account.
func (s *sessionService) Issue(accountID uuid.UUID) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)

	claims := service.SessionClaims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "failed to sign session token")
	}

	return token, expiresAt, nil
}

// Parse checks the signature, issuer and expiry of a session token.
func (s *sessionService) Parse(tokenString string) (*service.SessionClaims, error) {
	claims := &service.SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}

		return s.secret, nil
	},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errors.Wrap(err, "invalid session token")
	}
	if claims.AccountID == uuid.Nil {
		return nil, errors.New("session token has no account")
	}

	return claims, nil
}
