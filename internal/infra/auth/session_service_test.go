package auth

import (
	"testing"
	"time"

	"idlink/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(secret string) *config.Config {
	cfg := &config.Config{}
	cfg.Session.Secret = secret
	cfg.Session.TTL = time.Hour

	return cfg
}

func TestSessionService_IssueAndParse(t *testing.T) {
	svc, err := NewSessionService(newTestConfig("test_session_secret_key_very_long"))
	require.NoError(t, err)

	accountID := uuid.New()
	token, expiresAt, err := svc.Issue(accountID)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, accountID, claims.AccountID)
	assert.Equal(t, accountID.String(), claims.Subject)
}

func TestSessionService_RequiresSecret(t *testing.T) {
	_, err := NewSessionService(newTestConfig(""))
	assert.Error(t, err)
}

func TestSessionService_RejectsForeignSignature(t *testing.T) {
	issuer, err := NewSessionService(newTestConfig("secret-one"))
	require.NoError(t, err)
	verifier, err := NewSessionService(newTestConfig("secret-two"))
	require.NoError(t, err)

	token, _, err := issuer.Issue(uuid.New())
	require.NoError(t, err)

	_, err = verifier.Parse(token)
	assert.Error(t, err)
}

func TestSessionService_RejectsExpiredToken(t *testing.T) {
	svc := &sessionService{
		secret: []byte("secret"),
		ttl:    time.Minute,
		now:    func() time.Time { return time.Now().Add(-2 * time.Hour) },
	}
	token, _, err := svc.Issue(uuid.New())
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Parse(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestSessionService_RejectsGarbage(t *testing.T) {
	svc, err := NewSessionService(newTestConfig("secret"))
	require.NoError(t, err)

	_, err = svc.Parse("not-a-token")
	assert.Error(t, err)
}
