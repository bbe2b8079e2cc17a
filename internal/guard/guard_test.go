package guard

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/siteconf/internal/errors"
)

var testSecret = []byte(strings.Repeat("s", MinSecretLen))

func newSigner(t *testing.T, opts ...SignerOption) *Signer {
	t.Helper()
	s, err := NewSigner(testSecret, opts...)
	require.NoError(t, err)
	return s
}

func TestNewSigner_ShortSecret(t *testing.T) {
	_, err := NewSigner([]byte("short"))
	assert.True(t, errors.Is(err, ErrSecretTooShort))
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	require.NoError(t, err)
	b, err := GenerateSecret()
	require.NoError(t, err)

	assert.Len(t, a, MinSecretLen*2)
	assert.NotEqual(t, a, b)
	_, err = NewSigner([]byte(a))
	assert.NoError(t, err)
}

func TestVerifyToken_SingleUse(t *testing.T) {
	s := newSigner(t)
	token, err := s.IssueToken("reset")
	require.NoError(t, err)

	require.NoError(t, s.VerifyToken(token, "reset"))
	err = s.VerifyToken(token, "reset")
	assert.True(t, errors.Is(err, ErrReplayToken))
}

func TestVerifyToken_ActionScoped(t *testing.T) {
	s := newSigner(t)
	token, err := s.IssueToken("export")
	require.NoError(t, err)

	err = s.VerifyToken(token, "import")
	assert.True(t, errors.Is(err, ErrReplayToken))

	// A mismatched attempt does not consume the token.
	assert.NoError(t, s.VerifyToken(token, "export"))
}

func TestVerifyToken_Rejections(t *testing.T) {
	s := newSigner(t)
	other, err := NewSigner([]byte(strings.Repeat("o", MinSecretLen)))
	require.NoError(t, err)
	foreign, err := other.IssueToken("reset")
	require.NoError(t, err)
	credential, err := s.IssueCredential("admin", 0, CapabilityAdmin)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", foreign},
		{"credential as action token", credential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.VerifyToken(tt.token, "reset")
			assert.True(t, errors.Is(err, ErrReplayToken), "got %v", err)
		})
	}
}

func TestVerifyToken_Expired(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	s := newSigner(t, WithTokenTTL(time.Minute), WithClock(func() time.Time { return now }))

	token, err := s.IssueToken("restore")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	err = s.VerifyToken(token, "restore")
	assert.True(t, errors.Is(err, ErrReplayToken))
}

func TestVerifyToken_PrunesExpiredIDs(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	s := newSigner(t, WithTokenTTL(time.Minute), WithClock(func() time.Time { return now }))

	first, err := s.IssueToken("reset")
	require.NoError(t, err)
	require.NoError(t, s.VerifyToken(first, "reset"))

	now = now.Add(2 * time.Minute)
	second, err := s.IssueToken("reset")
	require.NoError(t, err)
	require.NoError(t, s.VerifyToken(second, "reset"))

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Len(t, s.used, 1)
}

func TestVerifyToken_RejectsOtherAlgorithms(t *testing.T) {
	s := newSigner(t)
	claims := s.claims(audienceAction, "", time.Minute)
	claims.Action = "reset"
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	err = s.VerifyToken(unsigned, "reset")
	assert.True(t, errors.Is(err, ErrReplayToken))
}

func TestVerifyToken_ConcurrentSingleAcceptance(t *testing.T) {
	s := newSigner(t)
	token, err := s.IssueToken("import")
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.VerifyToken(token, "import") == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)
}

func TestCredentials(t *testing.T) {
	s := newSigner(t)
	credential, err := s.IssueCredential("ops", time.Hour, CapabilityAdmin)
	require.NoError(t, err)

	claims, err := s.Authenticate(credential)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.True(t, claims.Can(CapabilityAdmin))
	assert.False(t, claims.Can("edit_posts"))

	action, err := s.IssueToken("export")
	require.NoError(t, err)
	_, err = s.Authenticate(action)
	assert.True(t, errors.Is(err, ErrInvalidCredential))

	_, err = s.IssueCredential("", time.Hour)
	assert.Error(t, err)
}

func TestAuthorizers(t *testing.T) {
	admin := WithClaims(context.Background(), &Claims{Capabilities: []string{CapabilityAdmin}})
	editor := WithClaims(context.Background(), &Claims{Capabilities: []string{"edit_posts"}})
	anonymous := context.Background()

	assert.True(t, RequireAdmin().Authorize(admin))
	assert.False(t, RequireAdmin().Authorize(editor))
	assert.False(t, RequireAdmin().Authorize(anonymous))
	assert.True(t, LocalOperator().Authorize(anonymous))
	assert.False(t, Deny().Authorize(admin))
	assert.Nil(t, ClaimsFrom(anonymous))
}
