package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/siteconf/internal/backup"
	"github.com/thoreinstein/siteconf/internal/config"
	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/guard"
)

const testSecret = "0123456789abcdef0123456789abcdef0123456789abcdef"

func withSecret(c *config.Config) { c.Security.Secret = testSecret }

func TestToken_RequiresSecret(t *testing.T) {
	useTestConfig(t)

	err := runTokenWithWriter(&bytes.Buffer{}, backup.ActionImport, false, "", 0)
	requireExitCode(t, err, errors.ExitUser)
	assert.Contains(t, err.Error(), "security.secret")
}

func TestToken_ActionToken(t *testing.T) {
	useTestConfig(t, withSecret)

	var buf bytes.Buffer
	require.NoError(t, runTokenWithWriter(&buf, backup.ActionImport, false, "", 0))
	token := strings.TrimSpace(buf.String())
	require.NotEmpty(t, token)

	verifier, err := guard.NewSigner([]byte(testSecret))
	require.NoError(t, err)
	assert.True(t, errors.Is(verifier.VerifyToken(token, backup.ActionReset), guard.ErrReplayToken),
		"token must be scoped to its action")
	require.NoError(t, verifier.VerifyToken(token, backup.ActionImport))
	assert.True(t, errors.Is(verifier.VerifyToken(token, backup.ActionImport), guard.ErrReplayToken),
		"token must be single use")
}

func TestToken_Credential(t *testing.T) {
	useTestConfig(t, withSecret)

	var buf bytes.Buffer
	require.NoError(t, runTokenWithWriter(&buf, "", true, "ops", time.Hour))

	verifier, err := guard.NewSigner([]byte(testSecret))
	require.NoError(t, err)
	claims, err := verifier.Authenticate(strings.TrimSpace(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.True(t, claims.Can(guard.CapabilityAdmin))
}

func TestToken_InvalidArguments(t *testing.T) {
	useTestConfig(t, withSecret)

	tests := []struct {
		name       string
		action     string
		credential bool
	}{
		{"unknown action", "delete", false},
		{"missing action", "", false},
		{"credential with action", backup.ActionExport, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runTokenWithWriter(&bytes.Buffer{}, tt.action, tt.credential, "ops", time.Hour)
			requireExitCode(t, err, errors.ExitUser)
		})
	}
}
