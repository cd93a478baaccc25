package token

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rackgrid/rackgrid/internal/infrastructure/auth"
)

func TestTokenCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  jwt_secret: cli-test\n  token_ttl: 1h\n"), 0o600))

	t.Run("facility token", func(t *testing.T) {
		cmd := NewCommand()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--config", path, "--facility", "facility-9", "--user", "user-9"})
		require.NoError(t, cmd.Execute())

		claims, err := auth.NewJWTService("cli-test", time.Hour).Verify(strings.TrimSpace(out.String()))
		require.NoError(t, err)
		assert.Equal(t, "facility-9", claims.FacilityID)
		assert.Equal(t, "user-9", claims.UserID)
		assert.False(t, claims.SuperAdmin)
	})

	t.Run("requires facility or admin", func(t *testing.T) {
		facilityID, superAdmin = "", false
		cmd := NewCommand()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--config", path, "--user", "user-9"})
		assert.Error(t, cmd.Execute())
	})
}
