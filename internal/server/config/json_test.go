package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_http":                     "www.example:8000",
		"endpoint_addr_grpc":                     "www.example:9000",
		"database_dsn":                           "postgres://json",
		"secret_key":                             "my_secret_key",
		"verify_keys":                            map[string]string{"old": "s1"},
		"access_token_validity_duration":         "1m",
		"refresh_token_validity_duration":        "3m",
		"mfa_code_validity_duration":             "10m",
		"password_reset_validity_duration":       int64(time.Hour),
		"account_verification_validity_duration": "0s",
		"mail_provider":                          "postmark",
		"smtp_port":                              2525,
		"rate_limit_window":                      "30s",
		"s3_bucket":                              "bucket",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "www.example:8000", cfg.EndpointAddrHTTP)
		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
		assert.Equal(t, "postgres://json", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, map[string]string{"old": "s1"}, cfg.VerifyKeys)
		assert.Equal(t, 1*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 3*time.Minute, cfg.RefreshTokenValidityDuration)
		assert.Equal(t, 10*time.Minute, cfg.MFACodeValidityDuration)
		assert.Equal(t, time.Hour, cfg.PasswordResetValidityDuration)
		assert.Equal(t, time.Duration(0), cfg.AccountVerificationValidityDuration, "explicit zero is kept")
		assert.Equal(t, "postmark", cfg.MailProvider)
		assert.Equal(t, 2525, cfg.SMTPPort)
		assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
		assert.Equal(t, "bucket", cfg.S3Bucket)

		// absent fields keep their previous values
		assert.Equal(t, "primary", cfg.SigningKeyID)
		assert.Equal(t, "local", cfg.ImageStore)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			EndpointAddrHTTP:            "defaults:1234",
			SecretKey:                   "key",
			AccessTokenValidityDuration: 2 * time.Minute,
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrHTTP)
		assert.Equal(t, "key", cfg.SecretKey)
		assert.Equal(t, 2*time.Minute, cfg.AccessTokenValidityDuration)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(dir, "nope.json")}
		require.Panics(t, func() { parseJson(&Config{}) })
	})
}
