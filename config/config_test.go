package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 0.40, cfg.MissingCutoff)
	assert.Equal(t, "./output/cleaned_df.csv", cfg.CSVOutputPath)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.False(t, cfg.PostgresEnabled)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("LOAN_SOURCE_PATH", "/tmp/loans.csv")
	t.Setenv("MISSING_THRESHOLD", "0.25")
	t.Setenv("POSTGRES_ENABLED", "true")
	t.Setenv("POSTGRES_HOST", "db")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/loans.csv", cfg.SourcePath)
	assert.Equal(t, 0.25, cfg.MissingCutoff)
	assert.True(t, cfg.PostgresEnabled)
	assert.Contains(t, cfg.DSN(), "host=db ")
}

func TestFromEnvRejectsBadThreshold(t *testing.T) {
	for _, v := range []string{"1.5", "0", "-0.1"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("MISSING_THRESHOLD", v)

			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config: validate")
		})
	}
}

func TestFromEnvRejectsBadLogFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")

	_, err := FromEnv()
	assert.Error(t, err)
}
