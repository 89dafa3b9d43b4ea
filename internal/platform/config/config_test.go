package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoad_MemoryBackendDefaults(t *testing.T) {
	cfg, err := load(envFrom(map[string]string{"PERSONA_STORE": "memory"}))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, BackendMemory, cfg.Ledger.Backend)
	assert.Equal(t, "xion", cfg.Ledger.AddressPrefix)
	assert.Equal(t, []string{DefaultReclaimWitness}, cfg.Reclaim.Witnesses)
	assert.Equal(t, DefaultTwitterProviderID, cfg.Providers.Twitter)
	assert.Equal(t, DefaultGitHubProviderID, cfg.Providers.GitHub)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.LockTTL)
	assert.Equal(t, 10000, cfg.Server.SessionCacheSize)
	assert.False(t, cfg.RequestGenerationEnabled())
}

func TestLoad_LedgerBackendRequiresCredentials(t *testing.T) {
	_, err := load(envFrom(map[string]string{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOCUSTORE_CONTRACT_ADDRESS")
	assert.Contains(t, err.Error(), "ADMIN_MNEMONIC")
}

func TestLoad_LedgerBackend(t *testing.T) {
	cfg, err := load(envFrom(map[string]string{
		"DOCUSTORE_CONTRACT_ADDRESS": "xion1contract",
		"ADMIN_MNEMONIC":             "word word word",
		"XION_LCD_ENDPOINT":          "https://lcd.example/",
		"RECLAIM_WITNESSES":          "0xAAA, 0xaaa,0xBBB",
		"KAFKA_BROKERS":              "k1:9092, k2:9092",
	}))
	require.NoError(t, err)
	assert.Equal(t, "https://lcd.example", cfg.Ledger.LCDEndpoint)
	assert.Equal(t, []string{"0xaaa", "0xbbb"}, cfg.Reclaim.Witnesses)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_RejectsMalformedValues(t *testing.T) {
	_, err := load(envFrom(map[string]string{
		"PERSONA_STORE":      "memory",
		"PERSONA_LOCK_WAIT":  "soon",
		"XION_GAS_LIMIT":     "lots",
		"SESSION_CACHE_SIZE": "big",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_CACHE_SIZE")
	assert.Contains(t, err.Error(), "PERSONA_LOCK_WAIT")
	assert.Contains(t, err.Error(), "XION_GAS_LIMIT")
}

func TestValidate(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		_, err := load(envFrom(map[string]string{"PERSONA_STORE": "s3"}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ledger|memory")
	})

	t.Run("duplicate provider IDs", func(t *testing.T) {
		_, err := load(envFrom(map[string]string{
			"PERSONA_STORE":       "memory",
			"PROVIDER_ID_TWITTER": "same",
			"PROVIDER_ID_GITHUB":  "same",
		}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "distinct")
	})

	t.Run("request generation enabled with app credentials", func(t *testing.T) {
		cfg, err := load(envFrom(map[string]string{
			"PERSONA_STORE":      "memory",
			"RECLAIM_APP_ID":     "0xapp",
			"RECLAIM_APP_SECRET": "0xsecret",
		}))
		require.NoError(t, err)
		assert.True(t, cfg.RequestGenerationEnabled())
	})
}
