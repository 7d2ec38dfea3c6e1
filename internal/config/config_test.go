package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAPIDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := LoadAPIFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "file", cfg.Store.Kind)
	assert.Equal(t, 10*time.Minute, cfg.DriftEvery)
	assert.True(t, cfg.DriftOnStart)
	assert.Equal(t, "10", cfg.DefaultTaxPercent.String())
	assert.Equal(t, "100000", cfg.CentralBankSeed.String())
	assert.Equal(t, "20-M", cfg.LoginRate)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoadAPIFromEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("MICROBANK_STORE", "Postgres")
	t.Setenv("MICROBANK_DATABASE_URL", "postgres://localhost/microbank")
	t.Setenv("MICROBANK_DRIFT_EVERY", "30s")
	t.Setenv("MICROBANK_DEFAULT_TAX_PERCENT", "12.5")
	t.Setenv("MICROBANK_CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := LoadAPIFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "postgres", cfg.Store.Kind)
	assert.Equal(t, 30*time.Second, cfg.DriftEvery)
	assert.Equal(t, "12.5", cfg.DefaultTaxPercent.String())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown store", env: map[string]string{"MICROBANK_STORE": "mongo"}},
		{name: "postgres without url", env: map[string]string{"MICROBANK_STORE": "postgres"}},
		{name: "tax above 100", env: map[string]string{"MICROBANK_DEFAULT_TAX_PERCENT": "101"}},
		{name: "bad seed", env: map[string]string{"MICROBANK_CENTRAL_BANK_SEED": "lots"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadAPIFromEnv()
			require.Error(t, err)
		})
	}
}

func TestLoadWorker(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MICROBANK_TAX_EVERY", "168h")
	t.Setenv("MICROBANK_WORKER_RUN_ONCE", "true")
	cfg, err := LoadWorkerFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 168*time.Hour, cfg.TaxEvery)
	assert.Zero(t, cfg.DriftEvery, "the api drifts by default, the worker does not")
	assert.True(t, cfg.RunOnce)

	t.Setenv("MICROBANK_STORE", "memory")
	_, err = LoadWorkerFromEnv()
	require.Error(t, err)
}

func TestLoadWorkerDriftIsSeparateFromAPI(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MICROBANK_DRIFT_EVERY", "1m")
	_, err := LoadWorkerFromEnv()
	require.Error(t, err, "api drift setting alone gives the worker nothing to do")

	t.Setenv("MICROBANK_WORKER_DRIFT_EVERY", "5m")
	cfg, err := LoadWorkerFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.DriftEvery)
	assert.Zero(t, cfg.TaxEvery)
}

func TestLoadCLI(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MB_API_BASE_URL", "http://bank.test/")
	assert.Equal(t, "http://bank.test", LoadCLIFromEnv().APIBaseURL)
}
