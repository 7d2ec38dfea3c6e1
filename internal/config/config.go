package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type StoreConfig struct {
	Kind        string
	DataDir     string
	DatabaseURL string
}

type APIConfig struct {
	Addr              string
	Store             StoreConfig
	RedisURL          string
	DriftEvery        time.Duration
	DriftOnStart      bool
	DefaultTaxPercent decimal.Decimal
	CentralBankSeed   decimal.Decimal
	LoginRate         string
	DiscordWebhookURL string
	CORSOrigins       []string
}

type WorkerConfig struct {
	Store             StoreConfig
	RedisURL          string
	DriftEvery        time.Duration
	TaxEvery          time.Duration
	DefaultTaxPercent decimal.Decimal
	CentralBankSeed   decimal.Decimal
	RunOnce           bool
}

type CLIConfig struct {
	APIBaseURL string
}

// load reads .env if present and returns a viper bound to MICROBANK_*
// environment variables with the shared defaults.
func load() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MICROBANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("ADDR", ":8080")
	v.SetDefault("STORE", "file")
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("DRIFT_EVERY", 10*time.Minute)
	v.SetDefault("DRIFT_ON_START", true)
	v.SetDefault("TAX_EVERY", time.Duration(0))
	v.SetDefault("DEFAULT_TAX_PERCENT", "10")
	v.SetDefault("CENTRAL_BANK_SEED", "100000")
	v.SetDefault("LOGIN_RATE", "20-M")
	v.SetDefault("DISCORD_WEBHOOK_URL", "")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("WORKER_DRIFT_EVERY", time.Duration(0))
	v.SetDefault("WORKER_RUN_ONCE", false)
	return v
}

func LoadAPIFromEnv() (APIConfig, error) {
	v := load()

	// A bare PORT wins over MICROBANK_ADDR so the service runs on hosts that
	// only hand out a port.
	_ = v.BindEnv("HOST_PORT", "PORT")
	addr := strings.TrimSpace(v.GetString("HOST_PORT"))
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = v.GetString("ADDR")
	}

	cfg := APIConfig{
		Addr:              addr,
		Store:             storeConfig(v),
		RedisURL:          strings.TrimSpace(v.GetString("REDIS_URL")),
		DriftEvery:        v.GetDuration("DRIFT_EVERY"),
		DriftOnStart:      v.GetBool("DRIFT_ON_START"),
		LoginRate:         strings.TrimSpace(v.GetString("LOGIN_RATE")),
		DiscordWebhookURL: strings.TrimSpace(v.GetString("DISCORD_WEBHOOK_URL")),
		CORSOrigins:       splitList(v.GetString("CORS_ORIGINS")),
	}
	var err error
	if cfg.DefaultTaxPercent, cfg.CentralBankSeed, err = amounts(v); err != nil {
		return cfg, err
	}
	if err := cfg.Store.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	v := load()
	cfg := WorkerConfig{
		Store:      storeConfig(v),
		RedisURL:   strings.TrimSpace(v.GetString("REDIS_URL")),
		DriftEvery: v.GetDuration("WORKER_DRIFT_EVERY"),
		TaxEvery:   v.GetDuration("TAX_EVERY"),
		RunOnce:    v.GetBool("WORKER_RUN_ONCE"),
	}
	var err error
	if cfg.DefaultTaxPercent, cfg.CentralBankSeed, err = amounts(v); err != nil {
		return cfg, err
	}
	if cfg.Store.Kind == "memory" {
		return cfg, fmt.Errorf("the worker needs a shared store; MICROBANK_STORE=memory is not supported")
	}
	// The API drifts on MICROBANK_DRIFT_EVERY already; the worker only drifts
	// when asked so the pair does not reprice twice per interval.
	if cfg.DriftEvery <= 0 && cfg.TaxEvery <= 0 {
		return cfg, fmt.Errorf("worker has no jobs; set MICROBANK_WORKER_DRIFT_EVERY or MICROBANK_TAX_EVERY")
	}
	if err := cfg.Store.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	_ = godotenv.Load()
	v := viper.New()
	v.SetEnvPrefix("MB")
	v.AutomaticEnv()
	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	return CLIConfig{
		APIBaseURL: strings.TrimRight(strings.TrimSpace(v.GetString("API_BASE_URL")), "/"),
	}
}

func storeConfig(v *viper.Viper) StoreConfig {
	return StoreConfig{
		Kind:        strings.ToLower(strings.TrimSpace(v.GetString("STORE"))),
		DataDir:     strings.TrimSpace(v.GetString("DATA_DIR")),
		DatabaseURL: strings.TrimSpace(v.GetString("DATABASE_URL")),
	}
}

func (s StoreConfig) validate() error {
	switch s.Kind {
	case "memory":
	case "file":
		if s.DataDir == "" {
			return fmt.Errorf("MICROBANK_DATA_DIR is required for the file store")
		}
	case "postgres":
		if s.DatabaseURL == "" {
			return fmt.Errorf("MICROBANK_DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("MICROBANK_STORE must be memory, file or postgres, got %q", s.Kind)
	}
	return nil
}

func amounts(v *viper.Viper) (taxPercent, bankSeed decimal.Decimal, err error) {
	taxPercent, err = decimal.NewFromString(strings.TrimSpace(v.GetString("DEFAULT_TAX_PERCENT")))
	if err != nil || taxPercent.IsNegative() || taxPercent.GreaterThan(decimal.NewFromInt(100)) {
		return taxPercent, bankSeed, fmt.Errorf("MICROBANK_DEFAULT_TAX_PERCENT must be a number between 0 and 100")
	}
	bankSeed, err = decimal.NewFromString(strings.TrimSpace(v.GetString("CENTRAL_BANK_SEED")))
	if err != nil || bankSeed.IsNegative() {
		return taxPercent, bankSeed, fmt.Errorf("MICROBANK_CENTRAL_BANK_SEED must be a non-negative number")
	}
	return taxPercent, bankSeed, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
