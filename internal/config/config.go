package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string   `mapstructure:"PORT"`
	Env                  string   `mapstructure:"ENV"`
	DatabaseURL          string   `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret            string   `mapstructure:"JWT_SECRET"`
	CORSOrigins          []string `mapstructure:"CORS_ORIGINS"`
	BillingAutoCategory  string   `mapstructure:"BILLING_AUTO_CATEGORY"`
	BillingSessionAmount float64  `mapstructure:"BILLING_SESSION_AMOUNT"`
	FileStoreBackend     string   `mapstructure:"FILESTORE_BACKEND"`
	S3Bucket             string   `mapstructure:"S3_BUCKET"`
	S3Region             string   `mapstructure:"S3_REGION"`
	MigrationsDir        string   `mapstructure:"MIGRATIONS_DIR"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("BILLING_AUTO_CATEGORY", "dyes")
	v.SetDefault("BILLING_SESSION_AMOUNT", 500)
	v.SetDefault("FILESTORE_BACKEND", "memory")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("BILLING_AUTO_CATEGORY")
	v.BindEnv("BILLING_SESSION_AMOUNT")
	v.BindEnv("FILESTORE_BACKEND")
	v.BindEnv("S3_BUCKET")
	v.BindEnv("S3_REGION")
	v.BindEnv("MIGRATIONS_DIR")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development a
// JWT secret must be set so that real authentication is enforced, and the S3
// file store needs a bucket and region.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set when ENV is %q", c.Env)
	}

	switch c.FileStoreBackend {
	case "memory":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when FILESTORE_BACKEND is \"s3\"")
		}
		if c.S3Region == "" {
			return fmt.Errorf("S3_REGION is required when FILESTORE_BACKEND is \"s3\"")
		}
	default:
		return fmt.Errorf("FILESTORE_BACKEND must be \"memory\" or \"s3\", got %q", c.FileStoreBackend)
	}

	if c.BillingAutoCategory == "" {
		return fmt.Errorf("BILLING_AUTO_CATEGORY must not be empty")
	}
	if c.BillingSessionAmount < 0 {
		return fmt.Errorf("BILLING_SESSION_AMOUNT must not be negative")
	}

	return nil
}
