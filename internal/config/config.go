package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	// Server Configuration
	GinMode       string        `mapstructure:"GIN_MODE"`
	ServerHost    string        `mapstructure:"SERVER_HOST"`
	ServerPort    string        `mapstructure:"SERVER_PORT"`
	ServerTimeout time.Duration `mapstructure:"SERVER_TIMEOUT_SECONDS"`

	// Database Configuration
	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            string        `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSL_MODE"`
	DBTimezone        string        `mapstructure:"DB_TIMEZONE"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	// Logging Configuration
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// JWT Configuration
	JWTSecretKey          string        `mapstructure:"JWT_SECRET_KEY"`
	JWTAccessTokenExpiry  time.Duration `mapstructure:"JWT_ACCESS_TOKEN_EXPIRY_MINUTES"`
	JWTRefreshTokenExpiry time.Duration `mapstructure:"JWT_REFRESH_TOKEN_EXPIRY_DAYS"`

	// OAuth Provider Credentials
	GoogleClientID        string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret    string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI     string `mapstructure:"GOOGLE_REDIRECT_URI"`
	GitHubClientID        string `mapstructure:"GITHUB_CLIENT_ID"`
	GitHubClientSecret    string `mapstructure:"GITHUB_CLIENT_SECRET"`
	GitHubRedirectURI     string `mapstructure:"GITHUB_REDIRECT_URI"`
	MicrosoftClientID     string `mapstructure:"MICROSOFT_CLIENT_ID"`
	MicrosoftClientSecret string `mapstructure:"MICROSOFT_CLIENT_SECRET"`
	MicrosoftRedirectURI  string `mapstructure:"MICROSOFT_REDIRECT_URI"`
	MicrosoftTenant       string `mapstructure:"MICROSOFT_TENANT"`

	// Sign-in intent cookies. The intent cookie is short-lived because it only
	// needs to survive a local form submit; the state cookie must survive a
	// full provider round trip (consent screens included), so it lives longer.
	CookieDomain          string `mapstructure:"AUTH_COOKIE_DOMAIN"`
	CookieSecure          bool   `mapstructure:"AUTH_COOKIE_SECURE"`
	CookieSameSite        string `mapstructure:"AUTH_COOKIE_SAME_SITE"`
	IntentCookieMaxAge    int    `mapstructure:"AUTH_INTENT_COOKIE_MAX_AGE_SECONDS"`
	StateCookieMaxAge     int    `mapstructure:"OAUTH_STATE_COOKIE_MAX_AGE_SECONDS"`
	OAuthStateTTL         time.Duration `mapstructure:"OAUTH_STATE_TTL_MINUTES"`
	VerificationTokenTTL  time.Duration `mapstructure:"EMAIL_VERIFICATION_TOKEN_TTL_MINUTES"`

	// Frontend
	FrontendBaseURL string `mapstructure:"FRONTEND_BASE_URL"`
	DefaultLocale   string `mapstructure:"DEFAULT_LOCALE"`

	// SMTP Configuration
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	// Cron Jobs
	TokenPurgeJobSchedule string `mapstructure:"TOKEN_PURGE_JOB_SCHEDULE"`
}

// Load attempts to load configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()

	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_TIMEOUT_SECONDS", 30)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "membership_db")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 60)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("JWT_SECRET_KEY", "")
	v.SetDefault("JWT_ACCESS_TOKEN_EXPIRY_MINUTES", 60)
	v.SetDefault("JWT_REFRESH_TOKEN_EXPIRY_DAYS", 30)

	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REDIRECT_URI", "")
	v.SetDefault("GITHUB_CLIENT_ID", "")
	v.SetDefault("GITHUB_CLIENT_SECRET", "")
	v.SetDefault("GITHUB_REDIRECT_URI", "")
	v.SetDefault("MICROSOFT_CLIENT_ID", "")
	v.SetDefault("MICROSOFT_CLIENT_SECRET", "")
	v.SetDefault("MICROSOFT_REDIRECT_URI", "")
	v.SetDefault("MICROSOFT_TENANT", "common")

	v.SetDefault("AUTH_COOKIE_DOMAIN", "")
	v.SetDefault("AUTH_COOKIE_SECURE", false)
	v.SetDefault("AUTH_COOKIE_SAME_SITE", "Lax")
	v.SetDefault("AUTH_INTENT_COOKIE_MAX_AGE_SECONDS", 300)
	v.SetDefault("OAUTH_STATE_COOKIE_MAX_AGE_SECONDS", 600)
	v.SetDefault("OAUTH_STATE_TTL_MINUTES", 10)
	v.SetDefault("EMAIL_VERIFICATION_TOKEN_TTL_MINUTES", 60)

	v.SetDefault("FRONTEND_BASE_URL", "http://localhost:3000")
	v.SetDefault("DEFAULT_LOCALE", "en")

	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "no-reply@localhost")

	v.SetDefault("TOKEN_PURGE_JOB_SCHEDULE", "@hourly")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Duration fields are configured as plain integers; convert here.
	cfg.ServerTimeout = time.Duration(v.GetInt("SERVER_TIMEOUT_SECONDS")) * time.Second
	cfg.DBConnMaxLifetime = time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES")) * time.Minute
	cfg.JWTAccessTokenExpiry = time.Duration(v.GetInt("JWT_ACCESS_TOKEN_EXPIRY_MINUTES")) * time.Minute
	cfg.JWTRefreshTokenExpiry = time.Duration(v.GetInt("JWT_REFRESH_TOKEN_EXPIRY_DAYS")) * 24 * time.Hour
	cfg.OAuthStateTTL = time.Duration(v.GetInt("OAUTH_STATE_TTL_MINUTES")) * time.Minute
	cfg.VerificationTokenTTL = time.Duration(v.GetInt("EMAIL_VERIFICATION_TOKEN_TTL_MINUTES")) * time.Minute

	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("FATAL: JWT_SECRET_KEY is not set. Session tokens cannot be signed without it")
	}

	return &cfg, nil
}

// DSN builds the GORM data source name from the individual DB_* parameters.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode, c.DBTimezone)
}
