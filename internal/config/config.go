package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	ServerPort     int
	Env            string
	DatabasePath   string
	FrontendURL    string
	AllowedOrigins []string

	JWTSecret string
	JWTExpiry time.Duration

	OTPTTL            time.Duration
	ResetTokenTTL     time.Duration
	LoginMaxAttempts  int
	LoginLockDuration time.Duration
	PasswordMaxAge    time.Duration
	PasswordHistory   int
	MFAIssuer         string

	NearestRadiusMeters float64

	SendGridAPIKey  string
	EmailSender     string
	EmailSenderName string

	KhaltiSecretKey string
	KhaltiBaseURL   string

	CloudinaryURL string
	UploadDir     string

	RedisURL string

	AuditMongoURI      string
	AuditMongoDatabase string
	AuditBuffer        int
	AuditRetention     time.Duration

	LogLevel string
	LogFile  string

	AuthRateLimit int // requests per minute per IP
	AuthRateBurst int

	// TrustedProxies may set X-Forwarded-For and X-Real-IP. Other peers
	// are identified by their socket address.
	TrustedProxies []*net.IPNet
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables, applying defaults.
func FromEnv() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		ServerPort:          p.int("PORT", 8080),
		Env:                 getEnv("APP_ENV", "development"),
		DatabasePath:        getEnv("DATABASE_PATH", "./sajilotantra.db"),
		FrontendURL:         strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		JWTExpiry:           p.duration("JWT_EXPIRY", 30*24*time.Hour),
		OTPTTL:              p.duration("OTP_TTL", 10*time.Minute),
		ResetTokenTTL:       p.duration("RESET_TOKEN_TTL", 10*time.Minute),
		LoginMaxAttempts:    p.int("LOGIN_MAX_ATTEMPTS", 5),
		LoginLockDuration:   p.duration("LOGIN_LOCK_DURATION", time.Minute),
		PasswordMaxAge:      p.duration("PASSWORD_MAX_AGE", 30*24*time.Hour),
		PasswordHistory:     p.int("PASSWORD_HISTORY", 5),
		MFAIssuer:           getEnv("MFA_ISSUER", "Sajilotantra"),
		NearestRadiusMeters: p.float("NEAREST_RADIUS_METERS", 10000),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		EmailSender:         getEnv("EMAIL_SENDER", "no-reply@sajilotantra.local"),
		EmailSenderName:     getEnv("EMAIL_SENDER_NAME", "Sajilotantra"),
		KhaltiSecretKey:     getEnv("KHALTI_SECRET_KEY", ""),
		KhaltiBaseURL:       strings.TrimRight(getEnv("KHALTI_BASE_URL", "https://a.khalti.com/api/v2"), "/"),
		CloudinaryURL:       getEnv("CLOUDINARY_URL", ""),
		UploadDir:           getEnv("UPLOAD_DIR", "./uploads"),
		RedisURL:            getEnv("REDIS_URL", ""),
		AuditMongoURI:       getEnv("AUDIT_MONGO_URI", ""),
		AuditMongoDatabase:  getEnv("AUDIT_MONGO_DATABASE", "sajilotantra"),
		AuditBuffer:         p.int("AUDIT_BUFFER", 256),
		AuditRetention:      p.duration("AUDIT_RETENTION", 90*24*time.Hour),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFile:             getEnv("LOG_FILE", ""),
		AuthRateLimit:       p.int("AUTH_RATE_LIMIT", 10),
		AuthRateBurst:       p.int("AUTH_RATE_BURST", 5),
	}
	if p.err != nil {
		return nil, p.err
	}

	origins := getEnv("ALLOWED_ORIGINS", cfg.FrontendURL)
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	for _, raw := range strings.Split(getEnv("TRUSTED_PROXIES", ""), ",") {
		if raw = strings.TrimSpace(raw); raw == "" {
			continue
		}
		network, err := parseNetwork(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
		}
		cfg.TrustedProxies = append(cfg.TrustedProxies, network)
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
		cfg.JWTSecret = "development-secret-change-me"
	}
	if cfg.LoginMaxAttempts < 1 {
		return nil, fmt.Errorf("LOGIN_MAX_ATTEMPTS must be positive, got %d", cfg.LoginMaxAttempts)
	}

	return cfg, nil
}

// parseNetwork accepts a CIDR or a single address.
func parseNetwork(raw string) (*net.IPNet, error) {
	if strings.Contains(raw, "/") {
		_, network, err := net.ParseCIDR(raw)
		return network, err
	}
	ip := net.ParseIP(raw)
	if ip == nil {
		return nil, fmt.Errorf("%q is not an IP address", raw)
	}
	bits := 128
	if v4 := ip.To4(); v4 != nil {
		ip, bits = v4, 32
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

// parser collects the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) int(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func (p *parser) float(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
