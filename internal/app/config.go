package app

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	AppEnv   string
	HTTPAddr string
	DBDSN    string

	JWTSecret             string
	AccessTokenTTLMinutes int
	RefreshTokenTTLDays   int
	BcryptCost            int

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifeMins int

	AuthRateLimitPerMin int
	CORSAllowedOrigins  []string
}

// LoadConfig reads the environment once at startup. The two external
// connection parameters the service cannot run without, DATABASE_URL and
// JWT_SECRET, are validated here instead of failing on the first request.
func LoadConfig() (Config, error) {
	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}

	origins := []string{"*"}
	if raw := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); raw != "" {
		origins = origins[:0]
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	return Config{
		AppEnv:                envOrDefault("APP_ENV", "development"),
		HTTPAddr:              envOrDefault("HTTP_ADDR", ":8080"),
		DBDSN:                 dsn,
		JWTSecret:             secret,
		AccessTokenTTLMinutes: intOrDefault("ACCESS_TOKEN_TTL_MINUTES", 120),
		RefreshTokenTTLDays:   intOrDefault("REFRESH_TOKEN_TTL_DAYS", 30),
		BcryptCost:            intOrDefault("BCRYPT_COST", 0),
		DBMaxOpenConns:        intOrDefault("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:        intOrDefault("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifeMins:     intOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
		AuthRateLimitPerMin:   intOrDefault("AUTH_RATE_LIMIT_PER_MINUTE", 60),
		CORSAllowedOrigins:    origins,
	}, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func intOrDefault(key string, fallback int) int {
	n, _ := strconv.Atoi(os.Getenv(key))
	if n <= 0 {
		return fallback
	}
	return n
}
