package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port               string
	TMDBURL            string
	TMDBAPIKey         string
	TMDBLanguage       string
	TMDBImageURL       string
	TMDBTimeoutSecs    int
	DBURL              string
	DBMaxConns         int
	DBMinConns         int
	DBMaxIdleSecs      int
	DBMaxLifeSecs      int
	DBConnTimeoutSecs  int
	DBStatementCache   int
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	DetailCacheTTLSecs int
	ViewTTLSecs        int
	ViewSweepSecs      int
	ReadTimeoutSecs    int
	WriteTimeoutSecs   int
	IdleTimeoutSecs    int
}

// Load reads configuration from a local .env file (if any) and the environment,
// applying defaults and validation. Variables already set in the environment
// win over .env entries.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		TMDBURL:            getEnv("TMDB_URL", "https://api.themoviedb.org/3"),
		TMDBAPIKey:         os.Getenv("TMDB_API_KEY"),
		TMDBLanguage:       getEnv("TMDB_LANGUAGE", "fr-FR"),
		TMDBImageURL:       getEnv("TMDB_IMAGE_URL", "https://image.tmdb.org/t/p/w300"),
		TMDBTimeoutSecs:    getEnvInt("TMDB_TIMEOUT_SECS", 5),
		DBURL:              os.Getenv("DB_URL"),
		DBMaxConns:         getEnvInt("DB_MAX_CONNS", 10),
		DBMinConns:         getEnvInt("DB_MIN_CONNS", 1),
		DBMaxIdleSecs:      getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:      getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs:  getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:   getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 128),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		DetailCacheTTLSecs: getEnvInt("DETAIL_CACHE_TTL_SECS", 1800),
		ViewTTLSecs:        getEnvInt("VIEW_TTL_SECS", 900),
		ViewSweepSecs:      getEnvInt("VIEW_SWEEP_SECS", 60),
		ReadTimeoutSecs:    getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs:   getEnvInt("SERVER_WRITE_TIMEOUT", 15),
		IdleTimeoutSecs:    getEnvInt("SERVER_IDLE_TIMEOUT", 60),
	}

	if cfg.TMDBAPIKey == "" {
		return Config{}, fmt.Errorf("TMDB_API_KEY is required")
	}
	if cfg.TMDBURL == "" {
		return Config{}, fmt.Errorf("TMDB_URL must not be empty")
	}
	if cfg.TMDBTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("TMDB_TIMEOUT_SECS must be positive")
	}
	if cfg.DBURL != "" {
		if cfg.DBMaxConns <= 0 {
			return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
		}
		if cfg.DBMinConns < 0 {
			return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
		}
		if cfg.DBMinConns > cfg.DBMaxConns {
			return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
		}
		if cfg.DBStatementCache < 0 {
			return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
		}
	}
	if cfg.RedisDB < 0 {
		return Config{}, fmt.Errorf("REDIS_DB must be non-negative")
	}
	if cfg.DetailCacheTTLSecs <= 0 {
		return Config{}, fmt.Errorf("DETAIL_CACHE_TTL_SECS must be positive")
	}
	if cfg.ViewTTLSecs <= 0 {
		return Config{}, fmt.Errorf("VIEW_TTL_SECS must be positive")
	}
	if cfg.ViewSweepSecs <= 0 {
		return Config{}, fmt.Errorf("VIEW_SWEEP_SECS must be positive")
	}

	return cfg, nil
}

// UsesDatabase reports whether favorites are persisted in Postgres.
func (c Config) UsesDatabase() bool {
	return c.DBURL != ""
}

// UsesRedis reports whether fetched details are cached in redis.
func (c Config) UsesRedis() bool {
	return c.RedisAddr != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}
