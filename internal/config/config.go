package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	ArchivePath           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	UpstreamURL           string
	UpstreamToken         string
	AuthSecret            string
	AccessTokenTTLMinutes int
	RequireCategory       bool
	ConfirmBeforeSubmit   bool
	ToastTTLSeconds       int
	SearchTTLSeconds      int
}

const defaultUpstreamURL = "https://dev-api-3ug2clvfq0vjtzzofva0.alyapay.com/api/v1/merchantapp/transactions"

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	toastTTL, err := strconv.Atoi(getEnv("TOAST_TTL_SECONDS", "3"))
	if err != nil || toastTTL < 1 {
		toastTTL = 3
	}
	searchTTL, err := strconv.Atoi(getEnv("SEARCH_TTL_SECONDS", "30"))
	if err != nil || searchTTL < 1 {
		searchTTL = 30
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		ArchivePath:           os.Getenv("ARCHIVE_PATH"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		UpstreamURL:           getEnv("UPSTREAM_URL", defaultUpstreamURL),
		UpstreamToken:         strings.TrimSpace(os.Getenv("UPSTREAM_TOKEN")),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		RequireCategory:       getBool("REQUIRE_CATEGORY", true),
		ConfirmBeforeSubmit:   getBool("CONFIRM_BEFORE_SUBMIT", true),
		ToastTTLSeconds:       toastTTL,
		SearchTTLSeconds:      searchTTL,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getBool(key string, fallback bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "":
		return fallback
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
