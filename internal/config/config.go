package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                     string
	DatabaseURL              string
	RedisAddr                string
	RedisPassword            string
	RedisDB                  int
	RemoteAPIURL             string
	RemoteAPIKey             string
	OwnerID                  string
	AuthSecret               string
	AccessTokenTTLMinutes    int
	DevicePassword           string
	StoreName                string
	SyncIntervalMinutes      int
	ConnectivityProbeSeconds int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	syncInterval, err := strconv.Atoi(getEnv("SYNC_INTERVAL_MINUTES", "5"))
	if err != nil || syncInterval < 1 {
		syncInterval = 5
	}
	probeSeconds, err := strconv.Atoi(getEnv("CONNECTIVITY_PROBE_SECONDS", "30"))
	if err != nil || probeSeconds < 1 {
		probeSeconds = 30
	}

	return Config{
		Port:                     getEnv("PORT", "8090"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  redisDB,
		RemoteAPIURL:             strings.TrimSpace(os.Getenv("REMOTE_API_URL")),
		RemoteAPIKey:             strings.TrimSpace(os.Getenv("REMOTE_API_KEY")),
		OwnerID:                  strings.TrimSpace(os.Getenv("OWNER_ID")),
		AuthSecret:               strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:    tokenTTL,
		DevicePassword:           os.Getenv("DEVICE_PASSWORD"),
		StoreName:                getEnv("STORE_NAME", "LokaPOS"),
		SyncIntervalMinutes:      syncInterval,
		ConnectivityProbeSeconds: probeSeconds,
	}
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
