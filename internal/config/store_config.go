package config

import "time"

const (
	storeBackendVar      = "STORE_BACKEND"
	storeBaseURLVar      = "STORE_BASE_URL"
	storeTimeoutVar      = "STORE_TIMEOUT"
	storeClientIDVar     = "STORE_CLIENT_ID"
	storeClientSecretVar = "STORE_CLIENT_SECRET"
	storeTokenURLVar     = "STORE_TOKEN_URL"
	redisAddrVar         = "REDIS_ADDR"
	redisPasswordVar     = "REDIS_PASSWORD"
	sweepScheduleVar     = "SWEEP_SCHEDULE"
	sessionLifetimeVar   = "SESSION_LIFETIME"
)

// Store backends
const (
	StoreBackendHTTP   = "http"
	StoreBackendRedis  = "redis"
	StoreBackendMemory = "memory"
)

type StoreConfig interface {
	GetStoreBackend() string
	GetStoreBaseURL() string
	GetStoreTimeout() time.Duration
	GetStoreClientID() string
	GetStoreClientSecret() string
	GetStoreTokenURL() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetSweepSchedule() string
	GetSessionLifetime() time.Duration
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetStoreBackend() string {
	return GetEnv(storeBackendVar, StoreBackendMemory)
}

// GetStoreBaseURL is the backend session API root (e.g., "https://api.internal/v1")
func (Store) GetStoreBaseURL() string {
	return GetEnv(storeBaseURLVar, "")
}

func (Store) GetStoreTimeout() time.Duration {
	return GetEnvDuration(storeTimeoutVar, 5*time.Second)
}

func (Store) GetStoreClientID() string {
	return GetEnv(storeClientIDVar, "")
}

func (Store) GetStoreClientSecret() string {
	return GetEnv(storeClientSecretVar, "")
}

func (Store) GetStoreTokenURL() string {
	return GetEnv(storeTokenURLVar, "")
}

func (Store) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "localhost:6379")
}

func (Store) GetRedisPassword() string {
	return GetEnv(redisPasswordVar, "")
}

func (Store) GetSweepSchedule() string {
	return GetEnv(sweepScheduleVar, "@every 1m")
}

// GetSessionLifetime is used by the stores this process owns (memory, redis).
func (Store) GetSessionLifetime() time.Duration {
	return GetEnvDuration(sessionLifetimeVar, 24*time.Hour)
}
