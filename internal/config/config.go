// Package config reads service settings from the environment, after
// loading a .env file when one is present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the service settings.
type Config struct {
	Port              string
	DatabaseURL       string
	JWTSecret         string
	JWTTTL            time.Duration
	RedisAddr         string
	PhotoDir          string
	PhotoBaseURL      string
	StockMode         string
	ResyncConcurrency int
	LocationAccess    string
	DeviceLatitude    *float64
	DeviceLongitude   *float64
	RequestTimeout    time.Duration
}

// Load reads the .env file at path, if it exists, and then the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	cfg := &Config{
		Port:           getEnv("APP_PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		PhotoDir:       getEnv("PHOTO_DIR", "./data/photos"),
		StockMode:      getEnv("STOCK_MODE", "local"),
		LocationAccess: getEnv("LOCATION_ACCESS", "denied"),
	}
	cfg.PhotoBaseURL = getEnv("PHOTO_BASE_URL", "http://localhost:"+cfg.Port+"/photos")

	var err error
	if cfg.JWTTTL, err = durationEnv("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.ResyncConcurrency, err = intEnv("RESYNC_CONCURRENCY", 8); err != nil {
		return nil, err
	}
	if cfg.DeviceLatitude, err = floatEnv("DEVICE_LATITUDE"); err != nil {
		return nil, err
	}
	if cfg.DeviceLongitude, err = floatEnv("DEVICE_LONGITUDE"); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string) (*float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &f, nil
}
