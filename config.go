package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultRedisURL       = "redis://localhost:6379/0"
	defaultWorkerQueue    = "default"
	defaultFetchBatchSize = 1000
	defaultMetricsPort    = 14000
)

type Config struct {
	RedisURL       string
	Queue          string
	FetchBatchSize int
	MetricsPort    int
	LogMode        string
}

// loadDotEnv loads environment for local development. Existing variables win.
func loadDotEnv() {
	_ = godotenv.Load("../.env")
	_ = godotenv.Load(".env")
}

func newViper(configName string) *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("redis_url", defaultRedisURL)
	v.SetDefault("worker_queue", defaultWorkerQueue)
	v.SetDefault("fetch_batch_size", defaultFetchBatchSize)
	v.SetDefault("metrics_port", defaultMetricsPort)
	v.SetDefault("log_mode", "development")
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", "5432")
	if configName != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(configName)
	}
	return v
}

func readSettings(configName string) (*viper.Viper, error) {
	v := newViper(configName)
	if configName != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configName, err)
		}
	}
	return v, nil
}

func loadConfig(v *viper.Viper) Config {
	cfg := Config{
		RedisURL:       v.GetString("redis_url"),
		Queue:          v.GetString("worker_queue"),
		FetchBatchSize: normalizePositiveInt(v.GetInt64("fetch_batch_size"), defaultFetchBatchSize),
		MetricsPort:    v.GetInt("metrics_port"),
		LogMode:        v.GetString("log_mode"),
	}
	if cfg.Queue == "" {
		cfg.Queue = defaultWorkerQueue
	}
	return cfg
}

func buildDSN(v *viper.Viper) (string, error) {
	dbname := v.GetString("postgres_db")
	if dbname == "" {
		if url := v.GetString("database_url"); url != "" {
			return url, nil
		}
		return "", errors.New("POSTGRES_DB not set; set env vars or DATABASE_URL")
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		v.GetString("postgres_host"),
		v.GetString("postgres_port"),
		v.GetString("postgres_user"),
		v.GetString("postgres_password"),
		dbname,
	)
	return dsn, nil
}
