// Package config loads the service configuration from a YAML file named by
// the CONFIG_PATH environment variable.
package config

import (
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Env        string           // Env is the current environment: local, dev, prod.
	Postgres   PostgresConfig   // Postgres holds the database configuration.
	Kafka      KafkaConfig      // Kafka holds the event broker configuration.
	Monitoring MonitoringConfig // Monitoring holds the metrics server configuration.
}

// PostgresConfig holds the connection details for PostgreSQL.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds the broker list and topic for lifecycle events.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// MonitoringConfig holds the port of the /metrics and /healthz server.
type MonitoringConfig struct {
	Port int
}

// MustLoad loads the configuration from a YAML file and returns a Config
// struct. It panics on a missing or unreadable file, which is intentional:
// the service cannot run without configuration.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		panic("config path is empty")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	viper.SetConfigFile(configPath)
	if err := viper.ReadInConfig(); err != nil {
		panic("config error: " + err.Error())
	}

	viper.SetDefault("env", "local")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.sslmode", "disable")
	viper.SetDefault("kafka.topic", "hr.employees")
	viper.SetDefault("monitoring.port", 8080)

	return &Config{
		Env: viper.GetString("env"),
		Postgres: PostgresConfig{
			Host:     viper.GetString("postgres.host"),
			Port:     viper.GetInt("postgres.port"),
			User:     viper.GetString("postgres.user"),
			Password: viper.GetString("postgres.password"),
			DBName:   viper.GetString("postgres.db_name"),
			SSLMode:  viper.GetString("postgres.sslmode"),
		},
		Kafka: KafkaConfig{
			Brokers: viper.GetStringSlice("kafka.brokers"),
			Topic:   viper.GetString("kafka.topic"),
		},
		Monitoring: MonitoringConfig{
			Port: viper.GetInt("monitoring.port"),
		},
	}
}
