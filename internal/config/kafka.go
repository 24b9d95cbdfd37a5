package config

import (
	"os"
	"strconv"
)

// KafkaConfig holds Kafka connection settings. Credentials come from the
// environment (or a .env file) and are never read from the JSON config.
type KafkaConfig struct {
	BootstrapServers string
	SecurityProtocol string
	SASLMechanism    string
	SASLUsername     string
	SASLPassword     string
	Topic            string
	CompressionType  string
	Acks             string
	LingerMS         int
}

// NewKafkaConfig reads Kafka settings from KAFKA_* environment variables.
func NewKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		BootstrapServers: getEnv("KAFKA_BOOTSTRAP_SERVERS", "localhost:9092"),
		SecurityProtocol: getEnv("KAFKA_SECURITY_PROTOCOL", "PLAINTEXT"),
		SASLMechanism:    getEnv("KAFKA_SASL_MECHANISM", "PLAIN"),
		SASLUsername:     getEnv("KAFKA_SASL_USERNAME", ""),
		SASLPassword:     getEnv("KAFKA_SASL_PASSWORD", ""),
		Topic:            getEnv("KAFKA_TOPIC", "risk-analyses"),
		CompressionType:  getEnv("KAFKA_COMPRESSION_TYPE", "snappy"),
		Acks:             getEnv("KAFKA_ACKS", "all"),
		LingerMS:         getEnvInt("KAFKA_LINGER_MS", 10),
	}
}

// UsesSASL reports whether SASL credentials should be sent.
func (k *KafkaConfig) UsesSASL() bool {
	return k.SecurityProtocol == "SASL_SSL" || k.SecurityProtocol == "SASL_PLAINTEXT"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
