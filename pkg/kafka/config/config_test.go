package kafka_config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Brokers) != 1 || cfg.Brokers[0] != DefaultKafkaBrokers {
		t.Errorf("expected default broker, got %v", cfg.Brokers)
	}
	if cfg.ProducerCompression != DefaultProducerCompression {
		t.Errorf("expected %s compression, got %s", DefaultProducerCompression, cfg.ProducerCompression)
	}
}

func TestLoad_BrokerList(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, "kafka-1:9092, kafka-2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "kafka-2:9092" {
		t.Errorf("expected two trimmed brokers, got %v", cfg.Brokers)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg: Config{
				Brokers: []string{"localhost:9092"}, ProducerMaxAttempts: 3,
				ProducerBatchTimeout: time.Millisecond, ProducerRequireAcks: 1, ProducerCompression: "gzip",
			},
		},
		{
			name: "empty broker",
			cfg: Config{
				Brokers: []string{""}, ProducerMaxAttempts: 3,
				ProducerBatchTimeout: time.Millisecond, ProducerRequireAcks: 1, ProducerCompression: "gzip",
			},
			wantErr: true,
		},
		{
			name: "bad compression",
			cfg: Config{
				Brokers: []string{"localhost:9092"}, ProducerMaxAttempts: 3,
				ProducerBatchTimeout: time.Millisecond, ProducerRequireAcks: 1, ProducerCompression: "brotli",
			},
			wantErr: true,
		},
		{
			name: "bad acks",
			cfg: Config{
				Brokers: []string{"localhost:9092"}, ProducerMaxAttempts: 3,
				ProducerBatchTimeout: time.Millisecond, ProducerRequireAcks: 2, ProducerCompression: "none",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
