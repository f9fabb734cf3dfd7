// Package config handles loading and validation of watchtower.yaml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	ddbstore "github.com/dwsmith1983/watchtower/internal/store/dynamodb"
	redisstore "github.com/dwsmith1983/watchtower/internal/store/redis"
	"github.com/dwsmith1983/watchtower/pkg/types"
)

// NATSConfig configures the packet consumer and result publisher.
type NATSConfig struct {
	URL                 string `yaml:"url"`
	Stream              string `yaml:"stream,omitempty"`
	PacketSubject       string `yaml:"packetSubject,omitempty"`
	ConsumerName        string `yaml:"consumerName,omitempty"`
	QueueGroup          string `yaml:"queueGroup,omitempty"`
	OccurrenceSubject   string `yaml:"occurrenceSubject,omitempty"`
	StatusChangeSubject string `yaml:"statusChangeSubject,omitempty"`
}

// ServerConfig configures the operational HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// WatchdogConfig configures silent-source detection. Durations are Go
// duration strings ("15m"); empty means the built-in defaults.
type WatchdogConfig struct {
	StaleAfter string `yaml:"staleAfter,omitempty"`
	Interval   string `yaml:"interval,omitempty"`
}

// Config is the full watchtower.yaml project configuration.
type Config struct {
	Redis     *redisstore.Config `yaml:"redis"`
	DynamoDB  *ddbstore.Config   `yaml:"dynamodb"`
	NATS      NATSConfig         `yaml:"nats"`
	Server    ServerConfig       `yaml:"server,omitempty"`
	Watchdog  WatchdogConfig     `yaml:"watchdog,omitempty"`
	Detectors []types.Detector   `yaml:"detectors"`
	Workflows []types.Workflow   `yaml:"workflows,omitempty"`
}

// Load reads and parses watchtower.yaml from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "watchtower.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Redis == nil || cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if cfg.DynamoDB == nil || cfg.DynamoDB.TableName == "" {
		return fmt.Errorf("dynamodb.tableName is required")
	}
	if cfg.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if len(cfg.Detectors) == 0 {
		return fmt.Errorf("at least one detector is required")
	}

	seen := make(map[int64]bool)
	for i, det := range cfg.Detectors {
		if det.ID == 0 {
			return fmt.Errorf("detector %d: id is required", i)
		}
		if seen[det.ID] {
			return fmt.Errorf("detector %d: duplicate id %d", i, det.ID)
		}
		seen[det.ID] = true
		if det.Type == "" {
			return fmt.Errorf("detector %d: type is required", det.ID)
		}
		if det.SourceID == "" {
			return fmt.Errorf("detector %d: sourceId is required", det.ID)
		}
	}

	seenWf := make(map[string]bool)
	for i, wf := range cfg.Workflows {
		if wf.ID == "" {
			return fmt.Errorf("workflow %d: id is required", i)
		}
		if seenWf[wf.ID] {
			return fmt.Errorf("workflow %q: duplicate id", wf.ID)
		}
		seenWf[wf.ID] = true
		if wf.Config.Frequency < 0 {
			return fmt.Errorf("workflow %q: frequency must not be negative", wf.ID)
		}
	}

	return nil
}

// DetectorsBySource indexes the configured detectors by their data source id.
func (c *Config) DetectorsBySource() map[string][]types.Detector {
	index := make(map[string][]types.Detector)
	for _, det := range c.Detectors {
		index[det.SourceID] = append(index[det.SourceID], det)
	}
	return index
}
