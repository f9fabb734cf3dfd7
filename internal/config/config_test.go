package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/watchtower/pkg/types"
)

const validYAML = `
redis:
  addr: localhost:6379
dynamodb:
  tableName: watchtower
  region: us-east-1
nats:
  url: nats://localhost:4222
  stream: PACKETS
server:
  addr: ":9090"
detectors:
  - id: 1
    name: error-rate
    type: metric_alert
    sourceId: src-1
    conditionGroup:
      id: cg-1
      conditions:
        - type: gt
          comparison: 5
          result: 75
workflows:
  - id: wf-1
    config:
      frequency: 10
    conditionGroups:
      - id: wcg-1
        actions:
          - id: act-1
            type: slack
            target: "#alerts"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "watchtower.yaml"), []byte(content), 0o644))
	return dir
}

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "watchtower", cfg.DynamoDB.TableName)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, ":9090", cfg.Server.Addr)

	require.Len(t, cfg.Detectors, 1)
	det := cfg.Detectors[0]
	assert.Equal(t, int64(1), det.ID)
	assert.Equal(t, "metric_alert", det.Type)
	require.NotNil(t, det.ConditionGroup)
	require.Len(t, det.ConditionGroup.Conditions, 1)
	assert.Equal(t, types.ConditionGT, det.ConditionGroup.Conditions[0].Type)
	assert.Equal(t, types.PriorityHigh, det.ConditionGroup.Conditions[0].Result)

	require.Len(t, cfg.Workflows, 1)
	assert.Equal(t, 10, cfg.Workflows[0].Config.Frequency)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing redis addr", `
dynamodb:
  tableName: watchtower
nats:
  url: nats://localhost:4222
detectors:
  - {id: 1, type: metric_alert, sourceId: src-1}
`},
		{"missing dynamodb table", `
redis:
  addr: localhost:6379
nats:
  url: nats://localhost:4222
detectors:
  - {id: 1, type: metric_alert, sourceId: src-1}
`},
		{"missing nats url", `
redis:
  addr: localhost:6379
dynamodb:
  tableName: watchtower
detectors:
  - {id: 1, type: metric_alert, sourceId: src-1}
`},
		{"no detectors", `
redis:
  addr: localhost:6379
dynamodb:
  tableName: watchtower
nats:
  url: nats://localhost:4222
detectors: []
`},
		{"detector missing id", `
redis:
  addr: localhost:6379
dynamodb:
  tableName: watchtower
nats:
  url: nats://localhost:4222
detectors:
  - {type: metric_alert, sourceId: src-1}
`},
		{"duplicate detector id", `
redis:
  addr: localhost:6379
dynamodb:
  tableName: watchtower
nats:
  url: nats://localhost:4222
detectors:
  - {id: 1, type: metric_alert, sourceId: src-1}
  - {id: 1, type: metric_alert, sourceId: src-2}
`},
		{"detector missing source", `
redis:
  addr: localhost:6379
dynamodb:
  tableName: watchtower
nats:
  url: nats://localhost:4222
detectors:
  - {id: 1, type: metric_alert}
`},
		{"negative workflow frequency", `
redis:
  addr: localhost:6379
dynamodb:
  tableName: watchtower
nats:
  url: nats://localhost:4222
detectors:
  - {id: 1, type: metric_alert, sourceId: src-1}
workflows:
  - id: wf-1
    config: {frequency: -5}
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestDetectorsBySource(t *testing.T) {
	cfg := &Config{
		Detectors: []types.Detector{
			{ID: 1, SourceID: "src-1"},
			{ID: 2, SourceID: "src-1"},
			{ID: 3, SourceID: "src-2"},
		},
	}
	index := cfg.DetectorsBySource()
	assert.Len(t, index["src-1"], 2)
	assert.Len(t, index["src-2"], 1)
	assert.Empty(t, index["src-3"])
}
