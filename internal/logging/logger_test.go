package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_InvalidLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "chatty"
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel(" WARN ")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)
}

func TestNewLogger_WritesFileWithOperationID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vpcctl.log")
	cfg := Config{
		Level:            "debug",
		Environment:      EnvironmentProduction,
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	ForOperation(logger, "create-vpc").Info("vpc created")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.True(t, strings.Contains(line, `"operation":"create-vpc"`), line)
	assert.Contains(t, line, `"operation_id":"`)
	assert.Contains(t, line, "vpc created")
}
