package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevels(t *testing.T) {
	l := &levelSetter{levelers: map[string]zap.AtomicLevel{}, defaultLevel: zapcore.InfoLevel}
	assert.Equal(t, zapcore.InfoLevel, l.GetLevel("engine"))

	l.SetLevel("engine", zapcore.DebugLevel)
	assert.Equal(t, zapcore.DebugLevel, l.GetLevel("engine"))

	l.SetAll(zapcore.WarnLevel)
	assert.Equal(t, zapcore.WarnLevel, l.GetLevel("engine"))
	assert.Equal(t, zapcore.WarnLevel, l.GetLevel("never-created"))
}

func TestConfigure(t *testing.T) {
	assert.Error(t, Configure("loud"))
	assert.NoError(t, Configure("info"))
	assert.NotNil(t, New("test"))
}
