package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "app.log")

	require.NoError(t, Init(Config{Level: "debug", OutputFile: path, Quiet: true}))
	require.Equal(t, path, GetCurrentLogFile())
	require.Equal(t, logrus.DebugLevel, Logger.GetLevel())

	WithField("component", "test").Info("hello")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "hello")
	require.Contains(t, string(b), "component=test")
}

func TestInit_BadLevelFallsBackToInfo(t *testing.T) {
	require.NoError(t, Init(Config{Level: "nope", Quiet: true}))
	require.Equal(t, logrus.InfoLevel, Logger.GetLevel())
}
