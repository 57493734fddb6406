package cmd

import (
	"context"
	"testing"

	"neodymium/config"
	"neodymium/repository"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRepository_File(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.DataDir = t.TempDir()

	repo, closeRepo, err := NewRepository(context.Background(), cfg)
	require.NoError(t, err)
	defer closeRepo()

	assert.IsType(t, &repository.FileRepository{}, repo)
}

func TestNewRepository_UnknownBackend(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.StorageBackend = "redis"

	_, _, err := NewRepository(context.Background(), cfg)
	assert.Error(t, err)
}

func TestConfigureLogging(t *testing.T) {
	t.Cleanup(func() {
		log.SetLevel(log.InfoLevel)
		log.SetFormatter(&log.TextFormatter{})
	})

	cfg := config.NewTestConfig()
	cfg.LogLevel = "warn"
	cfg.Environment = "production"
	ConfigureLogging(cfg)

	assert.Equal(t, log.WarnLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	cfg.LogLevel = "nonsense"
	cfg.Environment = "development"
	ConfigureLogging(cfg)

	assert.Equal(t, log.InfoLevel, log.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)
}
