package container

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

const testSeed = `
companies:
  - id: acme
    name: Acme
    currency: USD
    users:
      - id: boss
        name: Boss
        role: admin
      - id: worker
        name: Worker
        role: employee
        manager: boss
`

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()

	seedPath := filepath.Join(dir, "directory.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(testSeed), 0o644))

	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "container.db")
	cfg.Directory.SeedPath = seedPath
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"missing db path", func(c *Config) { c.Database.Path = "" }, true},
		{"no currencies", func(c *Config) { c.Currency.Supported = nil }, true},
		{"bad currency code", func(c *Config) { c.Currency.Supported = []string{"DOLLAR"} }, true},
		{"zero timeout", func(c *Config) { c.Currency.Timeout = 0 }, true},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"zero upload cap", func(c *Config) { c.Receipts.MaxUploadBytes = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewContainer_RequiresConfigAndLogger(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, c.Ready())

	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx), "second start must fail")

	boss, err := c.Repositories().Directory.GetUser(ctx, "boss")
	require.NoError(t, err)
	require.NotNil(t, boss, "seed applied on start")

	worker, err := c.Repositories().Directory.GetUser(ctx, "worker")
	require.NoError(t, err)

	claim, err := c.Services().Submission.Submit(ctx, worker, service.SubmitClaimInput{
		Amount:      42,
		Currency:    "USD",
		Category:    entity.CategoryFood,
		Description: "Team lunch",
	})
	require.NoError(t, err)
	assert.Equal(t, "boss", claim.CurrentApproverID)

	health := c.Health(ctx)
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)
	assert.Equal(t, "disabled", health.Components["receipt_scanner"].Message)

	deps := c.HTTPDependencies()
	assert.Nil(t, deps.Scanner)
	assert.NotNil(t, deps.Gateway)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(ctx), "start after close must fail")
}

func TestContainer_ScannerEnabledWithKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Receipts.APIKey = "sk-test"

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	assert.NotNil(t, c.External().Scanner)
	assert.Empty(t, c.Health(context.Background()).Components["receipt_scanner"].Message)
}

func TestContainer_StartFailsOnBadSeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Directory.SeedPath = filepath.Join(t.TempDir(), "missing.yaml")

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Error(t, c.Start(context.Background()))
	assert.False(t, c.Ready())
}

func TestZapLoggerAdapter(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	adapter := &zapLoggerAdapter{logger: zap.New(core)}

	adapter.Warn("rate lookup failed", "from", "USD", "error", errors.New("timeout"), 42, "dropped")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "rate lookup failed", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "USD", fields["from"])
	assert.Equal(t, "timeout", fields["error"])
	assert.Len(t, fields, 2)
}
