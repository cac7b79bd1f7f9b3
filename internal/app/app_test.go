package app_test

import (
	"context"
	"testing"

	"chronobank/internal/app"
	"chronobank/internal/config"
	"chronobank/internal/domain"
	"chronobank/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_MemoryRuntime(t *testing.T) {
	cfg, err := config.Parse([]byte("database:\n  type: memory\n"))
	require.NoError(t, err)
	ctx := context.Background()

	rt, err := app.New(ctx, cfg)
	require.NoError(t, err)
	defer rt.Close()
	require.NoError(t, rt.Ping(ctx))

	owner, err := rt.Bank.RegisterOwner(ctx, "Grace", "grace@example.com")
	require.NoError(t, err)
	require.True(t, owner.Success)
	account, err := rt.Bank.OpenAccount(ctx, owner.ResourceID, domain.AccountTypeSavings)
	require.NoError(t, err)
	require.True(t, account.Success, account.Message)

	res, err := rt.Bank.Deposit(ctx, account.ResourceID, 1000, "", "")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	delivered, err := rt.Relay.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered, "the deposit confirmation")

	assert.NotPanics(t, rt.Jobs.RunAll)
}

func TestNewSink(t *testing.T) {
	assert.IsType(t, notify.LogSink{}, app.NewSink(config.NotificationsConfig{Sink: "log"}))

	sink := app.NewSink(config.NotificationsConfig{Sink: "kafka", KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "t"})
	assert.IsType(t, &notify.KafkaSink{}, sink)
	assert.NoError(t, sink.Close())
}
