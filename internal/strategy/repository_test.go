package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstrat/internal/store/memory"
)

func sampleDefinition(id string, active bool) Definition {
	return Definition{
		ID:         id,
		Title:      "sample",
		MarketType: MarketSpot,
		Assets:     []string{"BTC/USDT"},
		EntryConditions: []Condition{
			{Indicator: "rsi", Params: map[string]float64{"period": 14}, Operator: "<", Value: 30, Timeframe: "1h"},
		},
		ExitConditions: []Condition{
			{Indicator: "rsi", Operator: ">", Value: 70, Timeframe: "1h"},
		},
		TradeParameters: TradeParameters{OrderType: "market", PositionSize: 0.1},
		Active:          active,
	}
}

func TestRepositorySaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(memory.New())

	require.NoError(t, repo.Save(ctx, sampleDefinition("s1", true)))

	got, ok, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "s1", got.ID)
	assert.True(t, got.Active)

	_, ok, err = repo.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepositorySaveRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(memory.New())

	def := sampleDefinition("bad", true)
	def.EntryConditions[0].Operator = "!="
	assert.Error(t, repo.Save(ctx, def))

	def = sampleDefinition("", true)
	assert.Error(t, repo.Save(ctx, def))
}

func TestRepositoryActiveSet(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(memory.New())

	require.NoError(t, repo.Save(ctx, sampleDefinition("on", true)))
	require.NoError(t, repo.Save(ctx, sampleDefinition("off", false)))

	active, err := repo.ActiveDefinitions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "on", active[0].ID)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Deactivating removes it from the active set without deleting it.
	require.NoError(t, repo.Save(ctx, sampleDefinition("on", false)))
	active, err = repo.ActiveDefinitions(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, repo.Delete(ctx, "off"))
	all, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "on", all[0].ID)
}
