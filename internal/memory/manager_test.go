package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trinity/pkg/errors"
)

func TestManager_Remember(t *testing.T) {
	t.Run("stores short-term entry", func(t *testing.T) {
		m := NewManager(t.TempDir(), 100, nil)

		entry, err := m.Remember(context.Background(), "architect", "observed a bug", 0.5, nil)
		require.NoError(t, err)

		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, "architect", entry.AgentName)
		assert.Equal(t, 1, m.ShortTermCount("architect"))
	})

	t.Run("rejects empty content", func(t *testing.T) {
		m := NewManager(t.TempDir(), 100, nil)

		_, err := m.Remember(context.Background(), "architect", "", 0.5, nil)
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})

	t.Run("consolidates when over limit", func(t *testing.T) {
		m := NewManager(t.TempDir(), 20, nil)
		ctx := context.Background()

		for i := 0; i < 21; i++ {
			_, err := m.Remember(ctx, "architect", fmt.Sprintf("note %d", i), float64(i), nil)
			require.NoError(t, err)
		}

		// 21 held, top 10 by importance promoted, 11 remain
		assert.Equal(t, 11, m.ShortTermCount("architect"))

		longTerm, err := m.LongTerm("architect")
		require.NoError(t, err)
		require.Len(t, longTerm, 10)

		// Highest-importance entries were promoted
		for _, entry := range longTerm {
			assert.GreaterOrEqual(t, entry.Importance, float64(11))
		}
	})
}

func TestManager_Recall(t *testing.T) {
	m := NewManager(t.TempDir(), 100, nil)
	ctx := context.Background()

	_, err := m.Remember(ctx, "polymath", "quantum computing basics", 0.9, nil)
	require.NoError(t, err)
	_, err = m.Remember(ctx, "polymath", "market trends in Europe", 0.4, nil)
	require.NoError(t, err)
	require.NoError(t, m.Consolidate(ctx, "polymath"))

	t.Run("substring match is case-insensitive", func(t *testing.T) {
		matches, err := m.Recall(ctx, "polymath", "QUANTUM", 10)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "quantum computing basics", matches[0].Content)
	})

	t.Run("empty query returns everything", func(t *testing.T) {
		matches, err := m.Recall(ctx, "polymath", "", 10)
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})

	t.Run("respects limit", func(t *testing.T) {
		matches, err := m.Recall(ctx, "polymath", "", 1)
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})

	t.Run("unknown agent yields nothing", func(t *testing.T) {
		matches, err := m.Recall(ctx, "nobody", "anything", 10)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestManager_Clear(t *testing.T) {
	m := NewManager(t.TempDir(), 100, nil)
	ctx := context.Background()

	_, err := m.Remember(ctx, "ceo", "quarterly targets", 0.8, nil)
	require.NoError(t, err)
	require.NoError(t, m.Consolidate(ctx, "ceo"))

	require.NoError(t, m.Clear(ctx, "ceo"))

	assert.Equal(t, 0, m.ShortTermCount("ceo"))
	longTerm, err := m.LongTerm("ceo")
	require.NoError(t, err)
	assert.Empty(t, longTerm)

	// Clearing an agent with no state is fine
	assert.NoError(t, m.Clear(ctx, "ceo"))
}

func TestManager_ConsolidateAll(t *testing.T) {
	m := NewManager(t.TempDir(), 100, nil)
	ctx := context.Background()

	for _, agent := range []string{"architect", "ceo"} {
		_, err := m.Remember(ctx, agent, "something worth keeping", 0.7, nil)
		require.NoError(t, err)
	}

	require.NoError(t, m.ConsolidateAll(ctx))

	for _, agent := range []string{"architect", "ceo"} {
		longTerm, err := m.LongTerm(agent)
		require.NoError(t, err)
		assert.Len(t, longTerm, 1, agent)
	}
}
