package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trinity/internal/agents"
)

func TestInvocationRowMapping(t *testing.T) {
	record := agents.InvocationRecord{
		ID:        "5ab54ef6-8f4d-4f9e-8f55-0d6a54c1b111",
		AgentName: "architect",
		ToolName:  "analyze_code",
		Arguments: map[string]interface{}{"path": "main.go"},
		Result:    map[string]interface{}{"lines": float64(42)},
		Status:    agents.RecordStatusSuccess,
		Duration:  1500 * time.Millisecond,
		Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	row, err := toRow(record)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), row.DurationMS)
	assert.JSONEq(t, `{"path":"main.go"}`, string(row.Arguments))
	assert.JSONEq(t, `{"lines":42}`, string(row.Result))

	back, err := row.toRecord()
	require.NoError(t, err)
	assert.Equal(t, record, back)
}

func TestInvocationRowMapping_FailedWithoutResult(t *testing.T) {
	record := agents.InvocationRecord{
		ID:        "0b9f0a81-61cf-4b5f-9d2e-0f4e6f1c2222",
		AgentName: "ceo",
		ToolName:  "budget_management",
		Arguments: map[string]interface{}{"action": "spend"},
		Error:     "spend of 10.00 exceeds remaining budget",
		Status:    agents.RecordStatusFailed,
		Duration:  3 * time.Millisecond,
		Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	row, err := toRow(record)
	require.NoError(t, err)
	assert.Empty(t, row.Result)
	assert.Equal(t, "failed", row.Status)

	back, err := row.toRecord()
	require.NoError(t, err)
	assert.Nil(t, back.Result)
	assert.Equal(t, record, back)
}
