package agents

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trinity/pkg/errors"
)

func newTestCEO(t *testing.T, budget int64) *BaseAgent {
	t.Helper()
	agent, err := NewCEO(decimal.NewFromInt(budget))
	require.NoError(t, err)
	return agent
}

func dispatchBudget(t *testing.T, agent *BaseAgent, args map[string]interface{}) (interface{}, error) {
	t.Helper()
	return agent.Dispatch(context.Background(), "budget_management", args)
}

func TestCEO_BudgetAllocateAndSpend(t *testing.T) {
	agent := newTestCEO(t, 1000)

	_, err := dispatchBudget(t, agent, map[string]interface{}{
		"action": "allocate", "category": "marketing", "amount": 600.0,
	})
	require.NoError(t, err)

	_, err = dispatchBudget(t, agent, map[string]interface{}{
		"action": "spend", "category": "marketing", "amount": 150.5, "note": "ads",
	})
	require.NoError(t, err)

	result, err := dispatchBudget(t, agent, map[string]interface{}{"action": "report"})
	require.NoError(t, err)

	report := result.(map[string]interface{})
	assert.Equal(t, "1000.00", report["total"])
	assert.Equal(t, "600.00", report["allocated"])
	assert.Equal(t, "150.50", report["spent"])
	assert.Equal(t, "400.00", report["unallocated"])
}

func TestCEO_OverspendRejected(t *testing.T) {
	agent := newTestCEO(t, 1000)

	_, err := dispatchBudget(t, agent, map[string]interface{}{
		"action": "allocate", "category": "ops", "amount": 100.0,
	})
	require.NoError(t, err)

	_, err = dispatchBudget(t, agent, map[string]interface{}{
		"action": "spend", "category": "ops", "amount": 100.01,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds remaining")
	assert.ErrorIs(t, err, errors.ErrToolExecution)
}

func TestCEO_OverallocationRejected(t *testing.T) {
	agent := newTestCEO(t, 500)

	_, err := dispatchBudget(t, agent, map[string]interface{}{
		"action": "allocate", "category": "a", "amount": 400.0,
	})
	require.NoError(t, err)

	_, err = dispatchBudget(t, agent, map[string]interface{}{
		"action": "allocate", "category": "b", "amount": 200.0,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds total budget")
}

func TestCEO_SpendUnknownCategory(t *testing.T) {
	agent := newTestCEO(t, 500)

	_, err := dispatchBudget(t, agent, map[string]interface{}{
		"action": "spend", "category": "ghost", "amount": 10.0,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no allocation")
}

func TestCEO_UnknownAction(t *testing.T) {
	agent := newTestCEO(t, 500)

	_, err := dispatchBudget(t, agent, map[string]interface{}{"action": "liquidate"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown budget action")
}

func TestCEO_GenerateReport(t *testing.T) {
	agent := newTestCEO(t, 2000)

	_, err := dispatchBudget(t, agent, map[string]interface{}{
		"action": "allocate", "category": "r&d", "amount": 1000.0,
	})
	require.NoError(t, err)
	_, err = dispatchBudget(t, agent, map[string]interface{}{
		"action": "spend", "category": "r&d", "amount": 250.0, "note": "prototype",
	})
	require.NoError(t, err)

	result, err := agent.Dispatch(context.Background(), "generate_report", map[string]interface{}{})
	require.NoError(t, err)

	report := result.(map[string]interface{})
	assert.Equal(t, "quarter", report["period"])
	assert.Equal(t, "250.00", report["spent"])
	expenses := report["recent_expenses"].([]expense)
	require.Len(t, expenses, 1)
	assert.Equal(t, "prototype", expenses[0].Note)
}

func TestCEO_ToolCatalog(t *testing.T) {
	agent := newTestCEO(t, 1)

	assert.ElementsMatch(t,
		[]string{"market_analysis", "business_plan", "budget_management", "generate_report"},
		agent.Tools().Names(),
	)
}
