package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"trinity/internal/tools"
	"trinity/pkg/errors"
)

const ceoPrompt = `You are the CEO agent of a small autonomous company. You study markets,
write business plans, manage the budget and report on progress. Be concrete:
numbers over adjectives.`

// expense is one recorded spend against a budget category.
type expense struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Note     string          `json:"note,omitempty"`
	SpentAt  time.Time       `json:"spent_at"`
}

// budgetLedger tracks allocations and spending with exact decimal arithmetic.
type budgetLedger struct {
	mu          sync.Mutex
	total       decimal.Decimal
	allocations map[string]decimal.Decimal
	spent       map[string]decimal.Decimal
	expenses    []expense
}

func newBudgetLedger(total decimal.Decimal) *budgetLedger {
	return &budgetLedger{
		total:       total,
		allocations: make(map[string]decimal.Decimal),
		spent:       make(map[string]decimal.Decimal),
	}
}

func (l *budgetLedger) allocate(category string, amount decimal.Decimal) error {
	if amount.IsNegative() || amount.IsZero() {
		return errors.Wrap(errors.ErrInvalidInput, "allocation must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	allocated := decimal.Zero
	for _, a := range l.allocations {
		allocated = allocated.Add(a)
	}
	if allocated.Add(amount).GreaterThan(l.total) {
		return errors.Wrapf(errors.ErrInsufficientBudget,
			"allocating %s exceeds total budget %s (already allocated %s)",
			amount.StringFixed(2), l.total.StringFixed(2), allocated.StringFixed(2))
	}

	l.allocations[category] = l.allocations[category].Add(amount)
	return nil
}

func (l *budgetLedger) spend(category string, amount decimal.Decimal, note string) error {
	if amount.IsNegative() || amount.IsZero() {
		return errors.Wrap(errors.ErrInvalidInput, "spend must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	allocation, ok := l.allocations[category]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "no allocation for category %s", category)
	}

	spent := l.spent[category]
	if spent.Add(amount).GreaterThan(allocation) {
		return errors.Wrapf(errors.ErrInsufficientBudget,
			"spending %s exceeds remaining %s in category %s",
			amount.StringFixed(2), allocation.Sub(spent).StringFixed(2), category)
	}

	l.spent[category] = spent.Add(amount)
	l.expenses = append(l.expenses, expense{
		Category: category,
		Amount:   amount,
		Note:     note,
		SpentAt:  time.Now().UTC(),
	})
	return nil
}

func (l *budgetLedger) report() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	allocated := decimal.Zero
	totalSpent := decimal.Zero
	categories := make([]map[string]interface{}, 0, len(l.allocations))

	names := make([]string, 0, len(l.allocations))
	for name := range l.allocations {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		alloc := l.allocations[name]
		spent := l.spent[name]
		allocated = allocated.Add(alloc)
		totalSpent = totalSpent.Add(spent)
		categories = append(categories, map[string]interface{}{
			"category":  name,
			"allocated": alloc.StringFixed(2),
			"spent":     spent.StringFixed(2),
			"remaining": alloc.Sub(spent).StringFixed(2),
		})
	}

	totalF, _ := l.total.Float64()
	spentF, _ := totalSpent.Float64()

	return map[string]interface{}{
		"total":         l.total.StringFixed(2),
		"total_pretty":  humanize.CommafWithDigits(totalF, 2),
		"allocated":     allocated.StringFixed(2),
		"spent":         totalSpent.StringFixed(2),
		"spent_pretty":  humanize.CommafWithDigits(spentF, 2),
		"unallocated":   l.total.Sub(allocated).StringFixed(2),
		"categories":    categories,
		"expense_count": len(l.expenses),
	}
}

func (l *budgetLedger) recentExpenses(limit int) []expense {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := 0
	if limit > 0 && len(l.expenses) > limit {
		start = len(l.expenses) - limit
	}
	out := make([]expense, len(l.expenses)-start)
	copy(out, l.expenses[start:])
	return out
}

// NewCEO builds the ceo agent with a budget ledger and its business tools.
func NewCEO(initialBudget decimal.Decimal, opts ...Option) (*BaseAgent, error) {
	registry := tools.NewRegistry()
	ledger := newBudgetLedger(initialBudget)

	agent, err := NewBaseAgent(
		"ceo",
		"chief executive",
		"Analyzes markets, writes business plans and manages the budget",
		ceoPrompt,
		registry,
		opts...,
	)
	if err != nil {
		return nil, err
	}

	register := func(t tools.Tool) {
		if err == nil {
			err = registry.Register(t)
		}
	}

	register(tools.New("market_analysis",
		"Analyze a market segment and summarize opportunities and risks",
		tools.Schema{
			"topic":  {Type: "string", Description: "Market or product segment", Required: true},
			"region": {Type: "string", Description: "Geographic focus", Default: "global"},
		},
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			topic := args["topic"].(string)
			region, _ := args["region"].(string)
			analysis, err := agent.complete(ctx, fmt.Sprintf(
				"Produce a concise market analysis for %q in the %s region. Cover market size, top competitors, opportunities and risks.", topic, region))
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"topic": topic, "region": region, "analysis": analysis}, nil
		},
	))

	register(tools.New("business_plan",
		"Draft a business plan for an objective over a planning horizon",
		tools.Schema{
			"objective":      {Type: "string", Description: "What the plan should achieve", Required: true},
			"horizon_months": {Type: "integer", Description: "Planning horizon in months", Default: 12},
		},
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			objective := args["objective"].(string)
			horizon := toInt(args["horizon_months"], 12)
			plan, err := agent.complete(ctx, fmt.Sprintf(
				"Write a %d-month business plan for: %s. Include milestones, required budget per milestone and success metrics.", horizon, objective))
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"objective": objective, "horizon_months": horizon, "plan": plan}, nil
		},
	))

	register(tools.New("budget_management",
		"Allocate budget to a category, record spending, or report the ledger state",
		tools.Schema{
			"action":   {Type: "string", Description: "One of: allocate, spend, report", Required: true},
			"category": {Type: "string", Description: "Budget category"},
			"amount":   {Type: "number", Description: "Amount in account currency"},
			"note":     {Type: "string", Description: "Optional note for a spend"},
		},
		func(_ context.Context, args map[string]interface{}) (interface{}, error) {
			return manageBudget(ledger, args)
		},
	))

	register(tools.New("generate_report",
		"Generate a progress report with budget state and recent expenses",
		tools.Schema{
			"period": {Type: "string", Description: "Reporting period label", Default: "quarter"},
		},
		func(_ context.Context, args map[string]interface{}) (interface{}, error) {
			period, _ := args["period"].(string)
			report := ledger.report()
			report["period"] = period
			report["generated_at"] = time.Now().UTC()
			report["recent_expenses"] = ledger.recentExpenses(10)
			return report, nil
		},
	))

	if err != nil {
		return nil, err
	}
	return agent, nil
}

func manageBudget(ledger *budgetLedger, args map[string]interface{}) (interface{}, error) {
	action, _ := args["action"].(string)
	category, _ := args["category"].(string)
	note, _ := args["note"].(string)

	amount := decimal.Zero
	if raw, ok := args["amount"]; ok {
		switch v := raw.(type) {
		case float64:
			amount = decimal.NewFromFloat(v)
		case int:
			amount = decimal.NewFromInt(int64(v))
		}
	}

	switch strings.ToLower(action) {
	case "allocate":
		if category == "" {
			return nil, errors.Wrap(errors.ErrInvalidInput, "allocate requires a category")
		}
		if err := ledger.allocate(category, amount); err != nil {
			return nil, err
		}
		return map[string]interface{}{"action": "allocate", "category": category, "amount": amount.StringFixed(2)}, nil
	case "spend":
		if category == "" {
			return nil, errors.Wrap(errors.ErrInvalidInput, "spend requires a category")
		}
		if err := ledger.spend(category, amount, note); err != nil {
			return nil, err
		}
		return map[string]interface{}{"action": "spend", "category": category, "amount": amount.StringFixed(2)}, nil
	case "report":
		return ledger.report(), nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown budget action %q", action)
	}
}

func toInt(v interface{}, fallback int) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return fallback
	}
}
