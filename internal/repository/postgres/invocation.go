package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"

	"trinity/internal/agents"
	"trinity/pkg/errors"
)

// InvocationArchive persists completed dispatch records so they survive
// process restarts. The in-process history remains the primary store;
// the archive is written asynchronously after each dispatch.
type InvocationArchive struct {
	db DBTX
}

// NewInvocationArchive creates an archive over the given connection.
func NewInvocationArchive(db DBTX) *InvocationArchive {
	return &InvocationArchive{db: db}
}

const invocationSchema = `
	CREATE TABLE IF NOT EXISTS tool_invocations (
		id          UUID PRIMARY KEY,
		agent_name  TEXT NOT NULL,
		tool_name   TEXT NOT NULL,
		arguments   JSONB NOT NULL DEFAULT '{}',
		result      JSONB,
		error       TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL,
		duration_ms BIGINT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tool_invocations_agent
		ON tool_invocations (agent_name, created_at DESC);`

// EnsureSchema creates the archive table if it does not exist.
func (a *InvocationArchive) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, invocationSchema); err != nil {
		return errors.Wrap(err, "create tool_invocations schema")
	}
	return nil
}

type invocationRow struct {
	ID         string         `db:"id"`
	AgentName  string         `db:"agent_name"`
	ToolName   string         `db:"tool_name"`
	Arguments  types.JSONText `db:"arguments"`
	Result     types.JSONText `db:"result"`
	Error      string         `db:"error"`
	Status     string         `db:"status"`
	DurationMS int64          `db:"duration_ms"`
	CreatedAt  time.Time      `db:"created_at"`
}

func toRow(record agents.InvocationRecord) (invocationRow, error) {
	args, err := json.Marshal(record.Arguments)
	if err != nil {
		return invocationRow{}, errors.Wrap(err, "marshal arguments")
	}

	var result types.JSONText
	if record.Result != nil {
		result, err = json.Marshal(record.Result)
		if err != nil {
			return invocationRow{}, errors.Wrap(err, "marshal result")
		}
	}

	return invocationRow{
		ID:         record.ID,
		AgentName:  record.AgentName,
		ToolName:   record.ToolName,
		Arguments:  args,
		Result:     result,
		Error:      record.Error,
		Status:     string(record.Status),
		DurationMS: record.Duration.Milliseconds(),
		CreatedAt:  record.Timestamp,
	}, nil
}

func (r invocationRow) toRecord() (agents.InvocationRecord, error) {
	record := agents.InvocationRecord{
		ID:        r.ID,
		AgentName: r.AgentName,
		ToolName:  r.ToolName,
		Error:     r.Error,
		Status:    agents.RecordStatus(r.Status),
		Duration:  time.Duration(r.DurationMS) * time.Millisecond,
		Timestamp: r.CreatedAt,
	}

	if len(r.Arguments) > 0 {
		if err := json.Unmarshal(r.Arguments, &record.Arguments); err != nil {
			return record, errors.Wrap(err, "unmarshal arguments")
		}
	}
	if len(r.Result) > 0 {
		if err := json.Unmarshal(r.Result, &record.Result); err != nil {
			return record, errors.Wrap(err, "unmarshal result")
		}
	}
	return record, nil
}

// Save inserts one completed dispatch record.
func (a *InvocationArchive) Save(ctx context.Context, record agents.InvocationRecord) error {
	row, err := toRow(record)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tool_invocations (
			id, agent_name, tool_name, arguments, result,
			error, status, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	_, err = a.db.ExecContext(ctx, query,
		row.ID, row.AgentName, row.ToolName, row.Arguments, row.Result,
		row.Error, row.Status, row.DurationMS, row.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert tool invocation")
	}
	return nil
}

// GetByID retrieves a single archived record.
func (a *InvocationArchive) GetByID(ctx context.Context, id string) (agents.InvocationRecord, error) {
	var row invocationRow

	query := `SELECT * FROM tool_invocations WHERE id = $1`

	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return agents.InvocationRecord{}, errors.Wrapf(errors.ErrNotFound, "invocation %s", id)
		}
		return agents.InvocationRecord{}, errors.Wrap(err, "get tool invocation")
	}
	return row.toRecord()
}

// ListByAgent retrieves the most recent archived records for an agent,
// newest first. A non-positive limit defaults to 50.
func (a *InvocationArchive) ListByAgent(ctx context.Context, agentName string, limit int) ([]agents.InvocationRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []invocationRow

	query := `
		SELECT * FROM tool_invocations
		WHERE agent_name = $1
		ORDER BY created_at DESC
		LIMIT $2`

	if err := a.db.SelectContext(ctx, &rows, query, agentName, limit); err != nil {
		return nil, errors.Wrap(err, "list tool invocations")
	}

	records := make([]agents.InvocationRecord, 0, len(rows))
	for _, row := range rows {
		record, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// PurgeOlderThan deletes archived records created before the cutoff and
// returns how many were removed.
func (a *InvocationArchive) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx, `DELETE FROM tool_invocations WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "purge tool invocations")
	}
	return res.RowsAffected()
}
