package observer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink persists the trace as JSONB rows, one of the pluggable
// record_search:io_format backends.
type PostgresSink struct {
	pool  *pgxpool.Pool
	runID string
}

// NewPostgresSink returns a sink writing into search_traces, keyed by
// runID so multiple searches can share one database.
func NewPostgresSink(pool *pgxpool.Pool, runID string) *PostgresSink {
	return &PostgresSink{pool: pool, runID: runID}
}

func (s *PostgresSink) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS search_traces (
		run_id TEXT NOT NULL,
		seq INT NOT NULL,
		inputs JSONB NOT NULL,
		outputs JSONB NOT NULL,
		PRIMARY KEY (run_id, seq)
	);`)
	if err != nil {
		return fmt.Errorf("postgres sink: init schema: %w", err)
	}
	return nil
}

func (s *PostgresSink) Write(ctx context.Context, inputNames, outputNames []string, rows []Row) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres sink: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM search_traces WHERE run_id=$1`, s.runID); err != nil {
		return fmt.Errorf("postgres sink: clear: %w", err)
	}
	for i, row := range rows {
		inputs, err := json.Marshal(namedRow(inputNames, row.Inputs))
		if err != nil {
			return err
		}
		outputs, err := json.Marshal(namedRow(outputNames, row.Outputs))
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO search_traces (run_id, seq, inputs, outputs) VALUES ($1,$2,$3,$4)`,
			s.runID, i, inputs, outputs); err != nil {
			return fmt.Errorf("postgres sink: insert row %d: %w", i, err)
		}
	}
	return tx.Commit(ctx)
}

func namedRow(names []string, values []float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	for i, v := range values {
		if i < len(names) {
			out[names[i]] = v
		} else {
			out[fmt.Sprintf("col_%d", i)] = v
		}
	}
	return out
}

var _ Sink = (*PostgresSink)(nil)
