package store

import (
	"context"
	"fmt"

	"github.com/roach88/dagbridge/internal/ir"
	"github.com/roach88/dagbridge/internal/launch"
)

var _ launch.Recorder = (*Store)(nil)

// WritePlan stores a compiled plan and its units.
// Uses ON CONFLICT DO NOTHING: a plan hash identifies its content, so
// writing the same plan twice is a no-op.
func (s *Store) WritePlan(ctx context.Context, plan *ir.ExecutionPlan) error {
	if plan.Hash == "" {
		return fmt.Errorf("write plan: plan has no hash")
	}
	body, err := ir.EncodePlan(plan)
	if err != nil {
		return fmt.Errorf("write plan: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write plan: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO plans (hash, batch, flow, version, body)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, plan.Hash, plan.Batch, plan.Flow, plan.Version, string(body)); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}

	for _, u := range plan.Units {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO units (plan_hash, name, category, fingerprint)
			VALUES (?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, plan.Hash, u.Name, u.Category, u.Fingerprint); err != nil {
			return fmt.Errorf("write unit %s: %w", u.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write plan: commit: %w", err)
	}
	return nil
}

// StartLaunch implements launch.Recorder.
// The launch is stored without a status until FinishLaunch.
func (s *Store) StartLaunch(ctx context.Context, rec launch.LaunchRecord) error {
	argsJSON, err := marshalStrings(rec.Arguments)
	if err != nil {
		return fmt.Errorf("start launch: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO launches
		(execution_id, batch_id, flow_id, plan_path, rounds, arguments, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ExecutionID,
		rec.BatchID,
		rec.FlowID,
		rec.PlanPath,
		rec.Rounds,
		argsJSON,
		rec.Seq,
	)
	if err != nil {
		return fmt.Errorf("start launch: %w", err)
	}
	return nil
}

// RecordRound implements launch.Recorder.
// The launch must have been started (foreign key constraint).
func (s *Store) RecordRound(ctx context.Context, rec launch.RoundRecord) error {
	bindingsJSON, err := marshalStrings(rec.Bindings)
	if err != nil {
		return fmt.Errorf("record round: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rounds
		(execution_id, round_index, stage_id, bindings, status, duration_ms, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ExecutionID,
		rec.Index,
		rec.StageID,
		bindingsJSON,
		rec.Status.String(),
		rec.Duration.Milliseconds(),
		rec.Seq,
	)
	if err != nil {
		return fmt.Errorf("record round: %w", err)
	}
	return nil
}

// FinishLaunch implements launch.Recorder.
func (s *Store) FinishLaunch(ctx context.Context, executionID string, status launch.Status, seq int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE launches SET status = ?, finished_seq = ?
		WHERE execution_id = ?
	`, status.String(), seq, executionID)
	if err != nil {
		return fmt.Errorf("finish launch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish launch: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish launch %s: %w", executionID, ErrNotFound)
	}
	return nil
}
