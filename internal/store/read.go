package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/dagbridge/internal/ir"
	"github.com/roach88/dagbridge/internal/launch"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// PlanSummary is one row of the plan history.
type PlanSummary struct {
	Hash    string `json:"hash"`
	Batch   string `json:"batch"`
	Flow    string `json:"flow"`
	Version string `json:"version"`
	Units   int    `json:"units"`
}

// Launch is a stored launch. Status is nil while the launch has not finished.
type Launch struct {
	ExecutionID string            `json:"execution_id"`
	BatchID     string            `json:"batch_id"`
	FlowID      string            `json:"flow_id"`
	PlanPath    string            `json:"plan_path"`
	Rounds      int               `json:"rounds"`
	Arguments   map[string]string `json:"arguments"`
	Status      *launch.Status    `json:"-"`
	Seq         int64             `json:"seq"`
	FinishedSeq int64             `json:"finished_seq,omitempty"`
}

// StatusText returns the launch status, or "running" when unfinished.
func (l Launch) StatusText() string {
	if l.Status == nil {
		return "running"
	}
	return l.Status.String()
}

// Round is a stored round.
type Round struct {
	ExecutionID string            `json:"execution_id"`
	Index       int               `json:"index"`
	StageID     string            `json:"stage_id"`
	Bindings    map[string]string `json:"bindings"`
	Status      launch.Status     `json:"-"`
	Duration    time.Duration     `json:"-"`
	Seq         int64             `json:"seq"`
}

// ReadPlan returns the plan with the given hash.
func (s *Store) ReadPlan(ctx context.Context, hash string) (*ir.ExecutionPlan, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM plans WHERE hash = ?`, hash).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("plan %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return ir.DecodePlan([]byte(body))
}

// ListPlans returns all stored plans ordered by batch, flow, then hash.
// Returns an empty slice (not nil) if none are stored.
func (s *Store) ListPlans(ctx context.Context) ([]PlanSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.hash, p.batch, p.flow, p.version, COUNT(u.name)
		FROM plans p
		LEFT JOIN units u ON u.plan_hash = p.hash
		GROUP BY p.hash
		ORDER BY p.batch COLLATE BINARY, p.flow COLLATE BINARY, p.hash COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	plans := []PlanSummary{}
	for rows.Next() {
		var p PlanSummary
		if err := rows.Scan(&p.Hash, &p.Batch, &p.Flow, &p.Version, &p.Units); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return plans, nil
}

// ReadLaunches returns launches ordered by seq. An empty batchID returns
// launches of every batch.
func (s *Store) ReadLaunches(ctx context.Context, batchID string) ([]Launch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT execution_id, batch_id, flow_id, plan_path, rounds, arguments, status, seq, finished_seq
		FROM launches
		WHERE ? = '' OR batch_id = ?
		ORDER BY seq ASC, execution_id COLLATE BINARY ASC
	`, batchID, batchID)
	if err != nil {
		return nil, fmt.Errorf("query launches: %w", err)
	}
	defer rows.Close()

	launches := []Launch{}
	for rows.Next() {
		l, err := scanLaunch(rows)
		if err != nil {
			return nil, err
		}
		launches = append(launches, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate launches: %w", err)
	}
	return launches, nil
}

// ReadRounds returns the rounds of one launch ordered by seq.
func (s *Store) ReadRounds(ctx context.Context, executionID string) ([]Round, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT execution_id, round_index, stage_id, bindings, status, duration_ms, seq
		FROM rounds
		WHERE execution_id = ?
		ORDER BY seq ASC, round_index ASC
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	rounds := []Round{}
	for rows.Next() {
		var (
			r          Round
			bindings   string
			status     string
			durationMS int64
		)
		if err := rows.Scan(&r.ExecutionID, &r.Index, &r.StageID, &bindings, &status, &durationMS, &r.Seq); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		if r.Bindings, err = unmarshalStrings(bindings); err != nil {
			return nil, err
		}
		if r.Status, err = launch.ParseStatus(status); err != nil {
			return nil, fmt.Errorf("round %s/%d: %w", r.ExecutionID, r.Index, err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rounds: %w", err)
	}
	return rounds, nil
}

// LastSeq returns the highest sequence number recorded so far, or 0.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(
			COALESCE((SELECT MAX(seq) FROM launches), 0),
			COALESCE((SELECT MAX(finished_seq) FROM launches), 0),
			COALESCE((SELECT MAX(seq) FROM rounds), 0)
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

func scanLaunch(rows *sql.Rows) (Launch, error) {
	var (
		l           Launch
		args        string
		status      sql.NullString
		finishedSeq sql.NullInt64
	)
	if err := rows.Scan(&l.ExecutionID, &l.BatchID, &l.FlowID, &l.PlanPath, &l.Rounds, &args, &status, &l.Seq, &finishedSeq); err != nil {
		return Launch{}, fmt.Errorf("scan launch: %w", err)
	}

	var err error
	if l.Arguments, err = unmarshalStrings(args); err != nil {
		return Launch{}, err
	}
	if status.Valid {
		st, err := launch.ParseStatus(status.String)
		if err != nil {
			return Launch{}, fmt.Errorf("launch %s: %w", l.ExecutionID, err)
		}
		l.Status = &st
	}
	l.FinishedSeq = finishedSeq.Int64
	return l, nil
}
