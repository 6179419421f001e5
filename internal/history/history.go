// Package history is an append-only ledger of reconciliation outcomes. The
// reconciler never reads it; it exists for operators and the HTTP API.
package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edvin/svcctl/internal/model"
)

// DB defines the database operations used by the store.
// *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Sources of a recorded run.
const (
	SourceAPI      = "api"
	SourceWorkflow = "workflow"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Run is a recorded reconciliation.
type Run struct {
	Source string `json:"source"`
	model.Report
}

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	Cluster string
	Service model.ServiceType
	Limit   int
}

type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

const runColumns = `id, source, cluster, service_type, service_name, target, changed, state,
	error_kind, error_stage, error_message, actions, placements, started_at, finished_at`

// Record appends a finished run.
func (s *Store) Record(ctx context.Context, source string, rep *model.Report) error {
	actions, err := json.Marshal(nonNil(rep.Actions))
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	placements, err := json.Marshal(nonNil(rep.Placements))
	if err != nil {
		return fmt.Errorf("marshal placements: %w", err)
	}

	var errKind, errStage, errMessage *string
	if rep.Error != nil {
		errKind, errStage, errMessage = &rep.Error.Kind, &rep.Error.Stage, &rep.Error.Message
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO reconcile_runs (`+runColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		rep.RunID, source, rep.Cluster, string(rep.Service), rep.Name, string(rep.Target), rep.Changed, rep.State,
		errKind, errStage, errMessage, actions, placements, rep.StartedAt, rep.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", rep.RunID, err)
	}
	return nil
}

// Get returns one run by id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRow(ctx, `SELECT `+runColumns+` FROM reconcile_runs WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// List returns the newest runs first.
func (s *Store) List(ctx context.Context, f Filter) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM reconcile_runs WHERE true`
	args := []any{}
	argIdx := 1

	if f.Cluster != "" {
		query += fmt.Sprintf(` AND cluster = $%d`, argIdx)
		args = append(args, f.Cluster)
		argIdx++
	}
	if f.Service != "" {
		query += fmt.Sprintf(` AND service_type = $%d`, argIdx)
		args = append(args, string(f.Service))
		argIdx++
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(row interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		r                           Run
		service, target             string
		errKind, errStage, errMsg   *string
		actionsJSON, placementsJSON []byte
	)
	err := row.Scan(&r.RunID, &r.Source, &r.Cluster, &service, &r.Name, &target, &r.Changed, &r.State,
		&errKind, &errStage, &errMsg, &actionsJSON, &placementsJSON, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, err
	}
	r.Service = model.ServiceType(service)
	r.Target = model.Target(target)
	if errKind != nil || errMsg != nil {
		r.Error = &model.ErrorReport{Kind: deref(errKind), Stage: deref(errStage), Message: deref(errMsg)}
	}
	if len(actionsJSON) > 0 {
		if err := json.Unmarshal(actionsJSON, &r.Actions); err != nil {
			return nil, fmt.Errorf("decode actions: %w", err)
		}
	}
	if len(placementsJSON) > 0 {
		if err := json.Unmarshal(placementsJSON, &r.Placements); err != nil {
			return nil, fmt.Errorf("decode placements: %w", err)
		}
	}
	return &r, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
