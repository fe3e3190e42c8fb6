package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wdbm/blocktogether/internal/types/action"
)

type ActionService struct {
	db *pgxpool.Pool
}

func NewActionService(db *pgxpool.Pool) *ActionService {
	return &ActionService{db: db}
}

// EnqueueBlocks appends one pending block action per sink uid. Each insert
// is independent: a failed row is logged and skipped, the rest still go in.
// Duplicates are not filtered here, classification cancels them later.
func (s *ActionService) EnqueueBlocks(ctx context.Context, sourceUID string, sinkUIDs []string) int {
	query := `
	INSERT INTO actions (id, source_uid, sink_uid, kind, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	accepted := 0
	for _, sinkUID := range sinkUIDs {
		now := time.Now()
		_, err := s.db.Exec(
			ctx,
			query,
			uuid.New(),
			sourceUID,
			sinkUID,
			action.KindBlock,
			action.StatusPending,
			now,
			now,
		)
		if err != nil {
			log.Printf("EnqueueBlocks: failed to queue block %s -> %s: %v", sourceUID, sinkUID, err)
			continue
		}
		accepted++
	}

	return accepted
}

// PendingSources returns one representative pending block action per
// distinct source uid, up to limit. Only the source_uid column matters to
// callers; which row represents a source is left to the database.
func (s *ActionService) PendingSources(ctx context.Context, limit int) ([]action.Action, error) {
	query := `
	SELECT DISTINCT ON (source_uid) id, source_uid, sink_uid, kind, status, created_at, updated_at
	FROM actions
	WHERE status = $1 AND kind = $2
	ORDER BY source_uid
	LIMIT $3
	`

	rows, err := s.db.Query(ctx, query, action.StatusPending, action.KindBlock, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending sources: %w", err)
	}
	defer rows.Close()

	var reps []action.Action
	for rows.Next() {
		var a action.Action
		err := rows.Scan(&a.ID, &a.SourceUID, &a.SinkUID, &a.Kind, &a.Status, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending source row: %w", err)
		}
		reps = append(reps, a)
	}

	return reps, rows.Err()
}

// PendingForAccount loads up to limit pending block actions for one source,
// oldest last-update first, so retries line up with rate-limit window resets
// instead of busy-polling every pass.
func (s *ActionService) PendingForAccount(ctx context.Context, sourceUID string, limit int) ([]*action.Action, error) {
	query := `
	SELECT id, source_uid, sink_uid, kind, status, created_at, updated_at
	FROM actions
	WHERE source_uid = $1 AND status = $2 AND kind = $3
	ORDER BY updated_at ASC
	LIMIT $4
	`

	rows, err := s.db.Query(ctx, query, sourceUID, action.StatusPending, action.KindBlock, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending actions for %s: %w", sourceUID, err)
	}
	defer rows.Close()

	var batch []*action.Action
	for rows.Next() {
		a := &action.Action{}
		err := rows.Scan(&a.ID, &a.SourceUID, &a.SinkUID, &a.Kind, &a.Status, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending action row: %w", err)
		}
		batch = append(batch, a)
	}

	return batch, rows.Err()
}

// SaveStatus persists the action's current status.
func (s *ActionService) SaveStatus(ctx context.Context, a *action.Action) error {
	query := `
	UPDATE actions
	SET status = $2, updated_at = NOW()
	WHERE id = $1
	`

	_, err := s.db.Exec(ctx, query, a.ID, a.Status)
	if err != nil {
		return fmt.Errorf("failed to save action %s: %w", a.ID, err)
	}

	return nil
}

// ListActions returns queued actions for a source, newest first, optionally
// filtered by status.
func (s *ActionService) ListActions(ctx context.Context, sourceUID string, status action.ActionStatus, limit int) ([]*action.Action, error) {
	query := `
	SELECT id, source_uid, sink_uid, kind, status, created_at, updated_at
	FROM actions
	WHERE source_uid = $1 AND ($2 = '' OR status = $2)
	ORDER BY created_at DESC
	LIMIT $3
	`

	rows, err := s.db.Query(ctx, query, sourceUID, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions for %s: %w", sourceUID, err)
	}
	defer rows.Close()

	actions := []*action.Action{}
	for rows.Next() {
		a := &action.Action{}
		err := rows.Scan(&a.ID, &a.SourceUID, &a.SinkUID, &a.Kind, &a.Status, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action row: %w", err)
		}
		actions = append(actions, a)
	}

	return actions, rows.Err()
}

// StatusCounts returns how many of the source's actions sit in each status.
func (s *ActionService) StatusCounts(ctx context.Context, sourceUID string) ([]action.StatusCount, error) {
	query := `
	SELECT status, COUNT(*)
	FROM actions
	WHERE source_uid = $1
	GROUP BY status
	ORDER BY status
	`

	rows, err := s.db.Query(ctx, query, sourceUID)
	if err != nil {
		return nil, fmt.Errorf("failed to count actions for %s: %w", sourceUID, err)
	}
	defer rows.Close()

	counts := []action.StatusCount{}
	for rows.Next() {
		var c action.StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan status count row: %w", err)
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}
