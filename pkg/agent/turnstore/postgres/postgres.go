// Package postgres implements turnstore.Store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trailpost/shopagent/pkg/agent/turnstore"
	"github.com/trailpost/shopagent/pkg/agent/types"
)

// Store implements turnstore.Store with PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL turn store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Append(ctx context.Context, conversationID string, role types.Role, content string) (types.Turn, error) {
	// Sequence assignment happens inside the INSERT so two concurrent
	// appends cannot claim the same position; the UNIQUE constraint on
	// (conversation_id, seq) backs this up.
	query := `
		INSERT INTO turns (conversation_id, seq, role, content, created_at)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, NOW()
		FROM turns WHERE conversation_id = $1
		RETURNING seq, created_at
	`

	turn := types.Turn{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}

	err := s.pool.QueryRow(ctx, query, conversationID, string(role), content).
		Scan(&turn.Seq, &turn.CreatedAt)
	if err != nil {
		return types.Turn{}, fmt.Errorf("appending turn: %w", err)
	}

	return turn, nil
}

func (s *Store) Load(ctx context.Context, conversationID string) ([]types.Turn, error) {
	query := `
		SELECT conversation_id, seq, role, content, created_at
		FROM turns
		WHERE conversation_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []types.Turn
	for rows.Next() {
		var t types.Turn
		var role string
		if err := rows.Scan(&t.ConversationID, &t.Seq, &role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		t.Role = types.Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading turns: %w", err)
	}

	return turns, nil
}

func (s *Store) Summary(ctx context.Context, conversationID string) (turnstore.Summary, error) {
	query := `
		SELECT summary, up_to_seq, updated_at
		FROM conversation_summaries
		WHERE conversation_id = $1
	`

	var sum turnstore.Summary
	err := s.pool.QueryRow(ctx, query, conversationID).
		Scan(&sum.Text, &sum.UpToSeq, &sum.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return turnstore.Summary{}, nil
	}
	if err != nil {
		return turnstore.Summary{}, fmt.Errorf("scanning summary: %w", err)
	}

	return sum, nil
}

func (s *Store) SaveSummary(ctx context.Context, conversationID string, sum turnstore.Summary) error {
	if sum.UpdatedAt.IsZero() {
		sum.UpdatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO conversation_summaries (conversation_id, summary, up_to_seq, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (conversation_id) DO UPDATE SET
			summary = EXCLUDED.summary,
			up_to_seq = EXCLUDED.up_to_seq,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := s.pool.Exec(ctx, query, conversationID, sum.Text, sum.UpToSeq, sum.UpdatedAt); err != nil {
		return fmt.Errorf("saving summary: %w", err)
	}
	return nil
}

// Migration returns the SQL to create the turn log tables.
func Migration() string {
	return `
		CREATE TABLE IF NOT EXISTS turns (
			id BIGSERIAL PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			seq BIGINT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (conversation_id, seq)
		);

		CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns (conversation_id, seq);

		CREATE TABLE IF NOT EXISTS conversation_summaries (
			conversation_id TEXT PRIMARY KEY,
			summary TEXT NOT NULL,
			up_to_seq BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`
}
