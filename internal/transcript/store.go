// Package transcript records conversation traffic into SQLite. A Store is a
// listener: every message the driver sends or receives becomes one row.
package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/petasbytes/go-conv/conv"
)

// Store wraps *sql.DB for transcript storage.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Row is one stored message.
type Row struct {
	ConvID     string
	Seq        int
	Role       conv.Role
	Content    string
	ToolCallID string
	CreatedAt  time.Time
	Message    conv.Message
}

// Open opens the SQLite database at path and applies the schema. Creates file if missing.
func Open(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer keeps per-conversation sequence numbers consistent.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply transcript schema: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, log: log}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert appends m to convID's transcript and returns its sequence number,
// starting at 1.
func (s *Store) Insert(ctx context.Context, convID string, m conv.Message) (int, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return 0, err
	}
	var calls sql.NullString
	if tc := m.ToolCalls(); len(tc) > 0 {
		b, err := json.Marshal(tc)
		if err != nil {
			return 0, err
		}
		calls = sql.NullString{String: string(b), Valid: true}
	}

	var seq int
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO messages (conv_id, seq, role, content, tool_call_id, tool_calls, message)
		 SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ? FROM messages WHERE conv_id = ?
		 RETURNING seq`,
		convID, string(m.Role()), m.Text(), m.ToolCallID(), calls, string(raw), convID,
	).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// Rows returns convID's transcript ordered by sequence.
func (s *Store) Rows(ctx context.Context, convID string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, role, content, tool_call_id, message, created_at
		 FROM messages WHERE conv_id = ? ORDER BY seq ASC`, convID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r := Row{ConvID: convID}
		var role, raw string
		if err := rows.Scan(&r.Seq, &role, &r.Content, &r.ToolCallID, &raw, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Role = conv.Role(role)
		if err := json.Unmarshal([]byte(raw), &r.Message); err != nil {
			return nil, fmt.Errorf("decode message %s/%d: %w", convID, r.Seq, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Messages returns convID's messages in order.
func (s *Store) Messages(ctx context.Context, convID string) ([]conv.Message, error) {
	rows, err := s.Rows(ctx, convID)
	if err != nil {
		return nil, err
	}
	out := make([]conv.Message, len(rows))
	for i, r := range rows {
		out[i] = r.Message
	}
	return out, nil
}

// Conversations lists recorded conversation ids, most recently active first.
func (s *Store) Conversations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT conv_id FROM messages GROUP BY conv_id ORDER BY MAX(id) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) Before(ctx context.Context, convID string, msgs []conv.Message) {
	for _, m := range msgs {
		s.record(ctx, convID, m)
	}
}

func (s *Store) After(ctx context.Context, convID string, msg conv.Message) {
	s.record(ctx, convID, msg)
}

func (s *Store) record(ctx context.Context, convID string, m conv.Message) {
	if _, err := s.Insert(ctx, convID, m); err != nil {
		s.log.Warn("record transcript", "conv_id", convID, "role", m.Role(), "error", err)
	}
}
