package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/core"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/engine"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/observability"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"

	DefaultListLimit = 50
	MaxListLimit     = 500
)

// EscalationRecord is one row of the escalation audit log.
type EscalationRecord struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	SenderID       string     `json:"senderId"`
	Level          core.Level `json:"level"`
	Confidence     float64    `json:"confidence"`
	Keywords       []string   `json:"keywords"`
	Phrases        []string   `json:"phrases"`
	Trend          core.Trend `json:"trend"`
	Message        string     `json:"message"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Repository is the append-only escalation audit log. It is never read back
// into conversation state.
type Repository struct {
	db     *sql.DB
	driver string
	log    *slog.Logger
}

func NewRepository(driver, dsn string) (*Repository, error) {
	if driver != DriverMySQL && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := newRepository(db, driver)
	if err := repo.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func newRepository(db *sql.DB, driver string) *Repository {
	return &Repository{
		db:     db,
		driver: driver,
		log:    observability.WithFields("component", "db", "driver", driver),
	}
}

func (r *Repository) initSchema(ctx context.Context) error {
	r.log.Info("initializing schema")
	query := `
	CREATE TABLE IF NOT EXISTS escalations (
		id VARCHAR(36) PRIMARY KEY,
		conversation_id VARCHAR(255) NOT NULL,
		sender_id VARCHAR(255),
		level VARCHAR(16) NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		keywords TEXT,
		phrases TEXT,
		trend VARCHAR(16),
		message TEXT,
		created_at BIGINT NOT NULL
	)`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create escalations table: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveEscalation appends esc to the audit log. A missing id gets a fresh uuid.
func (r *Repository) SaveEscalation(ctx context.Context, esc engine.Escalation) error {
	id := esc.ID
	if id == "" {
		id = uuid.New().String()
	}
	keywords, err := json.Marshal(nonNil(esc.Keywords))
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}
	phrases, err := json.Marshal(nonNil(esc.Phrases))
	if err != nil {
		return fmt.Errorf("failed to marshal phrases: %w", err)
	}

	query := r.rebind(`INSERT INTO escalations
		(id, conversation_id, sender_id, level, confidence, keywords, phrases, trend, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.db.ExecContext(ctx, query,
		id, esc.ConversationID, esc.SenderID, string(esc.Level), esc.Confidence,
		string(keywords), string(phrases), string(esc.Trend), esc.Message, esc.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save escalation: %w", err)
	}
	return nil
}

// EscalationHook adapts SaveEscalation for engine.WithEscalationHook.
func (r *Repository) EscalationHook() engine.EscalationHook {
	return r.SaveEscalation
}

// ListEscalations returns the newest escalations first, optionally for one
// conversation. limit is clamped to [1, MaxListLimit].
func (r *Repository) ListEscalations(ctx context.Context, conversationID string, limit int) ([]EscalationRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `SELECT id, conversation_id, sender_id, level, confidence, keywords, phrases, trend, message, created_at
		FROM escalations`
	args := []any{}
	if conversationID != "" {
		query += ` WHERE conversation_id = ?`
		args = append(args, conversationID)
	}
	query += ` ORDER BY created_at DESC LIMIT ` + strconv.Itoa(limit)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalations: %w", err)
	}
	defer rows.Close()

	records := []EscalationRecord{}
	for rows.Next() {
		var (
			rec                    EscalationRecord
			sender, trend, message sql.NullString
			keywords, phrases, lvl sql.NullString
			createdAt              int64
		)
		if err := rows.Scan(&rec.ID, &rec.ConversationID, &sender, &lvl, &rec.Confidence,
			&keywords, &phrases, &trend, &message, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}
		rec.SenderID = sender.String
		rec.Level = core.Level(lvl.String)
		rec.Trend = core.Trend(trend.String)
		rec.Message = message.String
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		rec.Keywords = r.decodeList(rec.ID, keywords)
		rec.Phrases = r.decodeList(rec.ID, phrases)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate escalations: %w", err)
	}
	return records, nil
}

func (r *Repository) decodeList(id string, raw sql.NullString) []string {
	out := []string{}
	if !raw.Valid || raw.String == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		r.log.Warn("failed to decode list column", "escalation_id", id, "error", err)
		return []string{}
	}
	return out
}

// rebind rewrites ? placeholders as $n for postgres.
func (r *Repository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
