package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/core"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/engine"
)

func newMockRepo(t *testing.T, driverName string) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return newRepository(conn, driverName), mock
}

func sampleEscalation() engine.Escalation {
	return engine.Escalation{
		ID:             "e1",
		ConversationID: "c1",
		SenderID:       "u1",
		Level:          core.LevelCritical,
		Confidence:     0.95,
		Keywords:       []string{"suicide"},
		Phrases:        []string{"kill myself"},
		Trend:          core.TrendEscalating,
		Message:        "I want to kill myself",
		At:             time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestInitSchema(t *testing.T) {
	repo, mock := newMockRepo(t, DriverMySQL)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS escalations").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.initSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveEscalation_MySQL(t *testing.T) {
	repo, mock := newMockRepo(t, DriverMySQL)
	esc := sampleEscalation()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO escalations")).
		WithArgs("e1", "c1", "u1", "critical", 0.95, `["suicide"]`, `["kill myself"]`,
			"escalating", "I want to kill myself", esc.At.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.SaveEscalation(context.Background(), esc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveEscalation_PostgresPlaceholders(t *testing.T) {
	repo, mock := newMockRepo(t, DriverPostgres)
	esc := sampleEscalation()
	esc.ID = ""
	esc.Phrases = nil

	args := make([]driver.Value, 10)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)")).
		WithArgs(args...).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.SaveEscalation(context.Background(), esc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveEscalation_WrapsError(t *testing.T) {
	repo, mock := newMockRepo(t, DriverMySQL)
	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO escalations").WillReturnError(boom)

	err := repo.SaveEscalation(context.Background(), sampleEscalation())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestListEscalations(t *testing.T) {
	repo, mock := newMockRepo(t, DriverMySQL)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "conversation_id", "sender_id", "level", "confidence",
		"keywords", "phrases", "trend", "message", "created_at"}).
		AddRow("e2", "c1", "u1", "high", 0.85, `["depression"]`, `["hopeless"]`, "concerning", "hopeless", at.UnixMilli()).
		AddRow("e1", "c1", nil, "critical", 0.95, "not json", nil, nil, nil, at.Add(-time.Minute).UnixMilli())

	mock.ExpectQuery(regexp.QuoteMeta("WHERE conversation_id = ? ORDER BY created_at DESC LIMIT 50")).
		WithArgs("c1").
		WillReturnRows(rows)

	got, err := repo.ListEscalations(context.Background(), "c1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, core.LevelHigh, got[0].Level)
	assert.Equal(t, []string{"hopeless"}, got[0].Phrases)
	assert.Equal(t, at, got[0].CreatedAt)

	assert.Equal(t, "", got[1].SenderID)
	assert.Equal(t, []string{}, got[1].Keywords)
	assert.Equal(t, []string{}, got[1].Phrases)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListEscalations_ClampsLimit(t *testing.T) {
	repo, mock := newMockRepo(t, DriverPostgres)
	mock.ExpectQuery(regexp.QuoteMeta("FROM escalations ORDER BY created_at DESC LIMIT 500")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := repo.ListEscalations(context.Background(), "", 10_000)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRebind(t *testing.T) {
	pg := &Repository{driver: DriverPostgres}
	my := &Repository{driver: DriverMySQL}

	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))
	assert.Equal(t, "a = ? AND b = ?", my.rebind("a = ? AND b = ?"))
}

func TestNewRepository_RejectsUnknownDriver(t *testing.T) {
	_, err := NewRepository("sqlite", "file::memory:")
	assert.Error(t, err)
}
