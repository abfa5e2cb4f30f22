package repositories

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"staybackend/internal/domain/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOutboxMock(t *testing.T) (sqlmock.Sqlmock, OutboxRepository) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return mock, OutboxRepository{DB: db}
}

func TestReserveOutboxLeasesBatch(t *testing.T) {
	mock, repo := newOutboxMock(t)
	created := time.Date(2025, 9, 20, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, kind, aggregate_id, payload, attempts, created_at\s+FROM outbox_events`).
		WithArgs(sqlmock.AnyArg(), 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "aggregate_id", "payload", "attempts", "created_at"}).
			AddRow("e1", "notification", 42, []byte(`{"userId":9}`), 0, created).
			AddRow("e2", "activity", 42, []byte(`{}`), 2, created))
	mock.ExpectExec(`UPDATE outbox_events\s+SET attempts = attempts \+ 1, reserved_until = \?\s+WHERE id IN \(\?,\?\)`).
		WithArgs(sqlmock.AnyArg(), "e1", "e2").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	events, err := repo.ReserveOutbox(context.Background(), 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Attempts)
	assert.Equal(t, 3, events[1].Attempts)
	require.NotNil(t, events[0].ReservedUntil)
	assert.JSONEq(t, `{"userId":9}`, string(events[0].Payload))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveOutboxEmpty(t *testing.T) {
	mock, repo := newOutboxMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM outbox_events`).
		WithArgs(sqlmock.AnyArg(), 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "aggregate_id", "payload", "attempts", "created_at"}))
	mock.ExpectCommit()

	events, err := repo.ReserveOutbox(context.Background(), 0, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, events)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOutboxFailedTruncatesError(t *testing.T) {
	mock, repo := newOutboxMock(t)
	retryAt := time.Date(2025, 9, 20, 10, 5, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE outbox_events SET last_error = \?, reserved_until = \? WHERE id = \?`).
		WithArgs(strings.Repeat("x", 1000), retryAt, "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkOutboxFailed(context.Background(), "e1", strings.Repeat("x", 1500), retryAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueOutboxRejectsIncompleteEvents(t *testing.T) {
	mock, repo := newOutboxMock(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := repo.EnqueueOutbox(context.Background(), models.OutboxEvent{Kind: models.OutboxKindActivity})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOutboxDead(t *testing.T) {
	mock, repo := newOutboxMock(t)

	mock.ExpectExec(`UPDATE outbox_events SET status = 'dead', last_error = \?, reserved_until = NULL WHERE id = \?`).
		WithArgs("unknown outbox kind", "e9").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkOutboxDead(context.Background(), "e9", "unknown outbox kind"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeOutboxDeletesOnlyDelivered(t *testing.T) {
	mock, repo := newOutboxMock(t)
	before := time.Date(2025, 9, 13, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`DELETE FROM outbox_events WHERE status = 'done' AND created_at < \? ORDER BY created_at LIMIT \?`).
		WithArgs(before, 1000).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.PurgeOutbox(context.Background(), before, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTruncateErrorKeepsValidUTF8(t *testing.T) {
	s := strings.Repeat("x", 999) + "é"
	out := truncateError(s)
	assert.Len(t, out, 999)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "short", truncateError("short"))
}
