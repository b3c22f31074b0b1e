package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/rivofx/newpulse/internal/models"
	"github.com/rivofx/newpulse/internal/store"
)

func TestTranslate(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"record not found", gorm.ErrRecordNotFound, store.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: codeUniqueViolation}, store.ErrConflict},
		{"wrapped unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: codeUniqueViolation}), store.ErrConflict},
		{"foreign key violation", &pgconn.PgError{Code: codeForeignKeyViolation}, store.ErrNotFound},
		{"malformed uuid", &pgconn.PgError{Code: codeInvalidText}, store.ErrNotFound},
		{"other", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.in)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}

	var pgErr *pgconn.PgError
	assert.NotErrorIs(t, translate(&pgconn.PgError{Code: "40001"}), store.ErrConflict)
	assert.True(t, errors.As(translate(&pgconn.PgError{Code: "40001"}), &pgErr), "unknown codes pass through")
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\dir`, escapeLike(`c:\dir`))
	assert.Equal(t, "alice", escapeLike("alice"))
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	assert.Equal(t, "afk", nullable("afk"))
}

func TestConvCreatedAtFallsBackToJoinedAt(t *testing.T) {
	joined := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	created := time.Date(2023, 5, 6, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, joined, convCreatedAt(models.ConversationMember{JoinedAt: joined}))
	assert.Equal(t, created, convCreatedAt(models.ConversationMember{
		JoinedAt:     joined,
		Conversation: &models.Conversation{CreatedAt: created},
	}))
}

func TestPublishedTables(t *testing.T) {
	assert.True(t, publishedTables["friendships"])
	assert.True(t, publishedTables["private_messages"])
	assert.True(t, publishedTables["global_messages"])
	assert.False(t, publishedTables["profiles"], "profile edits are not streamed")
	assert.False(t, publishedTables["conversation_members"], "membership events are published after commit")
}
