package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tenantry/pkg/storage"
)

func TestNewDBLogger(t *testing.T) {
	t.Run("nil database", func(t *testing.T) {
		logger, err := NewDBLogger(nil)
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "database connection is required")
	})
}

func TestDBLogger_LogAndSearch(t *testing.T) {
	ctx := context.Background()
	db := storage.OpenTestDB(t, Migrations)
	logger, err := NewDBLogger(db)
	require.NoError(t, err)

	actor := int64(1)
	first := NewEvent(ctx, EventTypeTeamCreate, EventStatusSuccess).ForTeam(10, ResourceTypeTeam, 10)
	first.ActorID = &actor
	first.Message = "team created"
	require.NoError(t, logger.Log(ctx, first))
	assert.NotZero(t, first.ID)

	second := NewEvent(ctx, EventTypeMemberAdd, EventStatusSuccess).
		ForTeam(10, ResourceTypeMembership, 2).
		With("role", "editor")
	require.NoError(t, logger.Log(ctx, second))

	other := NewEvent(ctx, EventTypeMemberAdd, EventStatusSuccess).ForTeam(11, ResourceTypeMembership, 3)
	require.NoError(t, logger.Log(ctx, other))

	team := int64(10)
	events, err := logger.Search(ctx, SearchFilter{TeamID: &team})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventTypeMemberAdd, events[0].EventType, "newest first")
	assert.Equal(t, "editor", events[0].Metadata["role"])
	assert.Equal(t, "team created", events[1].Message)
	require.NotNil(t, events[1].ActorID)
	assert.Equal(t, actor, *events[1].ActorID)

	events, err = logger.Search(ctx, SearchFilter{EventType: EventTypeMemberAdd, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	events, err = logger.Search(ctx, SearchFilter{ActorID: &actor, Status: EventStatusSuccess})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	t.Run("cleanup", func(t *testing.T) {
		old := NewEvent(ctx, EventTypeTeamDelete, EventStatusSuccess)
		old.Timestamp = time.Now().UTC().Add(-48 * time.Hour)
		require.NoError(t, logger.Log(ctx, old))

		n, err := logger.Cleanup(ctx, time.Now().UTC().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("nil event", func(t *testing.T) {
		assert.ErrorIs(t, logger.Log(ctx, nil), storage.ErrInvalidArgument)
	})
}

func TestDBLogger_InsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO audit_logs").WillReturnError(errors.New("connection reset"))

	logger, err := NewDBLogger(db)
	require.NoError(t, err)
	err = logger.Log(context.Background(), NewEvent(context.Background(), EventTypeTeamCreate, EventStatusSuccess))
	assert.ErrorContains(t, err, "failed to insert audit log")
	assert.NoError(t, mock.ExpectationsWereMet())
}
