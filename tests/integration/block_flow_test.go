package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdbm/blocktogether/internal/types/account"
	"github.com/wdbm/blocktogether/internal/types/action"
	"github.com/wdbm/blocktogether/internal/types/relationship"
	"github.com/wdbm/blocktogether/services"
	"github.com/wdbm/blocktogether/tests/helpers"
)

// fakePlatform stands in for the Twitter API so the flow test exercises
// the real store queries without touching the network.
type fakePlatform struct {
	relationships []relationship.Relationship
	blockCalls    []string
}

func (f *fakePlatform) LookupRelationships(ctx context.Context, creds account.Credentials, sinkUIDs []string) ([]relationship.Relationship, error) {
	return f.relationships, nil
}

func (f *fakePlatform) CreateBlock(ctx context.Context, creds account.Credentials, sinkUID string) (*relationship.Relationship, error) {
	f.blockCalls = append(f.blockCalls, sinkUID)
	return &relationship.Relationship{UID: sinkUID, ScreenName: "blocked"}, nil
}

func TestEnqueueAndProcessFlow(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	const sourceUID = "itest_source_1"

	helpers.SeedAccount(t, pool, sourceUID, "itest_user", "itest_unblocked")

	actionService := services.NewActionService(pool)
	accountService := services.NewAccountService(pool)

	// Enqueue four targets covering distinct outcomes.
	accepted := actionService.EnqueueBlocks(context.Background(), sourceUID, []string{
		"itest_followed",  // following -> cancelled
		"itest_clear",     // clear -> blocked
		"itest_unblocked", // suppressed -> cancelled
		"itest_suspended", // absent from lookup -> deferred
	})
	require.Equal(t, 4, accepted)

	platform := &fakePlatform{
		relationships: []relationship.Relationship{
			{UID: "itest_followed", Connections: []string{"following"}},
			{UID: "itest_clear", Connections: []string{}},
			{UID: "itest_unblocked", Connections: []string{}},
		},
	}

	engine := services.NewBlockEngine(actionService, accountService, platform)
	engine.RunPass(context.Background())

	assert.Equal(t, []string{"itest_clear"}, platform.blockCalls)

	// All four actions left the pending state with the expected outcome.
	statuses := map[string]action.ActionStatus{}
	rows, err := pool.Query(context.Background(),
		"SELECT sink_uid, status FROM actions WHERE source_uid = $1", sourceUID)
	require.NoError(t, err)
	defer rows.Close()

	for rows.Next() {
		var sinkUID string
		var status action.ActionStatus
		require.NoError(t, rows.Scan(&sinkUID, &status))
		statuses[sinkUID] = status
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, action.StatusCancelledFollowing, statuses["itest_followed"])
	assert.Equal(t, action.StatusDone, statuses["itest_clear"])
	assert.Equal(t, action.StatusCancelledUnblocked, statuses["itest_unblocked"])
	assert.Equal(t, action.StatusDeferredTargetSuspended, statuses["itest_suspended"])

	// Nothing pending is left, so the next pass selects no work.
	reps, err := actionService.PendingSources(context.Background(), 300)
	require.NoError(t, err)
	for _, rep := range reps {
		assert.NotEqual(t, sourceUID, rep.SourceUID)
	}
}

func TestPendingSelectionOrdering(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	const sourceUID = "itest_source_2"

	helpers.SeedAccount(t, pool, sourceUID, "itest_user_2")

	actionService := services.NewActionService(pool)

	accepted := actionService.EnqueueBlocks(context.Background(), sourceUID, []string{"a", "b", "c"})
	require.Equal(t, 3, accepted)

	batch, err := actionService.PendingForAccount(context.Background(), sourceUID, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2, "batch is capped at the requested limit")

	// Oldest update first.
	assert.True(t, !batch[1].UpdatedAt.Before(batch[0].UpdatedAt))

	// Resolving an action removes it from selection.
	batch[0].Status = action.StatusDone
	require.NoError(t, actionService.SaveStatus(context.Background(), batch[0]))

	rest, err := actionService.PendingForAccount(context.Background(), sourceUID, 100)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
	for _, a := range rest {
		assert.NotEqual(t, batch[0].ID, a.ID)
	}
}
