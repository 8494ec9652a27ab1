package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "taxgate/pkg/domain"
	"taxgate/pkg/platform/audit"
)

func record(principalID id.UserID) audit.Record {
	return audit.Record{
		ID:          uuid.New(),
		PrincipalID: principalID,
		Action:      "read",
		Outcome:     audit.OutcomeAllowed,
	}
}

func TestInMemoryStore_ListRecent(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	var last audit.Record
	for i := 0; i < 5; i++ {
		last = record(id.UserID(uuid.New()))
		require.NoError(t, store.Append(ctx, last))
	}

	recent, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, last.ID, recent[1].ID, "most recent record comes last")

	all, err := store.ListRecent(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 5, "limit beyond size returns everything")
}

func TestInMemoryStore_ListByPrincipal(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	target := id.UserID(uuid.New())

	require.NoError(t, store.Append(ctx, record(target)))
	require.NoError(t, store.Append(ctx, record(id.UserID(uuid.New()))))
	require.NoError(t, store.Append(ctx, record(target)))

	records, err := store.ListByPrincipal(ctx, target)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, target, rec.PrincipalID)
	}
}
