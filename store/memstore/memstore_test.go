package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/school-console/store"
	"github.com/jrsteele09/school-console/store/memstore"
	"github.com/jrsteele09/school-console/store/storetest"
	"github.com/stretchr/testify/require"
)

func TestMemStoreConformance(t *testing.T) {
	storetest.RunConformance(t, func(t *testing.T) store.Store {
		return memstore.New(memstore.WithNowTime(storetest.TickingClock(time.Unix(1700000000, 0), time.Second)))
	})
}

func TestMemStore_EqualTimestampsKeepInsertOrder(t *testing.T) {
	frozen := time.Unix(1700000000, 0)
	s := memstore.New(memstore.WithNowTime(func() time.Time { return frozen }))
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		_, err := s.Insert(ctx, "schools", store.Row{"name": name})
		require.NoError(t, err)
	}

	rows, err := s.Find(ctx, "schools", nil, store.Newest())
	require.NoError(t, err)
	require.Equal(t, "C", rows[0]["name"])
	require.Equal(t, "A", rows[2]["name"])
}

func TestMemStore_NilFilterValueMatchesMissingOrNull(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	_, err := s.Insert(ctx, "user_profiles", store.Row{"id": "u1", "school_id": nil})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "user_profiles", store.Row{"id": "u2", "school_id": "t1"})
	require.NoError(t, err)

	rows, err := s.Find(ctx, "user_profiles", store.Eq("school_id", nil))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "u1", rows[0]["id"])
}

func TestMemStore_ReturnedRowsAreCopies(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	row, err := s.Insert(ctx, "schools", store.Row{"name": "A"})
	require.NoError(t, err)
	row["name"] = "mutated"

	rows, err := s.Find(ctx, "schools", store.Eq("id", row["id"]))
	require.NoError(t, err)
	require.Equal(t, "A", rows[0]["name"])
}

func TestMemStore_UpdateNeverRewritesIdentity(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	row, err := s.Insert(ctx, "schools", store.Row{"name": "A"})
	require.NoError(t, err)

	updated, err := s.Update(ctx, "schools", store.Eq("id", row["id"]), store.Row{"id": "other", "name": "B"})
	require.NoError(t, err)
	require.Equal(t, row["id"], updated["id"])
	require.Equal(t, "B", updated["name"])
}
