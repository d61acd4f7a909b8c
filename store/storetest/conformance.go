package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/school-console/store"
	"github.com/stretchr/testify/require"
)

// conformanceCollection must exist in every SQL schema the suite runs against.
const conformanceCollection = "schools"

type school struct {
	ID        string    `mapstructure:"id"`
	Name      string    `mapstructure:"name"`
	Active    bool      `mapstructure:"active"`
	Phone     string    `mapstructure:"phone"`
	CreatedAt time.Time `mapstructure:"created_at"`
}

// RunConformance exercises the store.Store contract. newStore must return an
// empty store whose clock strictly increases between inserts.
func RunConformance(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()
	ctx := context.Background()

	insert := func(t *testing.T, s store.Store, name string, active bool) store.Row {
		t.Helper()
		row, err := s.Insert(ctx, conformanceCollection, store.Row{"name": name, "active": active, "phone": ""})
		require.NoError(t, err)
		return row
	}

	t.Run("insert assigns id and created_at", func(t *testing.T) {
		s := newStore(t)
		row := insert(t, s, "Lincoln High", true)

		var got school
		require.NoError(t, store.Decode(row, &got))
		require.NotEmpty(t, got.ID)
		require.False(t, got.CreatedAt.IsZero())
		require.Equal(t, "Lincoln High", got.Name)
		require.True(t, got.Active)
	})

	t.Run("insert keeps caller id", func(t *testing.T) {
		s := newStore(t)
		row, err := s.Insert(ctx, conformanceCollection, store.Row{"id": "fixed-id", "name": "A", "active": false, "phone": ""})
		require.NoError(t, err)
		require.Equal(t, "fixed-id", row["id"])
	})

	t.Run("find filters by equality", func(t *testing.T) {
		s := newStore(t)
		a := insert(t, s, "A", true)
		insert(t, s, "B", false)

		rows, err := s.Find(ctx, conformanceCollection, store.Eq("id", a["id"]))
		require.NoError(t, err)
		require.Len(t, rows, 1)

		var got school
		require.NoError(t, store.Decode(rows[0], &got))
		require.Equal(t, "A", got.Name)

		rows, err = s.Find(ctx, conformanceCollection, store.Eq("name", "missing"))
		require.NoError(t, err)
		require.Empty(t, rows)
	})

	t.Run("find orders newest first and limits", func(t *testing.T) {
		s := newStore(t)
		rows, err := s.Find(ctx, conformanceCollection, nil, store.Newest())
		require.NoError(t, err)
		require.Empty(t, rows)

		insert(t, s, "A", true)
		insert(t, s, "B", true)
		insert(t, s, "C", true)

		rows, err = s.Find(ctx, conformanceCollection, nil, store.Newest())
		require.NoError(t, err)
		require.Equal(t, []string{"C", "B", "A"}, names(t, rows))

		rows, err = s.Find(ctx, conformanceCollection, nil, store.OrderBy("created_at", false), store.Limit(2))
		require.NoError(t, err)
		require.Equal(t, []string{"A", "B"}, names(t, rows))
	})

	t.Run("update patches matching row", func(t *testing.T) {
		s := newStore(t)
		a := insert(t, s, "A", true)

		row, err := s.Update(ctx, conformanceCollection, store.Eq("id", a["id"]), store.Row{"phone": "555-0100"})
		require.NoError(t, err)

		var got school
		require.NoError(t, store.Decode(row, &got))
		require.Equal(t, "555-0100", got.Phone)
		require.Equal(t, "A", got.Name)
		require.True(t, got.Active)
	})

	t.Run("update with compound filter", func(t *testing.T) {
		s := newStore(t)
		a := insert(t, s, "A", true)

		_, err := s.Update(ctx, conformanceCollection, store.Eq("id", a["id"]).And("active", false), store.Row{"active": true})
		require.ErrorIs(t, err, store.ErrNoRows)

		row, err := s.Update(ctx, conformanceCollection, store.Eq("id", a["id"]).And("active", true), store.Row{"active": false})
		require.NoError(t, err)
		var got school
		require.NoError(t, store.Decode(row, &got))
		require.False(t, got.Active)
	})

	t.Run("update errors", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Update(ctx, conformanceCollection, store.Eq("id", "nope"), store.Row{"name": "x"})
		require.ErrorIs(t, err, store.ErrNoRows)

		_, err = s.Update(ctx, conformanceCollection, nil, store.Row{"name": "x"})
		require.ErrorIs(t, err, store.ErrEmptyFilter)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := newStore(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Find(cctx, conformanceCollection, nil)
		require.Error(t, err)
	})
}

func names(t *testing.T, rows []store.Row) []string {
	t.Helper()
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		var s school
		require.NoError(t, store.Decode(r, &s))
		out = append(out, s.Name)
	}
	return out
}
