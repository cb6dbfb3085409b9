package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/storage/migrations"
	"github.com/msigvault/msig/storage/postgres/testutil"
)

func newTestStore(t *testing.T) *Store {
	testutil.SkipIfShort(t)
	client := testutil.NewTestClient(t)
	t.Cleanup(client.Close)

	ctx := context.Background()
	require.NoError(t, client.Wipe(ctx), "failed to wipe database")
	require.NoError(t, migrations.Up("", testutil.ConnString(), log.NewDefaultLogger("migrations-test")))
	return NewStore(client, log.NewDefaultLogger("directory-test"))
}

func TestLookupAndRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ms, err := s.Lookup(ctx, "GALICE")
	require.NoError(t, err)
	require.Empty(t, ms)

	require.NoError(t, s.Record(ctx, "CONE", []string{"GALICE", "GBOB"}))
	require.NoError(t, s.Record(ctx, "CTWO", []string{"GBOB"}))

	ms, err = s.Lookup(ctx, "GBOB")
	require.NoError(t, err)
	require.Equal(t, []Multisig{
		{ID: "CONE", Members: []string{"GALICE", "GBOB"}},
		{ID: "CTWO", Members: []string{"GBOB"}},
	}, ms)

	// Upsert replaces the member list.
	require.NoError(t, s.Record(ctx, "CONE", []string{"GCAROL"}))
	ms, err = s.Lookup(ctx, "GALICE")
	require.NoError(t, err)
	require.Empty(t, ms)
	ms, err = s.Lookup(ctx, "GCAROL")
	require.NoError(t, err)
	require.Equal(t, []Multisig{{ID: "CONE", Members: []string{"GCAROL"}}}, ms)
}

func TestRecordRejectsEmptyID(t *testing.T) {
	s := NewStore(nil, log.NewDefaultLogger("directory-test"))
	require.ErrorIs(t, s.Record(context.Background(), "", []string{"GA"}), ErrInvalid)
}
