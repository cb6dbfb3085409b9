package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/storage/postgres"
	"github.com/msigvault/msig/storage/postgres/testutil"
)

func TestInvalidConnect(t *testing.T) {
	_, err := postgres.NewClient("an invalid connstring", log.NewDefaultLogger("postgres-test"))
	require.NotNil(t, err)
}

func TestQuery(t *testing.T) {
	testutil.SkipIfShort(t)
	client := testutil.NewTestClient(t)
	defer client.Close()

	rows, err := client.Query(context.Background(), `
		SELECT * FROM ( VALUES (0),(1),(2) ) AS q;
	`)
	require.Nil(t, err)
	defer rows.Close()

	i := 0
	for rows.Next() {
		var result int
		require.Nil(t, rows.Scan(&result))
		require.Equal(t, i, result)
		i++
	}
	require.Equal(t, 3, i)
}

func TestInvalidQuery(t *testing.T) {
	testutil.SkipIfShort(t)
	client := testutil.NewTestClient(t)
	defer client.Close()

	_, err := client.Query(context.Background(), `
		an invalid query
	`)
	require.NotNil(t, err)
}

func TestQueryRow(t *testing.T) {
	testutil.SkipIfShort(t)
	client := testutil.NewTestClient(t)
	defer client.Close()

	var result int
	err := client.QueryRow(context.Background(), `SELECT 1+1;`).Scan(&result)
	require.Nil(t, err)
	require.Equal(t, 2, result)
}

func TestWipe(t *testing.T) {
	testutil.SkipIfShort(t)
	client := testutil.NewTestClient(t)
	defer client.Close()
	ctx := context.Background()

	_, err := client.Exec(ctx, `CREATE TABLE IF NOT EXISTS wipe_me (id INT)`)
	require.Nil(t, err)
	require.Nil(t, client.Wipe(ctx))

	var count int
	err = client.QueryRow(ctx, `SELECT count(*) FROM pg_tables WHERE tablename = 'wipe_me'`).Scan(&count)
	require.Nil(t, err)
	require.Zero(t, count)
}
