package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/storage/postgres"
)

// SkipIfShort skips tests that need a live database.
func SkipIfShort(t *testing.T) {
	if testing.Short() || os.Getenv("CI_TEST_CONN_STRING") == "" {
		t.Skip("skipping test in short mode or without CI_TEST_CONN_STRING")
	}
}

// ConnString returns the connection string of the CI database.
func ConnString() string {
	return os.Getenv("CI_TEST_CONN_STRING")
}

// NewTestClient returns a postgres client used in CI tests.
func NewTestClient(t *testing.T) *postgres.Client {
	logger, err := log.NewLogger("postgres-test", os.Stdout, log.FmtJSON, log.LevelError)
	require.Nil(t, err, "log.NewLogger")

	client, err := postgres.NewClient(ConnString(), logger)
	require.Nil(t, err, "postgres.NewClient")
	return client
}
