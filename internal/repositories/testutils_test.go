package repositories_test

import (
	"context"
	"github.com/myrjola/casebot/internal/sqlite"
	"github.com/myrjola/casebot/internal/testhelpers"
	"io"
	"testing"
)

// newTestDB creates a new in-memory database for testing purposes.
func newTestDB(t *testing.T) *sqlite.Database {
	t.Helper()
	dbs, err := sqlite.NewDatabase(context.Background(), ":memory:", testhelpers.NewLogger(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err = dbs.Close(); err != nil {
			t.Error(err)
		}
	})
	return dbs
}
