package recentevent_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/aster/internal/repositories/recentevent"
	"github.com/Ramsey-B/aster/pkg/database/databasetest"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(ectologger.EctoLogMessage) {})
}

func TestTouchCandidate_RefreshesTheExistingBookmark(t *testing.T) {
	db := &databasetest.FakeDB{
		ExecFn: func(query string, args []any) (sql.Result, error) {
			return databasetest.Result{Rows: 1}, nil
		},
	}
	repo := recentevent.NewRepository(db, testLogger())

	err := repo.TouchCandidate(context.Background(), "coder-1", "cand-1")
	require.NoError(t, err)

	require.Len(t, db.ExecCalls, 1)
	assert.True(t, strings.HasPrefix(db.ExecCalls[0].Query, "UPDATE recent_candidate_events"), "got %q", db.ExecCalls[0].Query)
}

func TestTouchCandidate_InsertsWhenNoBookmarkExists(t *testing.T) {
	db := &databasetest.FakeDB{}
	repo := recentevent.NewRepository(db, testLogger())

	err := repo.TouchCandidate(context.Background(), "coder-1", "cand-1")
	require.NoError(t, err)

	require.Len(t, db.ExecCalls, 2)
	assert.True(t, strings.HasPrefix(db.ExecCalls[0].Query, "UPDATE recent_candidate_events"), "got %q", db.ExecCalls[0].Query)
	assert.True(t, strings.HasPrefix(db.ExecCalls[1].Query, "INSERT INTO recent_candidate_events"), "got %q", db.ExecCalls[1].Query)
}

func TestTouchCanonical_ConcurrentTouchIsBenign(t *testing.T) {
	db := &databasetest.FakeDB{
		ExecFn: func(query string, args []any) (sql.Result, error) {
			if strings.HasPrefix(query, "INSERT") {
				return nil, &pq.Error{Code: "23505"}
			}
			return databasetest.Result{}, nil
		},
	}
	repo := recentevent.NewRepository(db, testLogger())

	err := repo.TouchCanonical(context.Background(), "coder-1", "canon-1")
	assert.NoError(t, err)
}

func TestRecentQueries_OrderNewestFirstAndLimit(t *testing.T) {
	var queries []string
	db := &databasetest.FakeDB{
		SelectFn: func(dest any, query string, args []any) error {
			queries = append(queries, query)
			return nil
		},
	}
	repo := recentevent.NewRepository(db, testLogger())

	_, err := repo.RecentCandidateIndexes(context.Background(), "coder-1", 5)
	require.NoError(t, err)
	_, err = repo.RecentCanonicalEvents(context.Background(), "coder-1", 5)
	require.NoError(t, err)

	require.Len(t, queries, 2)
	for _, query := range queries {
		assert.Contains(t, query, "ORDER BY rce.last_accessed DESC")
		assert.Contains(t, query, "LIMIT")
	}
}
