package eventflag_test

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/aster/internal/repositories/eventflag"
	"github.com/Ramsey-B/aster/pkg/database/databasetest"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(ectologger.EctoLogMessage) {})
}

func TestSet_ClearsBeforeInserting(t *testing.T) {
	db := &databasetest.FakeDB{}
	repo := eventflag.NewRepository(db, testLogger())

	flag, err := repo.Set(context.Background(), "coder-1", "cand-1", "for-review")
	require.NoError(t, err)
	require.NotNil(t, flag)
	assert.Equal(t, "for-review", flag.Flag)
	assert.Equal(t, "cand-1", flag.CandidateEventID)

	require.Len(t, db.ExecCalls, 2)
	assert.True(t, strings.HasPrefix(db.ExecCalls[0].Query, "DELETE FROM event_flags"), "got %q", db.ExecCalls[0].Query)
	assert.True(t, strings.HasPrefix(db.ExecCalls[1].Query, "INSERT INTO event_flags"), "got %q", db.ExecCalls[1].Query)
}

func TestSet_ConcurrentReplaceIsAConflict(t *testing.T) {
	db := &databasetest.FakeDB{
		ExecFn: func(query string, args []any) (sql.Result, error) {
			if strings.HasPrefix(query, "INSERT") {
				return nil, &pq.Error{Code: "23505"}
			}
			return databasetest.Result{}, nil
		},
	}
	repo := eventflag.NewRepository(db, testLogger())

	flag, err := repo.Set(context.Background(), "coder-1", "cand-1", "completed")
	require.Error(t, err)
	assert.Nil(t, flag)
	assert.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
}

func TestSet_ClearFailureStopsTheReplace(t *testing.T) {
	db := &databasetest.FakeDB{
		ExecFn: func(query string, args []any) (sql.Result, error) {
			return nil, sql.ErrConnDone
		},
	}
	repo := eventflag.NewRepository(db, testLogger())

	_, err := repo.Set(context.Background(), "coder-1", "cand-1", "completed")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, httperror.GetStatusCode(err))
	assert.Len(t, db.ExecCalls, 1)
}
