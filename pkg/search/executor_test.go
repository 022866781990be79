package search

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/aster/internal/repositories/candidateevent"
	"github.com/Ramsey-B/aster/internal/repositories/canonicalevent"
	"github.com/Ramsey-B/aster/internal/repositories/coder"
	"github.com/Ramsey-B/aster/internal/repositories/eventflag"
	"github.com/Ramsey-B/aster/internal/repositories/fieldlink"
	"github.com/Ramsey-B/aster/pkg/database/databasetest"
	"github.com/Ramsey-B/aster/pkg/models"
)

// newTestExecutor wires an executor over a canned store returning the given
// number of candidate index rows for every search.
func newTestExecutor(resultCap, rowCount int) *Executor {
	db := &databasetest.FakeDB{
		SelectFn: func(dest any, query string, args []any) error {
			if rows, ok := dest.(*[]models.CandidateEventIndex); ok {
				for i := 0; i < rowCount; i++ {
					*rows = append(*rows, models.CandidateEventIndex{CandidateEventID: fmt.Sprintf("cand-%d", i)})
				}
			}
			return nil
		},
	}
	logger := ectologger.NewEctoLogger(func(ectologger.EctoLogMessage) {})
	return NewExecutor(
		candidateevent.NewRepository(db, logger),
		canonicalevent.NewRepository(db, logger),
		fieldlink.NewRepository(db, logger),
		eventflag.NewRepository(db, logger),
		coder.NewRepository(db, logger),
		logger,
		resultCap,
	)
}

func TestSearchCandidates_ResultCap(t *testing.T) {
	req := models.SearchRequest{
		Filters: []models.FilterClause{{Field: "location", Comparator: "eq", Value: "Selma"}},
	}

	t.Run("one row over the cap is rejected", func(t *testing.T) {
		e := newTestExecutor(3, 4)
		resp, err := e.SearchCandidates(context.Background(), req)
		require.Error(t, err)
		assert.Nil(t, resp)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})

	t.Run("exactly the cap passes", func(t *testing.T) {
		e := newTestExecutor(3, 3)
		resp, err := e.SearchCandidates(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, 3, resp.TotalCount)
		assert.Len(t, resp.Events, 3)
	})
}

func TestExecutorValidate(t *testing.T) {
	e := &Executor{resultCap: 1000}

	t.Run("filters alone are enough", func(t *testing.T) {
		text, err := e.validate(models.SearchRequest{
			Filters: []models.FilterClause{{Field: "location", Comparator: "eq", Value: "Selma"}},
		})
		require.NoError(t, err)
		assert.Nil(t, text)
	})

	t.Run("free text alone is enough", func(t *testing.T) {
		text, err := e.validate(models.SearchRequest{FreeText: "freedom ride"})
		require.NoError(t, err)
		require.NotNil(t, text)
		assert.Equal(t, []string{"freedom ride"}, text.Terms)
	})

	t.Run("no predicate at all", func(t *testing.T) {
		_, err := e.validate(models.SearchRequest{FreeText: "   "})
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})

	t.Run("filter budget", func(t *testing.T) {
		filters := make([]models.FilterClause, 5)
		_, err := e.validate(models.SearchRequest{Filters: filters})
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})

	t.Run("sort budget", func(t *testing.T) {
		_, err := e.validate(models.SearchRequest{
			FreeText: "march",
			Sorts:    make([]models.SortClause, 5),
		})
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})
}

func TestIntersect(t *testing.T) {
	t.Run("no sets", func(t *testing.T) {
		assert.Nil(t, intersect(nil))
	})

	t.Run("single set passes through", func(t *testing.T) {
		matched := intersect([]map[string]struct{}{toSet([]string{"a", "b"})})
		sort.Strings(matched)
		assert.Equal(t, []string{"a", "b"}, matched)
	})

	t.Run("keeps only ids in every set", func(t *testing.T) {
		matched := intersect([]map[string]struct{}{
			toSet([]string{"a", "b", "c"}),
			toSet([]string{"b", "c", "d"}),
			toSet([]string{"c", "b"}),
		})
		sort.Strings(matched)
		assert.Equal(t, []string{"b", "c"}, matched)
	})

	t.Run("disjoint sets intersect to nothing", func(t *testing.T) {
		matched := intersect([]map[string]struct{}{
			toSet([]string{"a"}),
			toSet([]string{"b"}),
		})
		assert.Empty(t, matched)
	})

	t.Run("empty set collapses everything", func(t *testing.T) {
		matched := intersect([]map[string]struct{}{
			toSet([]string{"a", "b"}),
			toSet(nil),
		})
		assert.Empty(t, matched)
	})
}
