package search

import (
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/aster/pkg/models"
)

func TestResolve_CandidateFields(t *testing.T) {
	t.Run("direct column", func(t *testing.T) {
		loc, err := Resolve(ModeCandidate, "location")
		require.NoError(t, err)
		assert.Equal(t, DirectColumn, loc.Kind)
		assert.Equal(t, "cei.location", loc.Column)
	})

	t.Run("flag reaches through the outer join", func(t *testing.T) {
		loc, err := Resolve(ModeCandidate, "flag")
		require.NoError(t, err)
		assert.Equal(t, FlagColumn, loc.Kind)
		assert.Equal(t, "ef.flag", loc.Column)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := Resolve(ModeCandidate, "notes")
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})
}

func TestResolve_CanonicalFields(t *testing.T) {
	t.Run("pivoted value carries its variable", func(t *testing.T) {
		loc, err := Resolve(ModeCanonical, "racial-issue")
		require.NoError(t, err)
		assert.Equal(t, PivotedValue, loc.Kind)
		assert.Equal(t, "fr.value", loc.Column)
		assert.Equal(t, "racial-issue", loc.Variable)
	})

	t.Run("direct canonical column", func(t *testing.T) {
		loc, err := Resolve(ModeCanonical, "key")
		require.NoError(t, err)
		assert.Equal(t, DirectColumn, loc.Kind)
		assert.Equal(t, "ce.key", loc.Column)
	})

	t.Run("coder filter resolves usernames", func(t *testing.T) {
		loc, err := Resolve(ModeCanonical, "coder_id")
		require.NoError(t, err)
		assert.Equal(t, CoderReference, loc.Kind)
	})

	t.Run("event id matches the source candidate event", func(t *testing.T) {
		loc, err := Resolve(ModeCanonical, "event_id")
		require.NoError(t, err)
		assert.Equal(t, SourceEventColumn, loc.Kind)
		assert.Equal(t, "fr.candidate_event_id", loc.Column)
	})

	t.Run("candidate only field is rejected", func(t *testing.T) {
		_, err := Resolve(ModeCanonical, "article_id")
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})
}

func TestResolve_UnknownMode(t *testing.T) {
	_, err := Resolve(Mode("merged"), "key")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestResolveSort(t *testing.T) {
	t.Run("defaults to ascending", func(t *testing.T) {
		ordering, err := ResolveSort(ModeCandidate, models.SortClause{Field: "start-date"})
		require.NoError(t, err)
		assert.Equal(t, "cei.start_date ASC", ordering)
	})

	t.Run("descending", func(t *testing.T) {
		ordering, err := ResolveSort(ModeCandidate, models.SortClause{Field: "title", Direction: "desc"})
		require.NoError(t, err)
		assert.Equal(t, "cei.title DESC", ordering)
	})

	t.Run("invalid direction", func(t *testing.T) {
		_, err := ResolveSort(ModeCandidate, models.SortClause{Field: "title", Direction: "sideways"})
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})

	t.Run("flag is not sortable", func(t *testing.T) {
		_, err := ResolveSort(ModeCandidate, models.SortClause{Field: "flag"})
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})

	t.Run("canonical sorts cover the plain row columns", func(t *testing.T) {
		ordering, err := ResolveSort(ModeCanonical, models.SortClause{Field: "key", Direction: "desc"})
		require.NoError(t, err)
		assert.Equal(t, "key DESC", ordering)

		ordering, err = ResolveSort(ModeCanonical, models.SortClause{Field: "last-updated", Direction: "desc"})
		require.NoError(t, err)
		assert.Equal(t, "last_updated DESC", ordering)

		ordering, err = ResolveSort(ModeCanonical, models.SortClause{Field: "notes"})
		require.NoError(t, err)
		assert.Equal(t, "notes ASC", ordering)
	})

	t.Run("pivoted canonical fields are not sortable", func(t *testing.T) {
		_, err := ResolveSort(ModeCanonical, models.SortClause{Field: "location"})
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})
}

func TestVocabulary(t *testing.T) {
	vocab := Vocabulary()

	assert.Contains(t, vocab.CandidateFilterFields, "flag")
	assert.Contains(t, vocab.CandidateFilterFields, "racial-issue")
	assert.Contains(t, vocab.CanonicalFilterFields, "event_id")
	assert.NotContains(t, vocab.CanonicalFilterFields, "flag")
	assert.Equal(t, []string{"coder_id", "description", "key", "last-updated", "notes"}, vocab.CanonicalSortFields)
	assert.Len(t, vocab.Comparators, 9)
}
