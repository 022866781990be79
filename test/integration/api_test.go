package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/aster/pkg/middleware"
	"github.com/Ramsey-B/aster/pkg/models"
	adjudicationroutes "github.com/Ramsey-B/aster/pkg/routes/adjudication"
	canonicaleventroutes "github.com/Ramsey-B/aster/pkg/routes/canonicalevent"
	"github.com/Ramsey-B/aster/pkg/routes/health"
	"github.com/Ramsey-B/aster/pkg/search"
)

// TestAPIHelpers contains helper functions for API testing
type TestAPIHelpers struct {
	t       *testing.T
	e       *echo.Echo
	coderID string
}

func NewTestAPIHelpers(t *testing.T) *TestAPIHelpers {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())

	api := e.Group("/api/v1")
	adjudicationroutes.Register(api.Group("/adjudication"))
	canonicaleventroutes.Register(api.Group("/canonical-events"))

	return &TestAPIHelpers{
		t:       t,
		e:       e,
		coderID: "coder-1",
	}
}

func (h *TestAPIHelpers) MakeRequest(method, path string, body any) *httptest.ResponseRecorder {
	return h.makeRequest(method, path, body, h.coderID)
}

func (h *TestAPIHelpers) MakeAnonymousRequest(method, path string, body any) *httptest.ResponseRecorder {
	return h.makeRequest(method, path, body, "")
}

func (h *TestAPIHelpers) makeRequest(method, path string, body any, coderID string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if coderID != "" {
		req.Header.Set(middleware.HeaderCoderID, coderID)
	}

	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func TestSearchAPI_Auth(t *testing.T) {
	h := NewTestAPIHelpers(t)

	t.Run("anonymous search is rejected", func(t *testing.T) {
		rec := h.MakeAnonymousRequest(http.MethodPost, "/api/v1/adjudication/search/candidate", map[string]any{
			"free_text": "march",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("vocabulary is public", func(t *testing.T) {
		rec := h.MakeAnonymousRequest(http.MethodGet, "/api/v1/adjudication/search/vocabulary", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var vocab models.SearchVocabulary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vocab))
		assert.Contains(t, vocab.CandidateFilterFields, "flag")
		assert.Contains(t, vocab.CanonicalFilterFields, "key")
		assert.Len(t, vocab.Comparators, 9)
	})
}

func TestSearchAPI_Validation(t *testing.T) {
	h := NewTestAPIHelpers(t)

	t.Run("more than four filters", func(t *testing.T) {
		filters := make([]map[string]string, 5)
		for i := range filters {
			filters[i] = map[string]string{"field": "location", "comparator": "eq", "value": "Selma"}
		}
		rec := h.MakeRequest(http.MethodPost, "/api/v1/adjudication/search/candidate", map[string]any{
			"filters": filters,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/adjudication/search/candidate", bytes.NewBufferString("{not json"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.HeaderCoderID, h.coderID)
		rec := httptest.NewRecorder()
		h.e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("search request shape", func(t *testing.T) {
		req := models.SearchRequest{
			Filters: []models.FilterClause{
				{Field: "location", Comparator: "contains", Value: "Birmingham"},
				{Field: "flag", Comparator: "ne", Value: "duplicate"},
			},
			Sorts:    []models.SortClause{{Field: "start-date", Direction: "desc"}},
			FreeText: "lunch counter AND sit-in",
		}

		data, err := json.Marshal(req)
		require.NoError(t, err)

		var parsed models.SearchRequest
		require.NoError(t, json.Unmarshal(data, &parsed))
		assert.Len(t, parsed.Filters, 2)
		assert.Equal(t, "lunch counter AND sit-in", parsed.FreeText)
	})
}

func TestLinkAPI_Validation(t *testing.T) {
	h := NewTestAPIHelpers(t)

	t.Run("whole event link requires both ids", func(t *testing.T) {
		rec := h.MakeRequest(http.MethodPost, "/api/v1/adjudication/links/whole-event", map[string]any{
			"article_id": "article-9",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("field link requires both ids", func(t *testing.T) {
		rec := h.MakeRequest(http.MethodPost, "/api/v1/adjudication/links/field", map[string]any{
			"field_record_id": "rec-1",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("anonymous unlink is rejected", func(t *testing.T) {
		rec := h.MakeAnonymousRequest(http.MethodDelete, "/api/v1/adjudication/links/l1", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGridAPI_Validation(t *testing.T) {
	h := NewTestAPIHelpers(t)

	t.Run("needs at least one candidate id", func(t *testing.T) {
		rec := h.MakeRequest(http.MethodPost, "/api/v1/adjudication/grid", map[string]any{
			"candidate_ids": []string{},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("anonymous grid load is rejected", func(t *testing.T) {
		rec := h.MakeAnonymousRequest(http.MethodPost, "/api/v1/adjudication/grid", map[string]any{
			"candidate_ids": []string{"cand-1"},
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRelationshipAPI_Validation(t *testing.T) {
	h := NewTestAPIHelpers(t)

	t.Run("missing type", func(t *testing.T) {
		rec := h.MakeRequest(http.MethodPost, "/api/v1/adjudication/relationships", map[string]any{
			"key1": "selma-march",
			"key2": "bloody-sunday",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete needs the exact edge", func(t *testing.T) {
		rec := h.MakeRequest(http.MethodDelete, "/api/v1/adjudication/relationships", map[string]any{
			"canonical_id_from": "c1",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCanonicalEventAPI_Validation(t *testing.T) {
	h := NewTestAPIHelpers(t)

	t.Run("create requires a key", func(t *testing.T) {
		rec := h.MakeRequest(http.MethodPost, "/api/v1/canonical-events", map[string]any{
			"description": "a march with no key",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("anonymous create is rejected", func(t *testing.T) {
		rec := h.MakeAnonymousRequest(http.MethodPost, "/api/v1/canonical-events", map[string]any{
			"key": "selma-march",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestFlagAPI_Validation(t *testing.T) {
	h := NewTestAPIHelpers(t)

	t.Run("set flag requires event and flag", func(t *testing.T) {
		rec := h.MakeRequest(http.MethodPost, "/api/v1/adjudication/flags", map[string]any{
			"candidate_event_id": "cand-1",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSearchModes(t *testing.T) {
	modes := []search.Mode{search.ModeCandidate, search.ModeCanonical}
	for _, mode := range modes {
		assert.NotEmpty(t, string(mode))
	}
}

func TestErrorResponseShape(t *testing.T) {
	h := NewTestAPIHelpers(t)

	rec := h.MakeAnonymousRequest(http.MethodPost, "/api/v1/adjudication/search/candidate", map[string]any{})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "coder id is required")
	assert.NotEmpty(t, resp.RequestID)
}

func TestHealthEndpoints(t *testing.T) {
	e := echo.New()
	checker := health.NewChecker(nil, nil, "test")
	checker.RegisterRoutes(e)

	t.Run("liveness", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not ready until marked", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		checker.SetReady(true)
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unconfigured database reports unhealthy", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var status health.HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, "unhealthy", status.Status)
		assert.Contains(t, status.Checks, "database")
	})
}
