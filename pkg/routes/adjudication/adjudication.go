// Package adjudication exposes the search and reconciliation operations used
// by the adjudication page
package adjudication

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	ctxmiddleware "github.com/Ramsey-B/aster/pkg/context"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/reconcile"
	"github.com/Ramsey-B/aster/pkg/search"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

var validate = validator.New()

// Register registers adjudication routes
func Register(g *echo.Group) {
	g.POST("/search/:mode", Search)
	g.GET("/search/vocabulary", SearchVocabulary)
	g.GET("/autocomplete", Autocomplete)
	g.GET("/coders", Coders)
	g.POST("/candidate-events/load", LoadCandidateEvents)
	g.POST("/grid", LoadGrid)
	g.POST("/links/whole-event", LinkWholeEvent)
	g.POST("/links/field", LinkField)
	g.DELETE("/links/whole-event/:articleId", UnlinkWholeEvent)
	g.DELETE("/links/:id", Unlink)
	g.POST("/flags", SetFlag)
	g.DELETE("/flags/:eventId", ClearFlag)
	g.POST("/relationships", AddRelationship)
	g.DELETE("/relationships", DeleteRelationship)
	g.GET("/hierarchy/:key", Hierarchy)
	g.POST("/recency", TouchRecency)
	g.GET("/recent/candidates", RecentCandidates)
	g.GET("/recent/canonical", RecentCanonical)
}

// Search runs a candidate or canonical mode search
func Search(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "adjudication_handler.Search")
	defer span.End()

	if err := requireCoder(ctx); err != nil {
		return err
	}

	var req models.SearchRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, executor, err := ectoinject.GetContext[*search.Executor](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get search executor")
	}

	switch search.Mode(c.Param("mode")) {
	case search.ModeCandidate:
		result, err := executor.SearchCandidates(ctx, req)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, result)
	case search.ModeCanonical:
		result, err := executor.SearchCanonical(ctx, req)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, result)
	}
	return httperror.NewHTTPError(http.StatusBadRequest, "unknown search mode "+c.Param("mode"))
}

// SearchVocabulary returns the static filter/sort vocabulary
func SearchVocabulary(c echo.Context) error {
	return c.JSON(http.StatusOK, search.Vocabulary())
}

// Autocomplete returns canonical keys containing the term
func Autocomplete(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "adjudication_handler.Autocomplete")
	defer span.End()

	ctx, executor, err := ectoinject.GetContext[*search.Executor](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get search executor")
	}

	keys, err := executor.AutocompleteKeys(ctx, c.QueryParam("term"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, keys)
}

// Coders returns every coder's username keyed by id
func Coders(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "adjudication_handler.Coders")
	defer span.End()

	if err := requireCoder(ctx); err != nil {
		return err
	}

	ctx, executor, err := ectoinject.GetContext[*search.Executor](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get search executor")
	}

	usernames, err := executor.CoderUsernames(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, usernames)
}

// LoadCandidateEvents returns the grid view of the requested events plus
// their live flags.
func LoadCandidateEvents(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "adjudication_handler.LoadCandidateEvents")
	defer span.End()

	if err := requireCoder(ctx); err != nil {
		return err
	}

	var req models.LoadCandidateEventsRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, service, err := getService(ctx)
	if err != nil {
		return err
	}

	details, err := service.LoadCandidateEvents(ctx, req.IDs)
	if err != nil {
		return err
	}
	flags, err := service.Flags(ctx, req.IDs)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"events": details,
		"flags":  flags,
	})
}

// LoadGrid returns the combined adjudication grid and bumps the caller's
// recency bookmarks as a side effect.
func LoadGrid(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "adjudication_handler.LoadGrid")
	defer span.End()

	coderID := ctxmiddleware.GetCoderID(ctx)
	if coderID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "coder id is required")
	}

	var req models.LoadGridRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, service, err := getService(ctx)
	if err != nil {
		return err
	}

	view, err := service.LoadGrid(ctx, coderID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// LinkWholeEvent links an article into a canonical event
func LinkWholeEvent(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "adjudication_handler.LinkWholeEvent")
	defer span.End()

	coderID := ctxmiddleware.GetCoderID(ctx)
	if coderID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "coder id is required")
	}

	var req models.LinkWholeEventRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, service, err := getService(ctx)
	if err != nil {
		return err
	}

	link, err := service.LinkWholeEvent(ctx, coderID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, link)
}

// LinkField links one field record into a canonical event
func LinkField(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "adjudication_handler.LinkField")
	defer span.End()

	coderID := ctxmiddleware.GetCoderID(ctx)
	if coderID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "coder id is required")
	}

	var req models.LinkFieldRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, service, err := getService(ctx)
	if err != nil {
		return err
	}

	link, err := service.LinkField(ctx, coderID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, link)
}

// Unlink removes a field link by id
func Unlink(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "adjudication_handler.Unlink")
	defer span.End()

	if err := requireCoder(ctx); err != nil {
		return err
	}

	ctx, service, err := getService(ctx)
	if err != nil {
		return err
	}

	if err := service.Unlink(ctx, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// UnlinkWholeEvent removes every whole-event link of an article
func UnlinkWholeEvent(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "adjudication_handler.UnlinkWholeEvent")
	defer span.End()

	if err := requireCoder(ctx); err != nil {
		return err
	}

	ctx, service, err := getService(ctx)
	if err != nil {
		return err
	}

	if err := service.UnlinkWholeEvent(ctx, c.Param("articleId")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// SetFlag replaces the flag on a candidate event
func SetFlag(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "adjudication_handler.SetFlag")
	defer span.End()

	coderID := ctxmiddleware.GetCoderID(ctx)
	if coderID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "coder id is required")
	}

	var req models.SetFlagRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, service, err := getService(ctx)
	if err != nil {
		return err
	}

	flag, err := service.SetFlag(ctx, coderID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, flag)
}

// ClearFlag removes the flag from a candidate event
func ClearFlag(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "adjudication_handler.ClearFlag")
	defer span.End()

	if err := requireCoder(ctx); err != nil {
		return err
	}

	ctx, service, err := getService(ctx)
	if err != nil {
		return err
	}

	if err := service.ClearFlag(ctx, c.Param("eventId")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AddRelationship creates a typed edge between two canonical events by key
func AddRelationship(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "adjudication_handler.AddRelationship")
	defer span.End()

	coderID := ctxmiddleware.GetCoderID(ctx)
	if coderID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "coder id is required")
	}

	var req models.AddRelationshipRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, service, err := getService(ctx)
	if err != nil {
		return err
	}

	edge, err := service.AddRelationship(ctx, coderID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, edge)
}

// DeleteRelationship removes the edge with the exact (from, to, type)
func DeleteRelationship(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "adjudication_handler.DeleteRelationship")
	defer span.End()

	coderID := ctxmiddleware.GetCoderID(ctx)
	if coderID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "coder id is required")
	}

	var req models.DeleteRelationshipRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, service, err := getService(ctx)
	if err != nil {
		return err
	}

	if err := service.DeleteRelationship(ctx, coderID, req); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Hierarchy returns the two-level hierarchy around a canonical event
func Hierarchy(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "adjudication_handler.Hierarchy")
	defer span.End()

	ctx, service, err := getService(ctx)
	if err != nil {
		return err
	}

	view, err := service.LoadHierarchy(ctx, c.Param("key"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// TouchRecency bumps the caller's recency bookmarks
func TouchRecency(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "adjudication_handler.TouchRecency")
	defer span.End()

	coderID := ctxmiddleware.GetCoderID(ctx)
	if coderID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "coder id is required")
	}

	var req models.TouchRecencyRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, service, err := getService(ctx)
	if err != nil {
		return err
	}

	if err := service.TouchRecency(ctx, coderID, req.CandidateIDs, req.CanonicalKey); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// RecentCandidates returns the caller's most recently viewed candidate events
func RecentCandidates(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "adjudication_handler.RecentCandidates")
	defer span.End()

	coderID := ctxmiddleware.GetCoderID(ctx)
	if coderID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "coder id is required")
	}

	ctx, service, err := getService(ctx)
	if err != nil {
		return err
	}

	events, err := service.RecentCandidates(ctx, coderID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, events)
}

// RecentCanonical returns the caller's most recently viewed canonical events
func RecentCanonical(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "adjudication_handler.RecentCanonical")
	defer span.End()

	coderID := ctxmiddleware.GetCoderID(ctx)
	if coderID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "coder id is required")
	}

	ctx, service, err := getService(ctx)
	if err != nil {
		return err
	}

	events, err := service.RecentCanonical(ctx, coderID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, events)
}

func getService(ctx context.Context) (context.Context, *reconcile.Service, error) {
	ctx, service, err := ectoinject.GetContext[*reconcile.Service](ctx)
	if err != nil {
		return ctx, nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get reconcile service")
	}
	return ctx, service, nil
}

func requireCoder(ctx context.Context) error {
	if ctxmiddleware.GetCoderID(ctx) == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "coder id is required")
	}
	return nil
}
