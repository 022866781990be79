// Package canonicalevent exposes canonical event lifecycle endpoints
package canonicalevent

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
	"github.com/Ramsey-B/aster/pkg/tracing"
)

var validate = validator.New()

// Register registers canonical event routes
func Register(g *echo.Group) {
	g.POST("", Create)
	g.PUT("/:id", Update)
	g.DELETE("/:id", Delete)
	g.GET("/:idOrKey", Get)
	g.GET("/:idOrKey/articles", LinkedArticles)
}

// Create creates a new canonical event
func Create(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "canonicalevent_handler.Create")
	defer span.End()

	coderID := ctxmiddleware.GetCoderID(ctx)
	if coderID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "coder id is required")
	}

	var req models.CreateCanonicalEventRequest
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

	event, err := service.CreateCanonicalEvent(ctx, coderID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, event)
}

// Update edits a canonical event
func Update(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "canonicalevent_handler.Update")
	defer span.End()

	coderID := ctxmiddleware.GetCoderID(ctx)
	if coderID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "coder id is required")
	}

	var req models.UpdateCanonicalEventRequest
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

	event, err := service.UpdateCanonicalEvent(ctx, coderID, c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, event)
}

// Delete removes a canonical event and everything hanging off of it
func Delete(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "canonicalevent_handler.Delete")
	defer span.End()

	coderID := ctxmiddleware.GetCoderID(ctx)
	if coderID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "coder id is required")
	}

	ctx, service, err := getService(ctx)
	if err != nil {
		return err
	}

	if err := service.DeleteCanonicalEvent(ctx, coderID, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Get returns a canonical event with its linked field values, resolved by id
// or key.
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "canonicalevent_handler.Get")
	defer span.End()

	ctx, service, err := getService(ctx)
	if err != nil {
		return err
	}

	detail, err := service.LoadCanonicalEvent(ctx, c.Param("idOrKey"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, detail)
}

// LinkedArticles returns the article ids whole-event linked into the event
func LinkedArticles(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "canonicalevent_handler.LinkedArticles")
	defer span.End()

	ctx, service, err := getService(ctx)
	if err != nil {
		return err
	}

	articleIDs, err := service.ListLinkedArticles(ctx, c.Param("idOrKey"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, articleIDs)
}

func getService(ctx context.Context) (context.Context, *reconcile.Service, error) {
	ctx, service, err := ectoinject.GetContext[*reconcile.Service](ctx)
	if err != nil {
		return ctx, nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get reconcile service")
	}
	return ctx, service, nil
}
