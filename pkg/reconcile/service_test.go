package reconcile

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/aster/internal/repositories/candidateevent"
	"github.com/Ramsey-B/aster/internal/repositories/canonicalevent"
	"github.com/Ramsey-B/aster/internal/repositories/eventflag"
	"github.com/Ramsey-B/aster/internal/repositories/fieldlink"
	"github.com/Ramsey-B/aster/internal/repositories/fieldrecord"
	"github.com/Ramsey-B/aster/internal/repositories/recentevent"
	"github.com/Ramsey-B/aster/internal/repositories/relationship"
	"github.com/Ramsey-B/aster/pkg/database/databasetest"
	"github.com/Ramsey-B/aster/pkg/events"
	"github.com/Ramsey-B/aster/pkg/graph"
	"github.com/Ramsey-B/aster/pkg/models"
)

func strPtr(s string) *string { return &s }

// newTestService wires a full service over a canned store so the validation
// and orchestration paths can run without Postgres.
func newTestService(db *databasetest.FakeDB) *Service {
	logger := ectologger.NewEctoLogger(func(ectologger.EctoLogMessage) {})
	return NewService(
		candidateevent.NewRepository(db, logger),
		fieldrecord.NewRepository(db, logger),
		canonicalevent.NewRepository(db, logger),
		fieldlink.NewRepository(db, logger),
		relationship.NewRepository(db, logger),
		eventflag.NewRepository(db, logger),
		recentevent.NewRepository(db, logger),
		events.NewEmitter(nil, logger),
		graph.NewProjection(nil, logger),
		logger,
		5,
	)
}

func TestCreateCanonicalEvent_DuplicateKeyIsAConflict(t *testing.T) {
	db := &databasetest.FakeDB{
		GetFn: func(dest any, query string, args []any) error {
			if event, ok := dest.(*models.CanonicalEvent); ok {
				*event = models.CanonicalEvent{ID: "canon-1", Key: "selma-march", CoderID: "coder-1"}
				return nil
			}
			return sql.ErrNoRows
		},
	}
	service := newTestService(db)

	created, err := service.CreateCanonicalEvent(context.Background(), "coder-2", models.CreateCanonicalEventRequest{Key: "selma-march"})
	require.Error(t, err)
	assert.Nil(t, created)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	assert.Empty(t, db.ExecCalls, "no insert should be attempted for a duplicate key")
}

func TestAddRelationship_SelfReferenceIsRejected(t *testing.T) {
	db := &databasetest.FakeDB{
		GetFn: func(dest any, query string, args []any) error {
			if event, ok := dest.(*models.CanonicalEvent); ok {
				*event = models.CanonicalEvent{ID: "canon-1", Key: "selma-march"}
				return nil
			}
			return sql.ErrNoRows
		},
	}
	service := newTestService(db)

	edge, err := service.AddRelationship(context.Background(), "coder-1", models.AddRelationshipRequest{
		Key1: "selma-march",
		Key2: "selma-march",
		Type: "part-of",
	})
	require.Error(t, err)
	assert.Nil(t, edge)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	assert.Empty(t, db.ExecCalls)
}

func TestLinkWholeEvent_DuplicateLinkIsAConflict(t *testing.T) {
	db := &databasetest.FakeDB{
		GetFn: func(dest any, query string, args []any) error {
			switch dest := dest.(type) {
			case *models.CanonicalEvent:
				*dest = models.CanonicalEvent{ID: "canon-1", Key: "selma-march"}
				return nil
			case *models.FieldLink:
				*dest = models.FieldLink{ID: "link-1", CanonicalEventID: "canon-1"}
				return nil
			}
			return sql.ErrNoRows
		},
	}
	service := newTestService(db)

	link, err := service.LinkWholeEvent(context.Background(), "coder-1", models.LinkWholeEventRequest{
		CanonicalEventID: "canon-1",
		ArticleID:        "article-9",
	})
	require.Error(t, err)
	assert.Nil(t, link)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	assert.Empty(t, db.ExecCalls, "the duplicate must be detected before any write")
}

func TestUnlinkWholeEvent_NoLinksIsNotFound(t *testing.T) {
	service := newTestService(&databasetest.FakeDB{})

	err := service.UnlinkWholeEvent(context.Background(), "article-9")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestTouchRecency_UnknownCanonicalKeyIsNotFound(t *testing.T) {
	service := newTestService(&databasetest.FakeDB{})

	err := service.TouchRecency(context.Background(), "coder-1", nil, "no-such-key")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestDeleteCanonicalEvent_CascadesInDependencyOrder(t *testing.T) {
	db := &databasetest.FakeDB{
		GetFn: func(dest any, query string, args []any) error {
			if event, ok := dest.(*models.CanonicalEvent); ok {
				*event = models.CanonicalEvent{ID: "canon-1", Key: "selma-march"}
				return nil
			}
			return sql.ErrNoRows
		},
	}
	service := newTestService(db)

	err := service.DeleteCanonicalEvent(context.Background(), "coder-1", "canon-1")
	require.NoError(t, err)

	require.Len(t, db.ExecCalls, 4)
	tables := []string{"field_links", "relationship_edges", "recent_canonical_events", "canonical_events"}
	for i, table := range tables {
		assert.True(t, strings.HasPrefix(db.ExecCalls[i].Query, "DELETE FROM "+table),
			"call %d should delete from %s, got %q", i, table, db.ExecCalls[i].Query)
	}
}

func TestIndexMetadata(t *testing.T) {
	t.Run("includes only populated columns", func(t *testing.T) {
		startDate := time.Date(1963, 5, 3, 0, 0, 0, 0, time.UTC)
		row := models.CandidateEventIndex{
			CandidateEventID: "cand-1",
			CoderID:          strPtr("coder-1"),
			ArticleID:        strPtr("article-9"),
			Title:            strPtr("March on the courthouse"),
			StartDate:        &startDate,
		}

		metadata := indexMetadata(row)

		assert.Equal(t, "cand-1", metadata["candidate_event_id"])
		assert.Equal(t, "coder-1", metadata["coder_id"])
		assert.Equal(t, "article-9", metadata["article_id"])
		assert.Equal(t, "March on the courthouse", metadata["title"])
		assert.Equal(t, startDate, metadata["start_date"])
		assert.NotContains(t, metadata, "location")
		assert.NotContains(t, metadata, "pub_date")
	})

	t.Run("bare row keeps the event id", func(t *testing.T) {
		metadata := indexMetadata(models.CandidateEventIndex{CandidateEventID: "cand-2"})
		assert.Equal(t, map[string]any{"candidate_event_id": "cand-2"}, metadata)
	})
}
