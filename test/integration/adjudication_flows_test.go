package integration

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/aster/internal/repositories/candidateevent"
	"github.com/Ramsey-B/aster/internal/repositories/canonicalevent"
	"github.com/Ramsey-B/aster/internal/repositories/eventflag"
	"github.com/Ramsey-B/aster/internal/repositories/fieldlink"
	"github.com/Ramsey-B/aster/internal/repositories/fieldrecord"
	"github.com/Ramsey-B/aster/internal/repositories/recentevent"
	"github.com/Ramsey-B/aster/internal/repositories/relationship"
	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/events"
	"github.com/Ramsey-B/aster/pkg/graph"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/reconcile"
)

// flowContext wires the service over a real database for end to end
// adjudication flows. The connection comes from the DB_* environment
// variables; without them the flows are skipped.
type flowContext struct {
	ctx             context.Context
	db              database.DB
	candidateEvents *candidateevent.Repository
	canonicalEvents *canonicalevent.Repository
	fieldLinks      *fieldlink.Repository
	relationships   *relationship.Repository
	recents         *recentevent.Repository
	service         *reconcile.Service
	coderID         string
}

func setupFlowContext(t *testing.T) *flowContext {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tc := &flowContext{ctx: context.Background()}

	host := os.Getenv("DB_HOST")
	if host == "" {
		return tc
	}
	port := envOr("DB_PORT", "5432")
	user := envOr("DB_USER_NAME", "user")
	pass := envOr("DB_PASSWORD", "password")
	name := envOr("DB_NAME", "aster")

	dsn := "host=" + host + " port=" + port + " user=" + user + " password=" + pass + " dbname=" + name + " sslmode=disable"
	conn, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err, "Failed to connect to test database")

	logger := ectologger.NewEctoLogger(func(ectologger.EctoLogMessage) {})
	tc.db = database.NewInstance(conn, logger)

	tc.candidateEvents = candidateevent.NewRepository(tc.db, logger)
	tc.canonicalEvents = canonicalevent.NewRepository(tc.db, logger)
	tc.fieldLinks = fieldlink.NewRepository(tc.db, logger)
	tc.relationships = relationship.NewRepository(tc.db, logger)
	tc.recents = recentevent.NewRepository(tc.db, logger)
	tc.service = reconcile.NewService(
		tc.candidateEvents,
		fieldrecord.NewRepository(tc.db, logger),
		tc.canonicalEvents,
		tc.fieldLinks,
		tc.relationships,
		eventflag.NewRepository(tc.db, logger),
		tc.recents,
		events.NewEmitter(nil, logger),
		graph.NewProjection(nil, logger),
		logger,
		5,
	)

	tc.coderID = uuid.New().String()
	_, err = tc.db.ExecContext(tc.ctx, "INSERT INTO coders (id, username) VALUES ($1, $2)", tc.coderID, "flowcoder-"+tc.coderID[:8])
	require.NoError(t, err)

	return tc
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func TestFlagExclusivityFlow(t *testing.T) {
	tc := setupFlowContext(t)
	if tc.db == nil {
		t.Skip("Database not configured")
	}

	event, err := tc.candidateEvents.Create(tc.ctx, "article-"+uuid.New().String())
	require.NoError(t, err)

	_, err = tc.service.SetFlag(tc.ctx, tc.coderID, models.SetFlagRequest{
		CandidateEventID: event.ID,
		Flag:             models.FlagCompleted,
	})
	require.NoError(t, err)

	_, err = tc.service.SetFlag(tc.ctx, tc.coderID, models.SetFlagRequest{
		CandidateEventID: event.ID,
		Flag:             "for-review",
	})
	require.NoError(t, err)

	flags, err := tc.service.Flags(tc.ctx, []string{event.ID})
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, "for-review", flags[event.ID], "the second flag must replace the first")

	require.NoError(t, tc.service.ClearFlag(tc.ctx, event.ID))
	flags, err = tc.service.Flags(tc.ctx, []string{event.ID})
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestDuplicateWholeEventLinkFlow(t *testing.T) {
	tc := setupFlowContext(t)
	if tc.db == nil {
		t.Skip("Database not configured")
	}

	canonical, err := tc.service.CreateCanonicalEvent(tc.ctx, tc.coderID, models.CreateCanonicalEventRequest{
		Key: "flow-" + uuid.New().String(),
	})
	require.NoError(t, err)

	articleID := "article-" + uuid.New().String()
	link, err := tc.service.LinkWholeEvent(tc.ctx, tc.coderID, models.LinkWholeEventRequest{
		ArticleID:        articleID,
		CanonicalEventID: canonical.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, link)

	_, err = tc.service.LinkWholeEvent(tc.ctx, tc.coderID, models.LinkWholeEventRequest{
		ArticleID:        articleID,
		CanonicalEventID: canonical.ID,
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))

	articles, err := tc.service.ListLinkedArticles(tc.ctx, canonical.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{articleID}, articles)
}

func TestRecencyFlow(t *testing.T) {
	tc := setupFlowContext(t)
	if tc.db == nil {
		t.Skip("Database not configured")
	}

	var ids []string
	for i := 0; i < 6; i++ {
		canonical, err := tc.service.CreateCanonicalEvent(tc.ctx, tc.coderID, models.CreateCanonicalEventRequest{
			Key: "recency-" + uuid.New().String(),
		})
		require.NoError(t, err)
		ids = append(ids, canonical.ID)
	}

	for _, id := range ids {
		require.NoError(t, tc.recents.TouchCanonical(tc.ctx, tc.coderID, id))
		time.Sleep(time.Millisecond)
	}
	// touching the oldest again moves it to the front without adding a row
	require.NoError(t, tc.recents.TouchCanonical(tc.ctx, tc.coderID, ids[0]))

	recent, err := tc.service.RecentCanonical(tc.ctx, tc.coderID)
	require.NoError(t, err)
	require.Len(t, recent, 5, "the list is capped at the five most recent")
	assert.Equal(t, ids[0], recent[0].ID, "the refreshed bookmark surfaces first")

	seen := map[string]int{}
	for _, event := range recent {
		seen[event.ID]++
	}
	assert.Equal(t, 1, seen[ids[0]], "one bookmark row per (coder, event)")
	assert.NotContains(t, seen, ids[1], "the stalest bookmark falls off the end")
}

func TestCanonicalDeleteCascadeFlow(t *testing.T) {
	tc := setupFlowContext(t)
	if tc.db == nil {
		t.Skip("Database not configured")
	}

	keyA := "cascade-a-" + uuid.New().String()
	eventA, err := tc.service.CreateCanonicalEvent(tc.ctx, tc.coderID, models.CreateCanonicalEventRequest{Key: keyA})
	require.NoError(t, err)
	eventB, err := tc.service.CreateCanonicalEvent(tc.ctx, tc.coderID, models.CreateCanonicalEventRequest{
		Key: "cascade-b-" + uuid.New().String(),
	})
	require.NoError(t, err)

	_, err = tc.service.LinkWholeEvent(tc.ctx, tc.coderID, models.LinkWholeEventRequest{
		ArticleID:        "article-" + uuid.New().String(),
		CanonicalEventID: eventA.ID,
	})
	require.NoError(t, err)
	_, err = tc.service.AddRelationship(tc.ctx, tc.coderID, models.AddRelationshipRequest{
		Key1: eventB.Key,
		Key2: keyA,
		Type: "part-of",
	})
	require.NoError(t, err)
	require.NoError(t, tc.recents.TouchCanonical(tc.ctx, tc.coderID, eventA.ID))

	require.NoError(t, tc.service.DeleteCanonicalEvent(tc.ctx, tc.coderID, eventA.ID))

	_, err = tc.service.LoadCanonicalEvent(tc.ctx, eventA.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))

	articles, err := tc.fieldLinks.ListLinkedArticleIDs(tc.ctx, eventA.ID)
	require.NoError(t, err)
	assert.Empty(t, articles)

	edges, err := tc.relationships.EdgesFrom(tc.ctx, []string{eventB.ID})
	require.NoError(t, err)
	assert.Empty(t, edges)

	recent, err := tc.service.RecentCanonical(tc.ctx, tc.coderID)
	require.NoError(t, err)
	for _, event := range recent {
		assert.NotEqual(t, eventA.ID, event.ID)
	}
}
