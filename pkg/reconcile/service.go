// Package reconcile implements the adjudication write path: canonical event
// lifecycle, provenance linking, flags, relationships and recency bookkeeping.
package reconcile

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/internal/repositories/candidateevent"
	"github.com/Ramsey-B/aster/internal/repositories/canonicalevent"
	"github.com/Ramsey-B/aster/internal/repositories/eventflag"
	"github.com/Ramsey-B/aster/internal/repositories/fieldlink"
	"github.com/Ramsey-B/aster/internal/repositories/fieldrecord"
	"github.com/Ramsey-B/aster/internal/repositories/recentevent"
	"github.com/Ramsey-B/aster/internal/repositories/relationship"
	"github.com/Ramsey-B/aster/pkg/events"
	"github.com/Ramsey-B/aster/pkg/graph"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// Service coordinates adjudication mutations across the repositories, the
// event emitter and the graph projection. Emitter and projection are
// best-effort side channels; their failures never roll back a mutation.
type Service struct {
	candidateEvents *candidateevent.Repository
	fieldRecords    *fieldrecord.Repository
	canonicalEvents *canonicalevent.Repository
	fieldLinks      *fieldlink.Repository
	relationships   *relationship.Repository
	flags           *eventflag.Repository
	recents         *recentevent.Repository
	emitter         *events.Emitter
	projection      *graph.Projection
	logger          ectologger.Logger
	recentLimit     int
}

// NewService creates a new reconciliation service
func NewService(
	candidateEvents *candidateevent.Repository,
	fieldRecords *fieldrecord.Repository,
	canonicalEvents *canonicalevent.Repository,
	fieldLinks *fieldlink.Repository,
	relationships *relationship.Repository,
	flags *eventflag.Repository,
	recents *recentevent.Repository,
	emitter *events.Emitter,
	projection *graph.Projection,
	logger ectologger.Logger,
	recentLimit int,
) *Service {
	return &Service{
		candidateEvents: candidateEvents,
		fieldRecords:    fieldRecords,
		canonicalEvents: canonicalEvents,
		fieldLinks:      fieldLinks,
		relationships:   relationships,
		flags:           flags,
		recents:         recents,
		emitter:         emitter,
		projection:      projection,
		logger:          logger,
		recentLimit:     recentLimit,
	}
}

// CreateCanonicalEvent creates a canonical event, rejecting duplicate keys.
func (s *Service) CreateCanonicalEvent(ctx context.Context, coderID string, req models.CreateCanonicalEventRequest) (*models.CanonicalEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.CreateCanonicalEvent")
	defer span.End()

	existing, err := s.canonicalEvents.GetByKey(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, httperror.NewHTTPError(http.StatusConflict, "a canonical event with that key already exists")
	}

	// the unique constraint settles create races; the repository maps the
	// violation to a conflict
	event, err := s.canonicalEvents.Create(ctx, coderID, req)
	if err != nil {
		return nil, err
	}

	s.emitter.EmitCanonical(ctx, events.EventTypeCanonicalCreated, event, coderID)
	s.project(ctx, func() error { return s.projection.UpsertCanonicalEvent(ctx, event) })
	return event, nil
}

// UpdateCanonicalEvent edits a canonical event, re-checking key uniqueness on
// rename.
func (s *Service) UpdateCanonicalEvent(ctx context.Context, coderID, id string, req models.UpdateCanonicalEventRequest) (*models.CanonicalEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.UpdateCanonicalEvent")
	defer span.End()

	event, err := s.canonicalEvents.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "canonical event not found")
	}

	if req.Key != event.Key {
		other, err := s.canonicalEvents.GetByKey(ctx, req.Key)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != id {
			return nil, httperror.NewHTTPError(http.StatusConflict, "a canonical event with that key already exists")
		}
	}

	if err := s.canonicalEvents.Update(ctx, id, req); err != nil {
		return nil, err
	}
	updated, err := s.canonicalEvents.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.emitter.EmitCanonical(ctx, events.EventTypeCanonicalUpdated, updated, coderID)
	s.project(ctx, func() error { return s.projection.UpsertCanonicalEvent(ctx, updated) })
	return updated, nil
}

// DeleteCanonicalEvent removes a canonical event and cascades over its field
// links, relationship edges and recency bookmarks, in that order, so the row
// delete cannot hit a referential violation.
func (s *Service) DeleteCanonicalEvent(ctx context.Context, coderID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.DeleteCanonicalEvent")
	defer span.End()

	event, err := s.canonicalEvents.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if event == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "canonical event not found")
	}

	if err := s.fieldLinks.DeleteByCanonical(ctx, id); err != nil {
		return err
	}
	if err := s.relationships.DeleteByCanonical(ctx, id); err != nil {
		return err
	}
	if err := s.recents.DeleteByCanonical(ctx, id); err != nil {
		return err
	}
	if err := s.canonicalEvents.Delete(ctx, id); err != nil {
		return err
	}

	s.emitter.EmitCanonical(ctx, events.EventTypeCanonicalDeleted, event, coderID)
	s.project(ctx, func() error { return s.projection.DeleteCanonicalEvent(ctx, id) })
	return nil
}

// LoadCanonicalEvent resolves an id or key and returns the event with every
// linked field value grouped by variable, provenance included.
func (s *Service) LoadCanonicalEvent(ctx context.Context, idOrKey string) (*models.CanonicalEventDetail, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.LoadCanonicalEvent")
	defer span.End()

	event, err := s.resolveCanonical(ctx, idOrKey)
	if err != nil {
		return nil, err
	}

	rows, err := s.fieldLinks.ListLinkedValues(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	fields := make(map[string][]models.LinkedValue)
	for _, row := range rows {
		value := row.Value
		if row.Text != nil {
			value = *row.Text
		}
		fields[row.Variable] = append(fields[row.Variable], models.LinkedValue{
			LinkID:        row.LinkID,
			Value:         value,
			Timestamp:     row.Timestamp,
			SourceEventID: row.CandidateEventID,
			IsDummy:       models.IsDummyUsername(row.Username),
		})
	}

	return &models.CanonicalEventDetail{
		ID:          event.ID,
		Key:         event.Key,
		Description: event.Description,
		Notes:       event.Notes,
		Fields:      fields,
	}, nil
}

// LoadCandidateEvents returns the grid view of the given candidate events:
// index metadata plus every coded variable with all of its values.
func (s *Service) LoadCandidateEvents(ctx context.Context, eventIDs []string) (map[string]models.CandidateEventDetail, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.LoadCandidateEvents")
	defer span.End()

	indexRows, err := s.candidateEvents.GetIndexByEventIDs(ctx, eventIDs)
	if err != nil {
		return nil, err
	}
	records, err := s.fieldRecords.ListByEventIDs(ctx, eventIDs)
	if err != nil {
		return nil, err
	}

	details := make(map[string]models.CandidateEventDetail, len(eventIDs))
	for _, id := range eventIDs {
		details[id] = models.CandidateEventDetail{
			Metadata: map[string]any{},
			Fields:   map[string][]models.FieldValue{},
		}
	}
	for _, row := range indexRows {
		detail, ok := details[row.CandidateEventID]
		if !ok {
			continue
		}
		detail.Metadata = indexMetadata(row)
		details[row.CandidateEventID] = detail
	}
	for _, record := range records {
		detail, ok := details[record.CandidateEventID]
		if !ok {
			continue
		}
		detail.Fields[record.Variable] = append(detail.Fields[record.Variable], models.FieldValue{
			Value:     record.DisplayValue(),
			RecordID:  record.ID,
			Timestamp: record.Timestamp,
		})
		details[record.CandidateEventID] = detail
	}
	return details, nil
}

// LinkWholeEvent links an article to a canonical event through the coder's
// lazily created placeholder record. Linking the same article twice into the
// same canonical event is a conflict.
func (s *Service) LinkWholeEvent(ctx context.Context, coderID string, req models.LinkWholeEventRequest) (*models.FieldLink, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.LinkWholeEvent")
	defer span.End()

	canonical, err := s.canonicalEvents.GetByID(ctx, req.CanonicalEventID)
	if err != nil {
		return nil, err
	}
	if canonical == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "canonical event not found")
	}

	existing, err := s.fieldLinks.FindWholeEventLink(ctx, req.CanonicalEventID, req.ArticleID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, httperror.NewHTTPError(http.StatusConflict, "article is already linked to that canonical event")
	}

	record, err := s.fieldRecords.FindLink(ctx, req.ArticleID, coderID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		event, err := s.candidateEvents.Create(ctx, req.ArticleID)
		if err != nil {
			return nil, err
		}
		record, err = s.fieldRecords.CreateLink(ctx, event.ID, req.ArticleID, coderID)
		if err != nil {
			return nil, err
		}
	}

	link, err := s.fieldLinks.Create(ctx, coderID, req.CanonicalEventID, record.ID)
	if err != nil {
		return nil, err
	}
	if err := s.canonicalEvents.Touch(ctx, req.CanonicalEventID); err != nil {
		return nil, err
	}

	s.emitter.EmitLink(ctx, events.EventTypeLinkCreated, link)
	s.project(ctx, func() error { return s.projection.UpsertLink(ctx, link, record.CandidateEventID) })
	return link, nil
}

// LinkField links one specific field record into a canonical event.
func (s *Service) LinkField(ctx context.Context, coderID string, req models.LinkFieldRequest) (*models.FieldLink, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.LinkField")
	defer span.End()

	record, err := s.fieldRecords.Get(ctx, req.FieldRecordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "field record not found")
	}

	canonical, err := s.canonicalEvents.GetByID(ctx, req.CanonicalEventID)
	if err != nil {
		return nil, err
	}
	if canonical == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "canonical event not found")
	}

	exists, err := s.fieldLinks.Exists(ctx, req.CanonicalEventID, req.FieldRecordID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, httperror.NewHTTPError(http.StatusConflict, "field record is already linked to that canonical event")
	}

	link, err := s.fieldLinks.Create(ctx, coderID, req.CanonicalEventID, req.FieldRecordID)
	if err != nil {
		return nil, err
	}
	if err := s.canonicalEvents.Touch(ctx, req.CanonicalEventID); err != nil {
		return nil, err
	}

	s.emitter.EmitLink(ctx, events.EventTypeLinkCreated, link)
	s.project(ctx, func() error { return s.projection.UpsertLink(ctx, link, record.CandidateEventID) })
	return link, nil
}

// Unlink removes a single field link by id
func (s *Service) Unlink(ctx context.Context, linkID string) error {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.Unlink")
	defer span.End()

	link, err := s.fieldLinks.Get(ctx, linkID)
	if err != nil {
		return err
	}
	if link == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "field link not found")
	}

	if err := s.fieldLinks.Delete(ctx, linkID); err != nil {
		return err
	}
	if err := s.canonicalEvents.Touch(ctx, link.CanonicalEventID); err != nil {
		return err
	}

	s.emitter.EmitLink(ctx, events.EventTypeLinkDeleted, link)
	return nil
}

// UnlinkWholeEvent removes every whole-event link of an article, then the
// placeholder records themselves. Links go first so the record delete cannot
// hit a referential violation.
func (s *Service) UnlinkWholeEvent(ctx context.Context, articleID string) error {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.UnlinkWholeEvent")
	defer span.End()

	recordIDs, err := s.fieldRecords.ListLinkRecordIDs(ctx, articleID)
	if err != nil {
		return err
	}
	if len(recordIDs) == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "article has no whole event links")
	}

	if err := s.fieldLinks.DeleteByRecordIDs(ctx, recordIDs); err != nil {
		return err
	}
	return s.fieldRecords.DeleteByIDs(ctx, recordIDs)
}

// ListLinkedArticles returns the article ids whole-event linked into a
// canonical event.
func (s *Service) ListLinkedArticles(ctx context.Context, idOrKey string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.ListLinkedArticles")
	defer span.End()

	event, err := s.resolveCanonical(ctx, idOrKey)
	if err != nil {
		return nil, err
	}
	return s.fieldLinks.ListLinkedArticleIDs(ctx, event.ID)
}

// AddRelationship creates a typed edge between two canonical events
// referenced by key. An event cannot be related to itself by key equality.
func (s *Service) AddRelationship(ctx context.Context, coderID string, req models.AddRelationshipRequest) (*models.RelationshipEdge, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.AddRelationship")
	defer span.End()

	from, err := s.canonicalEvents.GetByKey(ctx, req.Key1)
	if err != nil {
		return nil, err
	}
	if from == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "unknown canonical key "+req.Key1)
	}
	to, err := s.canonicalEvents.GetByKey(ctx, req.Key2)
	if err != nil {
		return nil, err
	}
	if to == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "unknown canonical key "+req.Key2)
	}
	if from.ID == to.ID {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "cannot relate a canonical event to itself")
	}

	edge, err := s.relationships.Create(ctx, coderID, from.ID, to.ID, req.Type)
	if err != nil {
		return nil, err
	}

	s.emitter.EmitRelationship(ctx, events.EventTypeRelationshipCreated, edge)
	s.project(ctx, func() error { return s.projection.UpsertRelationship(ctx, edge) })
	return edge, nil
}

// DeleteRelationship removes the edge with the exact (from, to, type)
func (s *Service) DeleteRelationship(ctx context.Context, coderID string, req models.DeleteRelationshipRequest) error {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.DeleteRelationship")
	defer span.End()

	if err := s.relationships.Delete(ctx, req.CanonicalIDFrom, req.CanonicalIDTo, req.Type); err != nil {
		return err
	}

	s.emitter.EmitRelationship(ctx, events.EventTypeRelationshipDeleted, &models.RelationshipEdge{
		CoderID:          coderID,
		CanonicalIDFrom:  req.CanonicalIDFrom,
		CanonicalIDTo:    req.CanonicalIDTo,
		RelationshipType: req.Type,
	})
	s.project(ctx, func() error {
		return s.projection.DeleteRelationship(ctx, req.CanonicalIDFrom, req.CanonicalIDTo, req.Type)
	})
	return nil
}

// SetFlag replaces the flag on a candidate event
func (s *Service) SetFlag(ctx context.Context, coderID string, req models.SetFlagRequest) (*models.EventFlag, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.SetFlag")
	defer span.End()

	event, err := s.candidateEvents.GetByID(ctx, req.CandidateEventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "candidate event not found")
	}

	flag, err := s.flags.Set(ctx, coderID, req.CandidateEventID, req.Flag)
	if err != nil {
		return nil, err
	}

	s.emitter.EmitFlag(ctx, flag)
	return flag, nil
}

// ClearFlag removes any flag from a candidate event
func (s *Service) ClearFlag(ctx context.Context, eventID string) error {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.ClearFlag")
	defer span.End()

	return s.flags.Clear(ctx, eventID)
}

// Flags returns the live flag per candidate event id
func (s *Service) Flags(ctx context.Context, eventIDs []string) (map[string]string, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.Flags")
	defer span.End()

	return s.flags.MapByEventIDs(ctx, eventIDs)
}

// LoadGrid assembles the adjudication grid in one call: the coder's recency
// bookmarks are touched, the candidate events are loaded with their flags,
// and when a canonical key is supplied its detail and linked articles come
// along too.
func (s *Service) LoadGrid(ctx context.Context, coderID string, req models.LoadGridRequest) (*models.GridView, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.LoadGrid")
	defer span.End()

	if err := s.TouchRecency(ctx, coderID, req.CandidateIDs, req.CanonicalKey); err != nil {
		return nil, err
	}

	events, err := s.LoadCandidateEvents(ctx, req.CandidateIDs)
	if err != nil {
		return nil, err
	}
	flags, err := s.Flags(ctx, req.CandidateIDs)
	if err != nil {
		return nil, err
	}

	view := &models.GridView{
		Events: events,
		Flags:  flags,
	}
	if req.CanonicalKey != "" {
		canonical, err := s.LoadCanonicalEvent(ctx, req.CanonicalKey)
		if err != nil {
			return nil, err
		}
		articles, err := s.ListLinkedArticles(ctx, canonical.ID)
		if err != nil {
			return nil, err
		}
		view.Canonical = canonical
		view.LinkedArticles = articles
	}
	return view, nil
}

// TouchRecency records that the coder just viewed the given candidate events
// and, when a key is supplied, a canonical event.
func (s *Service) TouchRecency(ctx context.Context, coderID string, candidateIDs []string, canonicalKey string) error {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.TouchRecency")
	defer span.End()

	for _, id := range candidateIDs {
		if err := s.recents.TouchCandidate(ctx, coderID, id); err != nil {
			return err
		}
	}
	if canonicalKey != "" {
		event, err := s.canonicalEvents.GetByKey(ctx, canonicalKey)
		if err != nil {
			return err
		}
		if event == nil {
			return httperror.NewHTTPError(http.StatusNotFound, "unknown canonical key "+canonicalKey)
		}
		if err := s.recents.TouchCanonical(ctx, coderID, event.ID); err != nil {
			return err
		}
	}
	return nil
}

// RecentCandidates returns the coder's most recently viewed candidate events
func (s *Service) RecentCandidates(ctx context.Context, coderID string) ([]models.CandidateEventIndex, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.RecentCandidates")
	defer span.End()

	return s.recents.RecentCandidateIndexes(ctx, coderID, s.recentLimit)
}

// RecentCanonical returns the coder's most recently viewed canonical events
func (s *Service) RecentCanonical(ctx context.Context, coderID string) ([]models.CanonicalEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.RecentCanonical")
	defer span.End()

	return s.recents.RecentCanonicalEvents(ctx, coderID, s.recentLimit)
}

func (s *Service) resolveCanonical(ctx context.Context, idOrKey string) (*models.CanonicalEvent, error) {
	event, err := s.canonicalEvents.GetByID(ctx, idOrKey)
	if err != nil {
		return nil, err
	}
	if event == nil {
		event, err = s.canonicalEvents.GetByKey(ctx, idOrKey)
		if err != nil {
			return nil, err
		}
	}
	if event == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "canonical event not found")
	}
	return event, nil
}

// project runs a graph projection write, logging failures instead of
// surfacing them.
func (s *Service) project(ctx context.Context, fn func() error) {
	if err := fn(); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Graph projection write failed")
	}
}

func indexMetadata(row models.CandidateEventIndex) map[string]any {
	metadata := map[string]any{
		"candidate_event_id": row.CandidateEventID,
	}
	put := func(key string, value *string) {
		if value != nil {
			metadata[key] = *value
		}
	}
	put("coder_id", row.CoderID)
	put("article_id", row.ArticleID)
	put("article_desc", row.ArticleDesc)
	put("title", row.Title)
	put("publication", row.Publication)
	put("description", row.Description)
	put("location", row.Location)
	if row.StartDate != nil {
		metadata["start_date"] = *row.StartDate
	}
	if row.PubDate != nil {
		metadata["pub_date"] = *row.PubDate
	}
	return metadata
}
