package reconcile

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// LoadHierarchy materializes the two-level hierarchy around a canonical
// event: its parents, its children, and the grandchildren gathered in one
// batched query and indexed by the child they hang off of. Deeper ancestry is
// deliberately not traversed.
func (s *Service) LoadHierarchy(ctx context.Context, key string) (*models.HierarchyView, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.LoadHierarchy")
	defer span.End()

	event, err := s.canonicalEvents.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "unknown canonical key "+key)
	}

	parents, err := s.relationships.ParentsOf(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	children, err := s.relationships.ChildrenOf(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	childIDs := make([]string, 0, len(children))
	for _, child := range children {
		childIDs = append(childIDs, child.Event.ID)
	}
	grandchildEdges, err := s.relationships.EdgesFrom(ctx, childIDs)
	if err != nil {
		return nil, err
	}

	return &models.HierarchyView{
		ID:            event.ID,
		Key:           event.Key,
		Parents:       parents,
		Children:      children,
		Grandchildren: groupGrandchildren(grandchildEdges),
	}, nil
}

// groupGrandchildren indexes the batched grandchild edges by the child they
// hang off of, which is the from side of each edge.
func groupGrandchildren(edges []models.HierarchyNode) map[string][]models.HierarchyNode {
	grandchildren := make(map[string][]models.HierarchyNode, len(edges))
	for _, node := range edges {
		grandchildren[node.Edge.CanonicalIDFrom] = append(grandchildren[node.Edge.CanonicalIDFrom], node)
	}
	return grandchildren
}
