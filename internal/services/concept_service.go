package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/yungbote/ncertlens-backend/internal/data/graph"
	"github.com/yungbote/ncertlens-backend/internal/data/repos"
	types "github.com/yungbote/ncertlens-backend/internal/domain"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/platform/apierr"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

type ConceptVideoGraph interface {
	VideosForConcept(ctx context.Context, concept string, limit int) ([]graph.VideoRef, error)
}

type ConceptService interface {
	List(dbc dbctx.Context, subject string, class int) ([]*types.Concept, error)
	Get(dbc dbctx.Context, conceptID string) (*types.Concept, error)
	Videos(ctx context.Context, concept string, limit int) ([]graph.VideoRef, error)
}

type conceptService struct {
	log      *logger.Logger
	concepts repos.ConceptRepo
	graph    ConceptVideoGraph
}

func NewConceptService(baseLog *logger.Logger, concepts repos.ConceptRepo, g ConceptVideoGraph) ConceptService {
	return &conceptService{
		log:      baseLog.With("service", "ConceptService"),
		concepts: concepts,
		graph:    g,
	}
}

func (s *conceptService) List(dbc dbctx.Context, subject string, class int) ([]*types.Concept, error) {
	subject = strings.TrimSpace(subject)
	if err := validateSubjectClass(subject, class); err != nil {
		return nil, err
	}
	out, err := s.concepts.List(dbc, repos.ConceptFilter{Subject: subject, Class: class})
	if err != nil {
		return nil, fmt.Errorf("list concepts: %w", err)
	}
	if out == nil {
		out = []*types.Concept{}
	}
	return out, nil
}

func (s *conceptService) Get(dbc dbctx.Context, conceptID string) (*types.Concept, error) {
	conceptID = strings.TrimSpace(conceptID)
	if conceptID == "" {
		return nil, apierr.BadRequest("invalid_concept_id", fmt.Errorf("conceptId is required"))
	}
	c, err := s.concepts.Get(dbc, conceptID)
	if err != nil {
		return nil, fmt.Errorf("load concept %s: %w", conceptID, err)
	}
	if c == nil {
		return nil, apierr.NotFound("concept_not_found", fmt.Errorf("concept %s not found", conceptID))
	}
	return c, nil
}

// Videos accepts a catalog concept id or a free-form concept name.
func (s *conceptService) Videos(ctx context.Context, concept string, limit int) ([]graph.VideoRef, error) {
	concept = strings.TrimSpace(concept)
	if concept == "" {
		return nil, apierr.BadRequest("invalid_concept_id", fmt.Errorf("concept is required"))
	}
	if limit == 0 {
		limit = 20
	}
	if limit < 1 || limit > 100 {
		return nil, apierr.BadRequest("invalid_limit", fmt.Errorf("limit must be between 1 and 100"))
	}
	if s.graph == nil {
		return nil, unavailable("graph_unavailable", "concept graph")
	}
	refs, err := s.graph.VideosForConcept(ctx, concept, limit)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "graph_query_failed", err)
	}
	if refs == nil {
		refs = []graph.VideoRef{}
	}
	return refs, nil
}
