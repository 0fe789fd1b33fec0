package activation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/lucid-core/internal/grid"
	"github.com/nerrad567/lucid-core/internal/infrastructure/mqtt"
)

// SearchRequest asks for the grid cells matching Query.
type SearchRequest struct {
	RequestID string `json:"request_id,omitempty"`
	Query     string `json:"query"`
}

// SearchResponse lists the matching cells, best first.
type SearchResponse struct {
	RequestID string       `json:"request_id,omitempty"`
	Beamline  string       `json:"beamline"`
	Query     string       `json:"query"`
	Matches   []grid.Match `json:"matches"`
	Error     string       `json:"error,omitempty"`
}

// Searcher ranks grid cells against a free-text query.
type Searcher interface {
	Search(text string, threshold int) []grid.Match
}

// SearchHandler returns an MQTT handler for the search topics. Queries are
// answered inline on the matching search result topic.
func (s *Service) SearchHandler(searcher Searcher, threshold int) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		beamline, ok := s.topics.BeamlineOf(topic)
		if !ok {
			return fmt.Errorf("%w: unexpected topic %q", ErrInvalidRequest, topic)
		}

		var req SearchRequest
		resp := SearchResponse{Beamline: beamline, Matches: []grid.Match{}}
		switch err := json.Unmarshal(payload, &req); {
		case err != nil:
			resp.Error = fmt.Errorf("%w: %v", ErrInvalidRequest, err).Error()
		case strings.TrimSpace(req.Query) == "":
			resp.RequestID = req.RequestID
			resp.Error = fmt.Errorf("%w: query is required", ErrInvalidRequest).Error()
		default:
			resp.RequestID, resp.Query = req.RequestID, req.Query
			if matches := searcher.Search(req.Query, threshold); len(matches) > 0 {
				resp.Matches = matches
			}
			s.activator.logger.Debug("grid searched", "beamline", beamline, "query", req.Query, "matches", len(resp.Matches))
		}

		if err := s.publisher.PublishJSON(s.topics.SearchResult(beamline), resp, false); err != nil {
			return fmt.Errorf("publishing search result: %w", err)
		}
		return nil
	}
}
