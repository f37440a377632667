package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/recollecthq/recollect/server/retrieval"
)

type searchRequest struct {
	Query string `json:"query"`
	// Mode is "hybrid" (default), "semantic", or "keyword".
	Mode       string  `json:"mode"`
	ProjectIDs []int32 `json:"project_ids"`
	AgentIDs   []int32 `json:"agent_ids"`
	Limit      int     `json:"limit"`
	Threshold  float64 `json:"threshold"`
}

// Search runs semantic, keyword, or RRF-fused hybrid retrieval over the
// caller's messages. The mode comes from the request body; the
// /search/{hybrid,semantic,keyword} routes fix it in the path instead.
func (s *APIV1Service) Search(c echo.Context) error {
	return s.search(c, "")
}

func (s *APIV1Service) SearchHybrid(c echo.Context) error {
	return s.search(c, "hybrid")
}

func (s *APIV1Service) SearchSemantic(c echo.Context) error {
	return s.search(c, "semantic")
}

func (s *APIV1Service) SearchKeyword(c echo.Context) error {
	return s.search(c, "keyword")
}

func (s *APIV1Service) search(c echo.Context, mode string) error {
	ctx := c.Request().Context()
	request := &searchRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	if request.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	if mode != "" {
		request.Mode = mode
	}

	opts := retrieval.SearchOptions{
		Query:      request.Query,
		OwnerID:    currentUserID(c),
		ProjectIDs: request.ProjectIDs,
		AgentIDs:   request.AgentIDs,
		Limit:      request.Limit,
		Threshold:  request.Threshold,
	}

	var search func(context.Context, retrieval.SearchOptions) ([]*retrieval.RankedResult, error)
	switch request.Mode {
	case "", "hybrid":
		search = s.Ranker.HybridSearch
	case "semantic":
		search = s.Ranker.SemanticSearch
	case "keyword":
		search = s.Ranker.KeywordSearch
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown search mode: "+request.Mode)
	}

	results, err := search(ctx, opts)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, struct {
		Results []*retrieval.RankedResult `json:"results"`
	}{results})
}
