package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/recollecthq/recollect/store"
)

type agentResponse struct {
	ID          int32  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

func toAgentResponse(agent *store.Agent) *agentResponse {
	return &agentResponse{
		ID:          agent.ID,
		Name:        agent.Name,
		DisplayName: agent.DisplayName,
	}
}

// ListAgents lists all known assistant providers.
func (s *APIV1Service) ListAgents(c echo.Context) error {
	ctx := c.Request().Context()
	agents, err := s.Store.ListAgents(ctx, &store.FindAgent{})
	if err != nil {
		return toHTTPError(err)
	}
	response := make([]*agentResponse, len(agents))
	for i, agent := range agents {
		response[i] = toAgentResponse(agent)
	}
	return c.JSON(http.StatusOK, response)
}

// GetAgent returns one agent by id.
func (s *APIV1Service) GetAgent(c echo.Context) error {
	ctx := c.Request().Context()
	parsed, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid agent id")
	}
	id := int32(parsed)
	agent, err := s.Store.GetAgent(ctx, &store.FindAgent{ID: &id})
	if err != nil {
		return toHTTPError(err)
	}
	if agent == nil {
		return echo.NewHTTPError(http.StatusNotFound, "agent not found")
	}
	return c.JSON(http.StatusOK, toAgentResponse(agent))
}
