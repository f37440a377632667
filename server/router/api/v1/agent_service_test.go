package v1

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recollecthq/recollect/store"
)

func TestGetAgentByID(t *testing.T) {
	service, driver := newWiredService()

	agent, err := driver.CreateAgent(t.Context(), &store.Agent{Name: "claude", DisplayName: "Claude"})
	require.NoError(t, err)
	id := strconv.Itoa(int(agent.ID))

	c, rec := authedRequest(http.MethodGet, "/api/v1/agents/"+id, "", 1)
	c.SetParamNames("id")
	c.SetParamValues(id)
	require.NoError(t, service.GetAgent(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"claude"`)
}

func TestGetAgentNotFound(t *testing.T) {
	service, _ := newWiredService()

	c, _ := authedRequest(http.MethodGet, "/api/v1/agents/99", "", 1)
	c.SetParamNames("id")
	c.SetParamValues("99")
	err := service.GetAgent(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestGetAgentRejectsInvalidID(t *testing.T) {
	service, _ := newWiredService()

	c, _ := authedRequest(http.MethodGet, "/api/v1/agents/claude", "", 1)
	c.SetParamNames("id")
	c.SetParamValues("claude")
	err := service.GetAgent(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}
