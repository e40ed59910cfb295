package v1_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/attorney/internal/agent"
	v1 "github.com/gosuda/attorney/internal/api/v1"
	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/flow"
)

func TestListAgents(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	v1.RegisterAgentRoutes(api, agent.DefaultRegistry())

	resp := api.Get("/agents")
	require.Equal(t, http.StatusOK, resp.Code)

	var agents []v1.AgentView
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &agents))
	require.Len(t, agents, 3)
	assert.Equal(t, domain.AgentCondition, agents[0].ID)
	assert.Contains(t, agents[0].Mutations, flow.MessageSetScope)
}
