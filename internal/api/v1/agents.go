package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/attorney/internal/agent"
	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/flow"
)

type AgentView struct {
	ID          domain.AgentID     `json:"id"`
	Description string             `json:"description"`
	Mutations   []flow.MessageType `json:"mutations"`
}

type ListAgentsInput struct{}

type ListAgentsOutput struct {
	Body []AgentView
}

func RegisterAgentRoutes(api huma.API, registry *agent.Registry) {
	huma.Register(api, huma.Operation{
		OperationID: "list-agents",
		Method:      http.MethodGet,
		Path:        "/agents",
		Summary:     "List the specialist agents and the mutations each may send",
		Tags:        []string{"Agents"},
	}, func(_ context.Context, _ *ListAgentsInput) (*ListAgentsOutput, error) {
		ids := registry.Available()
		out := make([]AgentView, 0, len(ids))
		for _, id := range ids {
			specialist, err := registry.Get(id)
			if err != nil {
				continue
			}
			out = append(out, AgentView{ID: specialist.ID, Description: specialist.Description, Mutations: specialist.Mutations})
		}
		return &ListAgentsOutput{Body: out}, nil
	})
}
