package agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/attorney/internal/agent"
	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/flow"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	t.Parallel()

	t.Run("happy path", func(t *testing.T) {
		t.Parallel()

		reg := agent.NewRegistry()
		reg.Register(agent.Specialist{ID: domain.AgentWitness, Description: "witnesses"})

		specialist, err := reg.Get(domain.AgentWitness)
		require.NoError(t, err)
		assert.Equal(t, "witnesses", specialist.Description)
	})

	t.Run("unknown agent returns ErrUnknownAgent", func(t *testing.T) {
		t.Parallel()

		_, err := agent.NewRegistry().Get(domain.AgentCondition)
		require.ErrorIs(t, err, agent.ErrUnknownAgent)
	})

	t.Run("register replaces", func(t *testing.T) {
		t.Parallel()

		reg := agent.NewRegistry()
		reg.Register(agent.Specialist{ID: domain.AgentWitness, Description: "v1"})
		reg.Register(agent.Specialist{ID: domain.AgentWitness, Description: "v2"})

		specialist, err := reg.Get(domain.AgentWitness)
		require.NoError(t, err)
		assert.Equal(t, "v2", specialist.Description)
		assert.Len(t, reg.Available(), 1)
	})
}

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()

	reg := agent.DefaultRegistry()
	assert.Equal(t, []domain.AgentID{
		domain.AgentCondition,
		domain.AgentRepresentative,
		domain.AgentWitness,
	}, reg.Available())

	tests := []struct {
		agent   domain.AgentID
		allowed []flow.MessageType
		denied  []flow.MessageType
	}{
		{
			agent:   domain.AgentRepresentative,
			allowed: []flow.MessageType{flow.MessageAddRepresentative, flow.MessageEditRepresentative, flow.MessageFetchDocument, flow.MessageValidateDocument},
			denied:  []flow.MessageType{flow.MessageAddWitness, flow.MessageSetScope, flow.MessageAddCondition},
		},
		{
			agent:   domain.AgentWitness,
			allowed: []flow.MessageType{flow.MessageAddWitness, flow.MessageAddFreeformWitness, flow.MessageRemoveWitness},
			denied:  []flow.MessageType{flow.MessageAddRepresentative, flow.MessageEditCondition},
		},
		{
			agent:   domain.AgentCondition,
			allowed: []flow.MessageType{flow.MessageAddCondition, flow.MessageEditCondition, flow.MessageSetScope},
			denied:  []flow.MessageType{flow.MessageRemoveRepresentative, flow.MessageRemoveWitness},
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.agent), func(t *testing.T) {
			t.Parallel()

			specialist, err := reg.Get(tt.agent)
			require.NoError(t, err)
			assert.NotEmpty(t, specialist.Instructions)
			for _, mt := range tt.allowed {
				assert.True(t, specialist.Allows(mt), mt)
			}
			for _, mt := range tt.denied {
				assert.False(t, specialist.Allows(mt), mt)
			}
		})
	}
}
