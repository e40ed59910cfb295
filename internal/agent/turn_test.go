package agent_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/attorney/internal/agent"
	"github.com/gosuda/attorney/internal/audit"
	"github.com/gosuda/attorney/internal/document"
	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/flow"
	"github.com/gosuda/attorney/internal/handoff"
	"github.com/gosuda/attorney/internal/store/memory"
)

type harness struct {
	session  *agent.Session
	coord    *handoff.Coordinator
	store    *memory.DocumentStore
	binding  *domain.ThreadBinding
	contacts []domain.Acquaintance
}

func newHarness(t *testing.T, initial domain.AgentID) *harness {
	t.Helper()

	userID := uuid.New()
	contacts := []domain.Acquaintance{
		{ID: uuid.New(), UserID: userID, FullName: "Ann Lee", NationalIDNumber: "A-100", Address: "1 Elm"},
		{ID: uuid.New(), UserID: userID, FullName: "Bob Kim", NationalIDNumber: "B-200", Address: "2 Oak"},
	}
	dir := memory.NewDirectory(contacts...)
	store := memory.NewDocumentStore()

	m := flow.NewManager(flow.NewProcessor(document.NewService(store, dir), audit.NewEngine()))
	t.Cleanup(m.Shutdown)

	coord := handoff.NewCoordinator(memory.NewThreadRepo(), handoff.NewMemoryOwnership())
	binding, err := domain.NewThreadBinding("thread-1", uuid.New(), userID, initial)
	require.NoError(t, err)
	require.NoError(t, coord.Open(t.Context(), binding))

	return &harness{
		session:  agent.NewSession(binding, agent.DefaultRegistry(), m, dir, coord),
		coord:    coord,
		store:    store,
		binding:  binding,
		contacts: contacts,
	}
}

func TestSession_BeginTurnRequiresOwnership(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.AgentRepresentative)

	_, err := h.session.BeginTurn(t.Context(), domain.AgentWitness)
	require.ErrorIs(t, err, handoff.ErrNotOwner)

	turn, err := h.session.BeginTurn(t.Context(), domain.AgentRepresentative)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentRepresentative, turn.Agent())
	assert.Equal(t, h.binding.DocumentID, turn.DocumentID())
}

func TestTurn_UnresolvedIDNeverReachesTheDocument(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.AgentRepresentative)

	turn, err := h.session.BeginTurn(t.Context(), domain.AgentRepresentative)
	require.NoError(t, err)

	_, err = turn.AddRepresentative(t.Context(), h.contacts[0].ID)
	require.ErrorIs(t, err, agent.ErrUnresolvedID)
	assert.Equal(t, 0, h.store.Len(), "nothing was sent to the correlation layer")

	list, err := turn.ListAcquaintances(t.Context())
	require.NoError(t, err)
	require.Len(t, list, 2)

	resp, err := turn.AddRepresentative(t.Context(), h.contacts[0].ID)
	require.NoError(t, err)
	require.Len(t, resp.Document.Representatives, 1)
	require.NotNil(t, resp.AuditResult)
	assert.False(t, resp.AuditResult.HasErrors())

	// An id seen in a mutation response still needs a listing of its category.
	repID := resp.Document.Representatives[0].ID
	_, err = turn.RemoveRepresentative(t.Context(), repID)
	require.ErrorIs(t, err, agent.ErrUnresolvedID)

	reps, err := turn.ListRepresentatives(t.Context())
	require.NoError(t, err)
	require.Len(t, reps, 1)
	_, err = turn.RemoveRepresentative(t.Context(), repID)
	require.NoError(t, err)
}

func TestTurn_ListingsResolveTheirOwnCategory(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.AgentWitness)

	turn, err := h.session.BeginTurn(t.Context(), domain.AgentWitness)
	require.NoError(t, err)
	_, err = turn.ListAcquaintances(t.Context())
	require.NoError(t, err)
	resp, err := turn.AddWitness(t.Context(), h.contacts[1].ID)
	require.NoError(t, err)
	witnessID := resp.Document.Witnesses[0].ID

	// Listing representatives shows the whole document but resolves only representatives.
	_, err = turn.ListRepresentatives(t.Context())
	require.NoError(t, err)
	_, err = turn.RemoveWitness(t.Context(), witnessID)
	require.ErrorIs(t, err, agent.ErrUnresolvedID)

	// An acquaintance id is not a witness id.
	_, err = turn.RemoveWitness(t.Context(), h.contacts[1].ID)
	require.ErrorIs(t, err, agent.ErrUnresolvedID)

	_, err = turn.ListWitnesses(t.Context())
	require.NoError(t, err)
	resp, err = turn.RemoveWitness(t.Context(), witnessID)
	require.NoError(t, err)
	assert.Empty(t, resp.Document.Witnesses)
}

func TestTurn_OutOfScopeMutation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.AgentRepresentative)

	turn, err := h.session.BeginTurn(t.Context(), domain.AgentRepresentative)
	require.NoError(t, err)

	_, err = turn.SetScope(t.Context(), "sell my car")
	require.ErrorIs(t, err, agent.ErrOutOfScope)
	_, err = turn.AddFreeformWitness(t.Context(), "Cy Park", "C-300")
	require.ErrorIs(t, err, agent.ErrOutOfScope)

	result, err := turn.RequestAudit(t.Context())
	require.NoError(t, err)
	assert.True(t, result.HasErrors())
}

func TestTurn_HandoffEndsTurn(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.AgentRepresentative)

	rep, err := h.session.BeginTurn(t.Context(), domain.AgentRepresentative)
	require.NoError(t, err)
	_, err = rep.ListAcquaintances(t.Context())
	require.NoError(t, err)

	tr, err := rep.Handoff(t.Context(), domain.AgentWitness, "add Bob as a witness")
	require.NoError(t, err)
	assert.Equal(t, h.binding.DocumentID, tr.DocumentID)
	assert.True(t, rep.Ended())

	_, err = rep.AddRepresentative(t.Context(), h.contacts[0].ID)
	require.ErrorIs(t, err, agent.ErrTurnEnded)
	_, err = rep.Handoff(t.Context(), domain.AgentCondition, "again")
	require.ErrorIs(t, err, agent.ErrTurnEnded)

	wit, err := h.session.BeginTurn(t.Context(), domain.AgentWitness)
	require.NoError(t, err)
	// Acquaintances listed earlier in the conversation stay resolved.
	resp, err := wit.AddWitness(t.Context(), h.contacts[1].ID)
	require.NoError(t, err)
	assert.Len(t, resp.Document.Witnesses, 1)
	assert.Equal(t, h.binding.DocumentID, resp.DocumentID)
}

func TestTurn_ConditionTargets(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.AgentCondition)

	turn, err := h.session.BeginTurn(t.Context(), domain.AgentCondition)
	require.NoError(t, err)

	stranger := uuid.New()
	_, err = turn.AddCondition(t.Context(), domain.ConditionTypeRepresentative, "only with a notary", &stranger)
	require.ErrorIs(t, err, agent.ErrUnresolvedID)

	resp, err := turn.AddCondition(t.Context(), domain.ConditionTypeGeneral, "valid for one year", nil)
	require.NoError(t, err)
	require.Len(t, resp.Document.Conditions, 1)

	conds, err := turn.ListConditions(t.Context())
	require.NoError(t, err)
	text := "valid for two years"
	_, err = turn.EditCondition(t.Context(), conds[0].ID, document.ConditionEdit{Text: &text})
	require.NoError(t, err)

	_, err = turn.SetScope(t.Context(), "manage my bank accounts")
	require.NoError(t, err)

	// Remove with a listed id that the core no longer has.
	_, err = turn.RemoveCondition(t.Context(), conds[0].ID)
	require.NoError(t, err)
	_, err = turn.RemoveCondition(t.Context(), conds[0].ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTurn_RetypedConditionTargetMustBeListed(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.AgentCondition)

	turn, err := h.session.BeginTurn(t.Context(), domain.AgentCondition)
	require.NoError(t, err)

	asset := uuid.New()
	_, err = turn.AddCondition(t.Context(), domain.ConditionTypeAsset, "only the car", &asset)
	require.NoError(t, err)
	conds, err := turn.ListConditions(t.Context())
	require.NoError(t, err)

	representative := domain.ConditionTypeRepresentative
	_, err = turn.EditCondition(t.Context(), conds[0].ID, document.ConditionEdit{Type: &representative, TargetID: &asset})
	require.ErrorIs(t, err, agent.ErrUnresolvedID)

	// Without a new target the core checks the kept one.
	_, err = turn.EditCondition(t.Context(), conds[0].ID, document.ConditionEdit{Type: &representative})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTurn_Dispatch(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.AgentCondition)

	turn, err := h.session.BeginTurn(t.Context(), domain.AgentCondition)
	require.NoError(t, err)

	// The envelope's document, thread and user are replaced by the binding's.
	resp, err := turn.Dispatch(t.Context(), &flow.SetScope{
		Header: flow.Header{RequestID: "s1", DocumentID: uuid.New(), ThreadID: "other", Caller: uuid.New()},
		Scope:  "Sell the house",
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", resp.RequestID)
	assert.Equal(t, h.binding.DocumentID, resp.DocumentID)
	assert.Equal(t, h.binding.UserID, resp.Document.Principal.UserID)

	_, err = turn.Dispatch(t.Context(), &flow.AddFreeformWitness{FullName: "Cy Park", NationalIDNumber: "C-300"})
	require.ErrorIs(t, err, agent.ErrOutOfScope)

	_, err = turn.Dispatch(t.Context(), &flow.RemoveCondition{ConditionID: uuid.New()})
	require.ErrorIs(t, err, agent.ErrUnresolvedID)

	_, err = turn.Dispatch(t.Context(), &flow.UnknownRequest{Header: flow.Header{MessageType: "sign_document"}})
	require.ErrorIs(t, err, domain.ErrProtocol)
}

func TestSessions(t *testing.T) {
	t.Parallel()
	h := newHarness(t, domain.AgentRepresentative)

	m := flow.NewManager(flow.NewProcessor(document.NewService(h.store, memory.NewDirectory(h.contacts...)), audit.NewEngine()))
	t.Cleanup(m.Shutdown)
	sessions := agent.NewSessions(agent.DefaultRegistry(), m, memory.NewDirectory(h.contacts...), h.coord, time.Hour)

	_, err := sessions.Get(t.Context(), h.binding.ThreadID, uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = sessions.Get(t.Context(), "missing", h.binding.UserID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	first, err := sessions.Get(t.Context(), h.binding.ThreadID, h.binding.UserID)
	require.NoError(t, err)
	turn, err := first.BeginTurn(t.Context(), domain.AgentRepresentative)
	require.NoError(t, err)
	_, err = turn.ListAcquaintances(t.Context())
	require.NoError(t, err)

	// A later request on the same thread keeps what was listed.
	again, err := sessions.Get(t.Context(), h.binding.ThreadID, h.binding.UserID)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, sessions.Len())

	turn, err = again.BeginTurn(t.Context(), domain.AgentRepresentative)
	require.NoError(t, err)
	_, err = turn.AddRepresentative(t.Context(), h.contacts[0].ID)
	require.NoError(t, err)
}
