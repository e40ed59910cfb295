package domain

import (
	"encoding/json"
	"fmt"
)

// AgentID names a specialist agent.
type AgentID string

const (
	AgentRepresentative AgentID = "representative_agent"
	AgentWitness        AgentID = "witness_agent"
	AgentCondition      AgentID = "condition_agent"
)

// Agents lists every specialist in a stable order.
func Agents() []AgentID {
	return []AgentID{AgentRepresentative, AgentCondition, AgentWitness}
}

func (a AgentID) Valid() bool {
	switch a {
	case AgentRepresentative, AgentWitness, AgentCondition:
		return true
	}
	return false
}

// ParseAgentID validates a wire value.
func ParseAgentID(s string) (AgentID, error) {
	a := AgentID(s)
	if !a.Valid() {
		return "", fmt.Errorf("domain.ParseAgentID(%q): %w", s, ErrProtocol)
	}
	return a, nil
}

// FindingType is the severity tier of a Finding.
type FindingType string

const (
	FindingError          FindingType = "error"
	FindingWarning        FindingType = "warning"
	FindingRecommendation FindingType = "recommendation"
	FindingInformation    FindingType = "information"
)

// Rank orders severities for presentation; lower is more severe.
func (t FindingType) Rank() int {
	switch t {
	case FindingError:
		return 0
	case FindingWarning:
		return 1
	case FindingRecommendation:
		return 2
	case FindingInformation:
		return 3
	}
	return 4
}

// CorrectiveAction is a suggested fix and the agent that should apply it.
type CorrectiveAction struct {
	Title  string  `json:"title"`
	Prompt string  `json:"prompt"`
	Scope  AgentID `json:"scope"`
}

type Finding struct {
	Type        FindingType        `json:"type"`
	Message     string             `json:"message"`
	Description string             `json:"description,omitempty"`
	Link        string             `json:"link,omitempty"`
	Actions     []CorrectiveAction `json:"actions"`
}

// AuditResult is produced fresh on every audit.
type AuditResult struct {
	Document *Document `json:"document"`
	Findings []Finding `json:"findings"`
}

// HasErrors reports whether any finding is Error-tier. A document with
// errors is not yet submittable; the audit itself still succeeded.
func (r *AuditResult) HasErrors() bool {
	for _, f := range r.Findings {
		if f.Type == FindingError {
			return true
		}
	}
	return false
}

// Count returns the number of findings of type t.
func (r *AuditResult) Count(t FindingType) int {
	n := 0
	for _, f := range r.Findings {
		if f.Type == t {
			n++
		}
	}
	return n
}

func (r AuditResult) MarshalJSON() ([]byte, error) {
	type plain AuditResult
	return json.Marshal(struct {
		plain
		HasErrors bool `json:"hasErrors"`
	}{plain: plain(r), HasErrors: r.HasErrors()})
}
