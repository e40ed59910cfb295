// Package audit checks a document against its structural and business rules.
// Auditing is pure: no I/O, no mutation of the input, and the same document
// always yields the same findings in the same order.
package audit

import (
	"slices"

	"github.com/google/uuid"

	"github.com/gosuda/attorney/internal/domain"
)

// Rule inspects a document and reports at most one finding.
type Rule interface {
	Name() string
	Evaluate(doc *domain.Document) (domain.Finding, bool)
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc struct {
	RuleName string
	Fn       func(doc *domain.Document) (domain.Finding, bool)
}

func (r RuleFunc) Name() string { return r.RuleName }

func (r RuleFunc) Evaluate(doc *domain.Document) (domain.Finding, bool) {
	return r.Fn(doc)
}

// Engine runs an ordered battery of rules.
type Engine struct {
	rules  []Rule
	assets map[uuid.UUID]struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithAssets registers external asset ids that conditions may target.
func WithAssets(ids ...uuid.UUID) Option {
	return func(e *Engine) {
		for _, id := range ids {
			e.assets[id] = struct{}{}
		}
	}
}

// WithRules appends rules after the built-in battery.
func WithRules(rules ...Rule) Option {
	return func(e *Engine) {
		e.rules = append(e.rules, rules...)
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{assets: make(map[uuid.UUID]struct{})}
	e.rules = DefaultRules(e.isAsset)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the rule names in evaluation order.
func (e *Engine) Rules() []string {
	names := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		names = append(names, r.Name())
	}
	return names
}

// Audit evaluates every rule against a copy of doc. It always succeeds, even
// for a maximally broken document.
func (e *Engine) Audit(doc *domain.Document) *domain.AuditResult {
	snapshot := doc.Clone()
	if snapshot == nil {
		snapshot = domain.NewDocument(uuid.Nil)
	}

	findings := make([]domain.Finding, 0, len(e.rules))
	for _, rule := range e.rules {
		// Each rule sees its own copy so a misbehaving rule cannot affect the next.
		f, ok := rule.Evaluate(snapshot.Clone())
		if !ok {
			continue
		}
		if f.Actions == nil {
			f.Actions = []domain.CorrectiveAction{}
		}
		findings = append(findings, f)
	}

	slices.SortStableFunc(findings, func(a, b domain.Finding) int {
		return a.Type.Rank() - b.Type.Rank()
	})

	return &domain.AuditResult{Document: snapshot, Findings: findings}
}

func (e *Engine) isAsset(id uuid.UUID) bool {
	_, ok := e.assets[id]
	return ok
}
