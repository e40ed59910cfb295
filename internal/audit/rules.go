package audit

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gosuda/attorney/internal/domain"
)

// Rule names, in declaration order.
const (
	RuleRepresentativeMissing   = "representative_lower_bound"
	RuleRepresentativeOverflow  = "representative_upper_bound"
	RuleRepresentativeDuplicate = "representative_duplicate"
	RuleWitnessOverflow         = "witness_upper_bound"
	RuleWitnessDuplicate        = "witness_duplicate"
	RuleScopeEmpty              = "scope_completeness"
	RuleDanglingTarget          = "condition_dangling_target"
	RuleOrphanedWitnesses       = "witness_without_representatives"
	RuleSummary                 = "document_summary"
)

// DefaultRules returns the built-in battery. isAsset recognizes external
// asset ids that conditions may legitimately target.
func DefaultRules(isAsset func(uuid.UUID) bool) []Rule {
	return []Rule{
		RuleFunc{RuleRepresentativeMissing, representativeMissing},
		RuleFunc{RuleRepresentativeOverflow, representativeOverflow},
		RuleFunc{RuleRepresentativeDuplicate, representativeDuplicate},
		RuleFunc{RuleWitnessOverflow, witnessOverflow},
		RuleFunc{RuleWitnessDuplicate, witnessDuplicate},
		RuleFunc{RuleScopeEmpty, scopeEmpty},
		RuleFunc{RuleDanglingTarget, danglingTarget(isAsset)},
		RuleFunc{RuleOrphanedWitnesses, orphanedWitnesses},
		RuleFunc{RuleSummary, summary},
	}
}

func representativeMissing(doc *domain.Document) (domain.Finding, bool) {
	if len(doc.Representatives) > 0 {
		return domain.Finding{}, false
	}
	return domain.Finding{
		Type:        domain.FindingError,
		Message:     "The document has no representatives",
		Description: "At least one representative is required before the document can be submitted.",
		Actions: []domain.CorrectiveAction{{
			Title:  "Add a representative",
			Prompt: "Add at least one representative to the document.",
			Scope:  domain.AgentRepresentative,
		}},
	}, true
}

func representativeOverflow(doc *domain.Document) (domain.Finding, bool) {
	n := len(doc.Representatives)
	if n <= domain.MaxRepresentatives {
		return domain.Finding{}, false
	}
	return domain.Finding{
		Type:        domain.FindingError,
		Message:     "The document has too many representatives",
		Description: fmt.Sprintf("The document lists %d representatives; at most %d are allowed.", n, domain.MaxRepresentatives),
		Actions: []domain.CorrectiveAction{{
			Title:  "Remove representatives",
			Prompt: fmt.Sprintf("Remove %d representative(s) so that no more than %d remain.", n-domain.MaxRepresentatives, domain.MaxRepresentatives),
			Scope:  domain.AgentRepresentative,
		}},
	}, true
}

func representativeDuplicate(doc *domain.Document) (domain.Finding, bool) {
	seen := make(map[string]domain.Representative, len(doc.Representatives))
	var pairs []string
	for _, r := range doc.Representatives {
		key := normalizeID(r.NationalID)
		if key == "" {
			continue
		}
		if first, ok := seen[key]; ok {
			pairs = append(pairs, fmt.Sprintf("%s (%s) and %s (%s) share national ID %s",
				first.FullName, first.ID, r.FullName, r.ID, r.NationalID))
			continue
		}
		seen[key] = r
	}
	if len(pairs) == 0 {
		return domain.Finding{}, false
	}
	return domain.Finding{
		Type:        domain.FindingError,
		Message:     "Two representatives share the same national ID",
		Description: strings.Join(pairs, "; "),
		Actions: []domain.CorrectiveAction{{
			Title:  "Remove the duplicate representative",
			Prompt: "Remove the duplicate representative: " + strings.Join(pairs, "; ") + ".",
			Scope:  domain.AgentRepresentative,
		}},
	}, true
}

func witnessOverflow(doc *domain.Document) (domain.Finding, bool) {
	n := len(doc.Witnesses)
	if n <= domain.MaxWitnesses {
		return domain.Finding{}, false
	}
	return domain.Finding{
		Type:        domain.FindingError,
		Message:     "The document has too many witnesses",
		Description: fmt.Sprintf("The document lists %d witnesses; at most %d are allowed.", n, domain.MaxWitnesses),
		Actions: []domain.CorrectiveAction{{
			Title:  "Remove witnesses",
			Prompt: fmt.Sprintf("Remove %d witness(es) so that no more than %d remain.", n-domain.MaxWitnesses, domain.MaxWitnesses),
			Scope:  domain.AgentWitness,
		}},
	}, true
}

func witnessDuplicate(doc *domain.Document) (domain.Finding, bool) {
	byID := make(map[string]domain.Witness, len(doc.Witnesses))
	byName := make(map[string]domain.Witness, len(doc.Witnesses))
	var pairs []string
	for _, w := range doc.Witnesses {
		if key := normalizeID(w.NationalIDNumber); key != "" {
			if first, ok := byID[key]; ok {
				pairs = append(pairs, fmt.Sprintf("%s and %s share national ID %s", first.FullName, w.FullName, w.NationalIDNumber))
				continue
			}
			byID[key] = w
		}
		if key := strings.ToLower(strings.TrimSpace(w.FullName)); key != "" {
			if first, ok := byName[key]; ok {
				pairs = append(pairs, fmt.Sprintf("%s (%s) and %s (%s) have the same name", first.FullName, first.ID, w.FullName, w.ID))
				continue
			}
			byName[key] = w
		}
	}
	if len(pairs) == 0 {
		return domain.Finding{}, false
	}
	return domain.Finding{
		Type:        domain.FindingError,
		Message:     "The same witness appears more than once",
		Description: strings.Join(pairs, "; "),
		Actions: []domain.CorrectiveAction{{
			Title:  "Remove the duplicate witness",
			Prompt: "Remove the duplicate witness: " + strings.Join(pairs, "; ") + ".",
			Scope:  domain.AgentWitness,
		}},
	}, true
}

func scopeEmpty(doc *domain.Document) (domain.Finding, bool) {
	if strings.TrimSpace(doc.Scope) != "" {
		return domain.Finding{}, false
	}
	return domain.Finding{
		Type:        domain.FindingWarning,
		Message:     "The document scope is empty",
		Description: "Describe the authority granted to the representatives.",
		Actions: []domain.CorrectiveAction{{
			Title:  "Describe the scope",
			Prompt: "Write the scope of authority granted by this document.",
			Scope:  domain.AgentCondition,
		}},
	}, true
}

func danglingTarget(isAsset func(uuid.UUID) bool) func(*domain.Document) (domain.Finding, bool) {
	return func(doc *domain.Document) (domain.Finding, bool) {
		reps := make(map[uuid.UUID]struct{}, len(doc.Representatives))
		for _, r := range doc.Representatives {
			reps[r.ID] = struct{}{}
		}

		var (
			lines   []string
			actions []domain.CorrectiveAction
		)
		for _, c := range doc.Conditions {
			if c.TargetID == nil {
				continue
			}
			if _, ok := reps[*c.TargetID]; ok {
				continue
			}
			if isAsset != nil && isAsset(*c.TargetID) {
				continue
			}
			lines = append(lines, fmt.Sprintf("condition %s targets unknown id %s", c.ID, *c.TargetID))
			actions = append(actions, domain.CorrectiveAction{
				Title:  "Re-link or remove the condition",
				Prompt: fmt.Sprintf("Condition %s (%q) refers to something no longer in the document. Re-link it to a current representative or remove it.", c.ID, c.Text),
				Scope:  domain.AgentCondition,
			})
		}
		if len(lines) == 0 {
			return domain.Finding{}, false
		}
		return domain.Finding{
			Type:        domain.FindingWarning,
			Message:     "A condition refers to a missing representative or asset",
			Description: strings.Join(lines, "; "),
			Actions:     actions,
		}, true
	}
}

func orphanedWitnesses(doc *domain.Document) (domain.Finding, bool) {
	if len(doc.Witnesses) == 0 || len(doc.Representatives) > 0 {
		return domain.Finding{}, false
	}
	return domain.Finding{
		Type:        domain.FindingRecommendation,
		Message:     "Witnesses are listed but the document is still incomplete",
		Description: "Witnesses attest to the representatives; add a representative to complete the document.",
		Actions: []domain.CorrectiveAction{{
			Title:  "Add a representative",
			Prompt: "Add a representative so the witnesses have something to attest to.",
			Scope:  domain.AgentRepresentative,
		}},
	}, true
}

func summary(doc *domain.Document) (domain.Finding, bool) {
	if doc.IsEmpty() {
		return domain.Finding{}, false
	}
	return domain.Finding{
		Type: domain.FindingInformation,
		Message: fmt.Sprintf("The document lists %d representative(s), %d witness(es) and %d condition(s)",
			len(doc.Representatives), len(doc.Witnesses), len(doc.Conditions)),
	}, true
}

func normalizeID(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}
