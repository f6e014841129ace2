package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/complianceops/riskextract/internal/domain/analysis"
)

// envelope matches the schema the system prompt demands.
type envelope struct {
	Candidates []struct {
		Kind             string   `json:"kind"`
		Title            string   `json:"title"`
		Description      string   `json:"description"`
		Category         string   `json:"category"`
		LikelihoodHint   int      `json:"likelihood_hint"`
		ImpactHint       int      `json:"impact_hint"`
		Confidence       float64  `json:"confidence"`
		Rationale        string   `json:"rationale"`
		LinkedRiskTitles []string `json:"linked_risk_titles"`
	} `json:"candidates"`
}

// ParseCandidates parses a provider reply into raw candidates. Any shape or
// range violation is an error wrapping analysis.ErrMalformedAIResponse;
// fields are never silently defaulted.
func ParseCandidates(content string) ([]analysis.RawCandidate, error) {
	trimmed := stripFences(content)
	if strings.TrimSpace(trimmed) == "" {
		return nil, fmt.Errorf("%w: empty response body", analysis.ErrMalformedAIResponse)
	}

	var env envelope
	dec := json.NewDecoder(strings.NewReader(trimmed))
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrMalformedAIResponse, err)
	}
	if env.Candidates == nil {
		return nil, fmt.Errorf("%w: missing candidates array", analysis.ErrMalformedAIResponse)
	}

	out := make([]analysis.RawCandidate, 0, len(env.Candidates))
	for i, c := range env.Candidates {
		kind := analysis.CandidateKind(strings.ToLower(strings.TrimSpace(c.Kind)))
		if kind != analysis.KindRisk && kind != analysis.KindControl {
			return nil, fmt.Errorf("%w: candidate %d has invalid kind %q", analysis.ErrMalformedAIResponse, i, c.Kind)
		}
		if strings.TrimSpace(c.Title) == "" {
			return nil, fmt.Errorf("%w: candidate %d missing title", analysis.ErrMalformedAIResponse, i)
		}
		if strings.TrimSpace(c.Category) == "" {
			return nil, fmt.Errorf("%w: candidate %d missing category", analysis.ErrMalformedAIResponse, i)
		}
		if c.LikelihoodHint < 1 || c.LikelihoodHint > 5 {
			return nil, fmt.Errorf("%w: candidate %d likelihood_hint %d out of range", analysis.ErrMalformedAIResponse, i, c.LikelihoodHint)
		}
		if c.ImpactHint < 1 || c.ImpactHint > 5 {
			return nil, fmt.Errorf("%w: candidate %d impact_hint %d out of range", analysis.ErrMalformedAIResponse, i, c.ImpactHint)
		}
		if c.Confidence < 0 || c.Confidence > 100 {
			return nil, fmt.Errorf("%w: candidate %d confidence %.2f out of range", analysis.ErrMalformedAIResponse, i, c.Confidence)
		}
		out = append(out, analysis.RawCandidate{
			Kind:             kind,
			Title:            c.Title,
			Description:      c.Description,
			Category:         c.Category,
			LikelihoodHint:   c.LikelihoodHint,
			ImpactHint:       c.ImpactHint,
			Confidence:       c.Confidence,
			Rationale:        c.Rationale,
			LinkedRiskTitles: c.LinkedRiskTitles,
		})
	}
	return out, nil
}

// stripFences removes a single markdown code fence wrapper; models add them
// even when told not to.
func stripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
