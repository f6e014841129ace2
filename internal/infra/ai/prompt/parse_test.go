package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complianceops/riskextract/internal/domain/analysis"
)

const goodPayload = `{
  "candidates": [
    {
      "kind": "risk",
      "title": "Single point of failure in payment gateway",
      "description": "one gateway handles all card traffic",
      "category": "technology",
      "likelihood_hint": 3,
      "impact_hint": 5,
      "confidence": 82.5,
      "rationale": "section 2 describes a single unclustered gateway"
    },
    {
      "kind": "control",
      "title": "Gateway failover runbook",
      "description": "documented manual failover",
      "category": "technology",
      "likelihood_hint": 2,
      "impact_hint": 2,
      "confidence": 60,
      "linked_risk_titles": ["Single point of failure in payment gateway"]
    }
  ]
}`

func TestParseCandidatesValid(t *testing.T) {
	raws, err := ParseCandidates(goodPayload)
	require.NoError(t, err)
	require.Len(t, raws, 2)

	assert.Equal(t, analysis.KindRisk, raws[0].Kind)
	assert.Equal(t, "Single point of failure in payment gateway", raws[0].Title)
	assert.Equal(t, 3, raws[0].LikelihoodHint)
	assert.Equal(t, 5, raws[0].ImpactHint)
	assert.InDelta(t, 82.5, raws[0].Confidence, 1e-9)

	assert.Equal(t, analysis.KindControl, raws[1].Kind)
	assert.Equal(t, []string{"Single point of failure in payment gateway"}, raws[1].LinkedRiskTitles)
}

func TestParseCandidatesStripsCodeFences(t *testing.T) {
	fenced := "```json\n" + goodPayload + "\n```"
	raws, err := ParseCandidates(fenced)
	require.NoError(t, err)
	assert.Len(t, raws, 2)
}

func TestParseCandidatesEmptyArrayIsValid(t *testing.T) {
	raws, err := ParseCandidates(`{"candidates": []}`)
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestParseCandidatesRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"empty body":         "",
		"prose not json":     "I found three risks in this document.",
		"missing candidates": `{"items": []}`,
		"invalid kind":       `{"candidates":[{"kind":"threat","title":"t","category":"c","likelihood_hint":3,"impact_hint":3,"confidence":50}]}`,
		"missing title":      `{"candidates":[{"kind":"risk","title":"  ","category":"c","likelihood_hint":3,"impact_hint":3,"confidence":50}]}`,
		"missing category":   `{"candidates":[{"kind":"risk","title":"t","category":"","likelihood_hint":3,"impact_hint":3,"confidence":50}]}`,
		"likelihood too low": `{"candidates":[{"kind":"risk","title":"t","category":"c","likelihood_hint":0,"impact_hint":3,"confidence":50}]}`,
		"impact too high":    `{"candidates":[{"kind":"risk","title":"t","category":"c","likelihood_hint":3,"impact_hint":6,"confidence":50}]}`,
		"confidence over":    `{"candidates":[{"kind":"risk","title":"t","category":"c","likelihood_hint":3,"impact_hint":3,"confidence":101}]}`,
		"confidence under":   `{"candidates":[{"kind":"risk","title":"t","category":"c","likelihood_hint":3,"impact_hint":3,"confidence":-1}]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCandidates(payload)
			assert.ErrorIs(t, err, analysis.ErrMalformedAIResponse)
		})
	}
}

func TestParseCandidatesKindCaseInsensitive(t *testing.T) {
	raws, err := ParseCandidates(`{"candidates":[{"kind":"Risk","title":"t","category":"c","likelihood_hint":3,"impact_hint":3,"confidence":50}]}`)
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, analysis.KindRisk, raws[0].Kind)
}

func TestSystemPromptCarriesTenantVocabulary(t *testing.T) {
	pc := Context{
		RiskCategories: []string{"technology", "third-party"},
		ControlHints:   []string{"preventive", "detective"},
	}
	sys := GetSystemPrompt(pc)
	assert.Contains(t, sys, "technology")
	assert.Contains(t, sys, "third-party")
	assert.Contains(t, sys, "preventive")

	user := GetUserPrompt(3, "segment body")
	assert.Contains(t, user, "segment body")
	assert.Contains(t, user, "3")
}
