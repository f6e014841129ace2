package prompt

import (
	"fmt"
	"strings"
)

// Context carries organizational taxonomy hints embedded into the prompt.
type Context struct {
	Tenant         string
	RiskCategories []string
	ControlHints   []string
}

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt(pc Context) string {
	categories := "Security, Operational, Financial, Compliance, Strategic"
	if len(pc.RiskCategories) > 0 {
		categories = strings.Join(pc.RiskCategories, ", ")
	}

	var hints string
	if len(pc.ControlHints) > 0 {
		hints = "\nExisting control library (prefer linking to these where relevant):\n- " +
			strings.Join(pc.ControlHints, "\n- ")
	}

	return `You are a senior enterprise risk analyst. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object with a "candidates" array.
- kind is "risk" or "control".
- category must be one of: ` + categories + `.
- likelihood_hint and impact_hint are integers from 1 to 5.
- confidence is a number from 0 to 100.
- For controls, linked_risk_titles lists the titles of risks (from this same response or elsewhere in the document) the control mitigates; use [] when none.
- Extract only items actually supported by the text; an empty candidates array is a valid answer.` + hints + `

Schema (example with empty values):
{
  "candidates": [
    {
      "kind": "<risk|control>",
      "title": "<string>",
      "description": "<string>",
      "category": "<string>",
      "likelihood_hint": 1,
      "impact_hint": 1,
      "confidence": 0,
      "rationale": "<string>",
      "linked_risk_titles": []
    }
  ]
}`
}

// GetUserPrompt builds the user message around one text segment.
func GetUserPrompt(ordinal int, content string) string {
	return fmt.Sprintf("Extract risk and control candidates from document segment %d below and respond with the JSON per schema.\n\n--- SEGMENT %d ---\n%s", ordinal, ordinal, content)
}
