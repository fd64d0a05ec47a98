package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/markdave123-py/Careerlyst/internal/core"
	"github.com/markdave123-py/Careerlyst/internal/models"
)

const researchSystemPrompt = `You are a company research analyst helping product managers prepare for interviews.
Answer only from reliable, citable public sources. If the information is not public, say so plainly.

Return a JSON object with this exact structure:
{
  "answer": "<3-6 short paragraphs or bullet points in markdown>",
  "sources": [{"title": "<page title>", "url": "<https url>", "snippet": "<supporting quote>", "date": "<publication date if known>"}]
}

Return ONLY the JSON object, no markdown fences, no explanation.`

// vectorQuestions is the research question asked for each vector.
var vectorQuestions = map[models.ResearchVectorType]string{
	models.VectorMission:          "What is %s's stated mission, and how does the company describe why it exists?",
	models.VectorValues:           "What are %s's company values and cultural principles, and how do they show up in how the company operates?",
	models.VectorOriginStory:      "What is the origin story of %s: who founded it, when, and what problem were they trying to solve?",
	models.VectorProduct:          "What are %s's main products, their core features, and how are they positioned?",
	models.VectorUserTypes:        "Who are %s's primary user types and customer segments, and what jobs do they hire the product for?",
	models.VectorCompetition:      "Who are %s's main competitors and how does the company differentiate itself?",
	models.VectorRisks:            "What are the most significant business, market, and regulatory risks facing %s?",
	models.VectorRecentLaunches:   "What products or major features has %s launched in the last 12 months?",
	models.VectorStrategy:         "What is %s's current company strategy and where is it investing for growth?",
	models.VectorFunding:          "What is %s's funding history (rounds, amounts, lead investors) or public-market status?",
	models.VectorPartnerships:     "What notable partnerships, integrations, or acquisitions has %s announced?",
	models.VectorCustomerFeedback: "What do customers say about %s? Summarize praise and complaints from reviews and forums.",
	models.VectorBusinessModel:    "How does %s make money? Describe its business model, pricing, and main revenue streams.",
}

// buildUserPrompt renders the question for one vector.
func buildUserPrompt(req core.ResearchRequest) (string, error) {
	tmpl, ok := vectorQuestions[req.Vector]
	if !ok {
		return "", fmt.Errorf("%w: %s", core.ErrUnknownVector, req.Vector)
	}
	name := strings.TrimSpace(req.CompanyName)
	if name == "" {
		return "", errors.New("company name is empty")
	}
	prompt := fmt.Sprintf(tmpl, name)
	if req.CompanyDomain != "" {
		prompt += fmt.Sprintf("\nThe company's website is %s.", req.CompanyDomain)
	}
	return prompt, nil
}

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// parseResearchOutput turns model output into a payload. Output that is not the requested
// JSON object is kept as plain answer text; an empty answer is unusable.
func parseResearchOutput(raw string) (*models.ResearchPayload, error) {
	raw = stripFences(raw)
	if raw == "" {
		return nil, errors.New("empty research answer")
	}

	var out models.ResearchPayload
	if strings.HasPrefix(raw, "{") {
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("parse research answer: %w", err)
		}
	} else {
		out.Answer = raw
	}

	out.Answer = strings.TrimSpace(out.Answer)
	if out.Answer == "" {
		return nil, errors.New("empty research answer")
	}
	out.Sources = dedupeSources(out.Sources)
	return &out, nil
}

// dedupeSources drops sources without a URL and repeated URLs, keeping first occurrence.
func dedupeSources(in []models.Source) []models.Source {
	seen := make(map[string]bool, len(in))
	out := make([]models.Source, 0, len(in))
	for _, s := range in {
		u := strings.TrimSpace(s.URL)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		s.URL = u
		out = append(out, s)
	}
	return out
}
