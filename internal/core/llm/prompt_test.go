package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Careerlyst/internal/core"
	"github.com/markdave123-py/Careerlyst/internal/models"
)

func TestEveryVectorHasAQuestion(t *testing.T) {
	for _, v := range models.AllVectors() {
		q, ok := vectorQuestions[v]
		require.True(t, ok, "missing question for %s", v)
		assert.Contains(t, q, "%s")
	}
	assert.Len(t, vectorQuestions, len(models.AllVectors()))
}

func TestBuildUserPrompt(t *testing.T) {
	p, err := buildUserPrompt(core.ResearchRequest{
		CompanyName:   " Acme ",
		CompanyDomain: "acme.example",
		Vector:        models.VectorFunding,
	})
	require.NoError(t, err)
	assert.Contains(t, p, "Acme's funding history")
	assert.Contains(t, p, "acme.example")

	_, err = buildUserPrompt(core.ResearchRequest{CompanyName: "Acme", Vector: "vibes"})
	assert.ErrorIs(t, err, core.ErrUnknownVector)

	_, err = buildUserPrompt(core.ResearchRequest{CompanyName: "  ", Vector: models.VectorMission})
	assert.Error(t, err)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fences", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"whitespace", "  \n{\"a\":1}\n  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFences(tt.in))
		})
	}
}

func TestParseResearchOutput(t *testing.T) {
	t.Run("json with duplicate sources", func(t *testing.T) {
		raw := "```json\n" + `{
			"answer": " Acme sells anvils. ",
			"sources": [
				{"title": "About", "url": "https://acme.example/about"},
				{"title": "About again", "url": "https://acme.example/about"},
				{"title": "No URL", "url": ""}
			]
		}` + "\n```"
		out, err := parseResearchOutput(raw)
		require.NoError(t, err)
		assert.Equal(t, "Acme sells anvils.", out.Answer)
		require.Len(t, out.Sources, 1)
		assert.Equal(t, "About", out.Sources[0].Title)
	})

	t.Run("plain text", func(t *testing.T) {
		out, err := parseResearchOutput("Acme was founded in 1949.")
		require.NoError(t, err)
		assert.Equal(t, "Acme was founded in 1949.", out.Answer)
		assert.Empty(t, out.Sources)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := parseResearchOutput("   ")
		assert.Error(t, err)
	})

	t.Run("json with empty answer", func(t *testing.T) {
		_, err := parseResearchOutput(`{"answer": "", "sources": []}`)
		assert.Error(t, err)
	})

	t.Run("broken json", func(t *testing.T) {
		_, err := parseResearchOutput(`{"answer": "Acme`)
		assert.Error(t, err)
	})
}
