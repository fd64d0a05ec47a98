package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/markdave123-py/Careerlyst/internal/core"
	"github.com/markdave123-py/Careerlyst/internal/models"
)

const geminiProviderName = "gemini"

// GeminiResearcher answers research questions with a Gemini model. It has no live
// search, so sources are whatever the model cites from training data.
type GeminiResearcher struct {
	client    *genai.Client
	modelName string
}

func NewGeminiResearcher(ctx context.Context, apiKey, modelName string) (*GeminiResearcher, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY not set", core.ErrProviderUnavailable)
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiResearcher{client: cl, modelName: modelName}, nil
}

func (g *GeminiResearcher) Name() string { return geminiProviderName }

func (g *GeminiResearcher) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiResearcher) Research(ctx context.Context, req core.ResearchRequest) (*models.ResearchPayload, error) {
	userPrompt, err := buildUserPrompt(req)
	if err != nil {
		return nil, err
	}

	m := g.client.GenerativeModel(g.modelName)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(researchSystemPrompt)},
	}
	m.SetTemperature(0.2)

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return nil, classifyGemini(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini: no candidates for %s", req.Vector)
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}

	out, err := parseResearchOutput(b.String())
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	out.Provider = geminiProviderName
	out.Model = g.modelName
	return out, nil
}

// classifyGemini marks rejected keys and an unreachable service as provider unavailability.
func classifyGemini(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("gemini generate: %w", err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden) {
		return fmt.Errorf("%w: gemini rejected credentials: %v", core.ErrProviderUnavailable, err)
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unauthenticated, codes.PermissionDenied:
			return fmt.Errorf("%w: gemini rejected credentials: %v", core.ErrProviderUnavailable, err)
		case codes.Unavailable:
			return fmt.Errorf("%w: %v", core.ErrProviderUnavailable, err)
		}
	}
	if isNetworkError(err) {
		return fmt.Errorf("%w: %v", core.ErrProviderUnavailable, err)
	}
	return fmt.Errorf("gemini generate: %w", err)
}

var _ core.ResearchProvider = (*GeminiResearcher)(nil)
