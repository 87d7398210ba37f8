package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/yanqian/horizon/internal/domain/sunreport"
	"github.com/yanqian/horizon/pkg/metrics"
)

const apiVersion = "v1beta"

// Client wraps the genai SDK for single-turn, optionally grounded prompts.
type Client struct {
	models *genai.Models
}

// NewClient constructs a Gemini client. An empty baseURL targets the public
// Generative Language endpoint.
func NewClient(apiKey, baseURL string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key cannot be empty")
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: 90 * time.Second},
		HTTPOptions: genai.HTTPOptions{
			APIVersion: apiVersion,
		},
	}
	if base := strings.TrimSpace(baseURL); base != "" {
		cfg.HTTPOptions.BaseURL = strings.TrimRight(base, "/") + "/"
	}
	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{models: client.Models}, nil
}

// Generate sends a single prompt and returns the first candidate.
func (c *Client) Generate(ctx context.Context, req sunreport.GenerateRequest) (sunreport.Generation, error) {
	if strings.TrimSpace(req.Model) == "" {
		return sunreport.Generation{}, errors.New("gemini model cannot be empty")
	}

	config := &genai.GenerateContentConfig{}
	if req.SearchGrounding {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr[float32](req.Temperature)
	}

	resp, err := c.models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), config)
	if err != nil {
		return sunreport.Generation{}, fmt.Errorf("gemini generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return sunreport.Generation{}, errors.New("gemini returned no candidates")
	}
	return toGeneration(resp), nil
}

func toGeneration(resp *genai.GenerateContentResponse) sunreport.Generation {
	candidate := resp.Candidates[0]

	sources := make([]sunreport.Source, 0)
	if candidate.GroundingMetadata != nil {
		for _, chunk := range candidate.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil {
				continue
			}
			src := sunreport.Source{Title: chunk.Web.Title, URI: chunk.Web.URI}
			if strings.TrimSpace(src.Title) == "" {
				src.Title = "Source"
			}
			if strings.TrimSpace(src.URI) == "" {
				src.URI = "#"
			}
			sources = append(sources, src)
		}
	}

	gen := sunreport.Generation{Text: resp.Text(), Sources: sources}
	if usage := resp.UsageMetadata; usage != nil {
		gen.Usage = metrics.TokenUsage{
			PromptTokens:     int(usage.PromptTokenCount),
			CompletionTokens: int(usage.CandidatesTokenCount),
			TotalTokens:      int(usage.TotalTokenCount),
		}
	}
	return gen
}
