package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/farm-weather/internal/weather"
)

const (
	geminiBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	maxSummaryWords = 22
)

// GeminiDefaultModel is used when GeminiConfig.Model is empty.
const GeminiDefaultModel = "gemini-2.0-flash"

var errEmptySummary = errors.New("empty summary")

// GeminiConfig configures the Gemini summary enhancer.
type GeminiConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GeminiSummarizer implements weather.Summarizer with Gemini generateContent.
// It never retries: the caller keeps the rule summary on any failure.
type GeminiSummarizer struct {
	cfg     GeminiConfig
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewGeminiSummarizer(cfg GeminiConfig) *GeminiSummarizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = geminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = GeminiDefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2500 * time.Millisecond
	}
	return &GeminiSummarizer{
		cfg:     cfg,
		httpCfg: HTTPClientConfig{Client: &http.Client{Timeout: cfg.Timeout}, Backoff: NoRetry},
		circuit: newBreaker("gemini"),
	}
}

func (s *GeminiSummarizer) Name() string {
	return "gemini"
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (s *GeminiSummarizer) Summarize(ctx context.Context, facts weather.SummaryFacts) (string, error) {
	if s.cfg.APIKey == "" {
		return "", fmt.Errorf("gemini: %w", errMissingAPIKey)
	}

	facts.RuleSummary = ""
	factJSON, err := json.Marshal(facts)
	if err != nil {
		return "", err
	}
	prompt := "You write one-line weather summaries for farmers. " +
		"Using only these facts, write at most 22 words of plain text, no markdown, no emojis, " +
		"mentioning anything relevant to field work: " + string(factJSON)

	body, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{Temperature: 0.4, MaxOutputTokens: 80},
	})
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/models/%s:generateContent", s.cfg.BaseURL, s.cfg.Model)
	resp, err := doRequestWithResilience(ctx, s.httpCfg, s.circuit, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", s.cfg.APIKey)
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", errEmptySummary
	}

	text := cleanSummary(out.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", errEmptySummary
	}
	return text, nil
}

// cleanSummary flattens model output to one plain line of at most maxSummaryWords words.
func cleanSummary(s string) string {
	s = strings.NewReplacer("*", "", "`", "", "#", "", "\"", "").Replace(s)
	words := strings.Fields(s)
	if len(words) > maxSummaryWords {
		words = words[:maxSummaryWords]
	}
	return strings.Join(words, " ")
}
