// Package perplexity generates short natural-language explanations of
// financial terms and market events through the Perplexity chat API.
package perplexity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"invest-calendar/internal/upstream"
)

const chatEndpoint = "/chat/completions"

// Explanation is the canonical AI-explanation result. Ok is false when the
// provider could not be reached; Text then carries a fallback message so the
// caller always has something to show.
type Explanation struct {
	Subject string `json:"subject"`
	Text    string `json:"explanation"`
	Ok      bool   `json:"success"`
}

const unavailableText = "An explanation is not available right now. Please try again later."

// Options parameterise the Perplexity client.
type Options struct {
	BaseURL   string
	APIKey    string
	Model     string
	RateLimit int
	Timeout   time.Duration
}

type provider struct {
	baseURL string
	apiKey  string
}

func (p *provider) Name() string    { return "perplexity" }
func (p *provider) BaseURL() string { return p.baseURL }
func (p *provider) Headers(context.Context, *upstream.Request) (http.Header, error) {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+p.apiKey)
	h.Set("Content-Type", "application/json")
	return h, nil
}

// Client is the AI explanation client.
type Client struct {
	api    *upstream.Client
	model  string
	logger zerolog.Logger
}

// NewClient constructs a Perplexity client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.perplexity.ai"
	}
	model := opts.Model
	if model == "" {
		model = "sonar"
	}

	return &Client{
		api: upstream.NewClient(&provider{baseURL: baseURL, apiKey: opts.APIKey}, upstream.Options{
			RateLimit: opts.RateLimit,
			Timeout:   opts.Timeout,
		}, logger),
		model:  model,
		logger: logger.With().Str("component", "perplexity_client").Logger(),
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete sends one prompt and returns the first choice's text.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a concise assistant for retail stock investors. Answer in plain language."},
			{Role: "user", Content: prompt},
		},
	}

	var res chatResponse
	if err := c.api.Post(ctx, chatEndpoint, req, &res); err != nil {
		return "", err
	}
	if len(res.Choices) == 0 || res.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("perplexity returned no completion")
	}
	return res.Choices[0].Message.Content, nil
}

// explain wraps complete, degrading provider failures into an Ok=false
// result with a canned message instead of an error.
func (c *Client) explain(ctx context.Context, subject, prompt string) Explanation {
	text, err := c.complete(ctx, prompt)
	if err != nil {
		c.logger.Error().Err(err).Str("subject", subject).Msg("explanation request failed")
		return Explanation{Subject: subject, Text: unavailableText, Ok: false}
	}
	return Explanation{Subject: subject, Text: text, Ok: true}
}

// ExplainTerm explains a financial term, optionally with extra context.
func (c *Client) ExplainTerm(ctx context.Context, term, extra string) Explanation {
	prompt := fmt.Sprintf(
		"Explain the financial term %q for a beginner stock investor in 3 short bullet points: what it means, why it matters for an investment decision, and one common pitfall.", term)
	if extra != "" {
		prompt += " Context: " + extra
	}
	return c.explain(ctx, term, prompt)
}

// ExplainMarketEvent analyses a market event such as an earnings release.
func (c *Client) ExplainMarketEvent(ctx context.Context, title, details string) Explanation {
	prompt := fmt.Sprintf(
		"Analyse the market event %q for a beginner stock investor: what it is, the likely share price impact with reasons, and when to pay attention. Keep it under 6 sentences.", title)
	if details != "" {
		prompt += " Details: " + details
	}
	return c.explain(ctx, title, prompt)
}

// DailyMarketSummary summarises today's Korean and global market issues.
func (c *Client) DailyMarketSummary(ctx context.Context) Explanation {
	today := time.Now().Format("2006-01-02")
	prompt := fmt.Sprintf(
		"Summarise the main financial market issues for %s in four short items: Korean equities (KOSPI/KOSDAQ), US equities, cryptocurrency, and FX/macro. One or two sentences each.", today)
	return c.explain(ctx, "daily_summary_"+today, prompt)
}
