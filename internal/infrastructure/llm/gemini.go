// Package llm is the calculation-logic generator collaborator: a thin client
// for a Gemini-style generateContent endpoint that turns natural-language
// prompts into alpha factors and factor formulas into executable calculation
// logic. Configuration is injected; there is no process-wide client state.
// Multiple API keys rotate on failure, mirroring free-tier quota behavior.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/huhk345/alphagen-ai/internal/domain"
)

// Config holds the injected client settings.
type Config struct {
	BaseURL        string
	Model          string
	APIKeys        []string
	RequestTimeout time.Duration
}

// Client calls the generateContent endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a client from config.
func NewClient(cfg Config) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.RequestTimeout}}
}

const logicInstruction = `Translate the alpha factor formula into the backtest calculation language.
Rules: one assignment per line, final line must assign the column "factor".
Available columns: close, open, high, low, volume.
Available functions: sma, ema, rsi, macd, std, bb_upper, bb_lower, rolling_max,
rolling_min, sum, shift, delta, pct_change, rank, log, abs, sqrt, exp, sign, min, max, pow.
Operators: + - * / ^ and parentheses. Respond with the program only, no prose, no code fences.
Formula: %s`

const factorInstruction = `Acting as a senior quantitative researcher, design an alpha factor for: %q.
Respond with a single JSON object with string fields: name, formula, description,
intuition, category, buyThreshold, sellThreshold. The formula must be expressible
with moving averages, oscillators, volatility bands, lags and arithmetic over
daily price/volume columns.`

// GenerateFactor produces one alpha factor definition for a prompt.
func (c *Client) GenerateFactor(ctx context.Context, prompt string) (*domain.AlphaFactor, error) {
	text, err := c.generate(ctx, fmt.Sprintf(factorInstruction, prompt))
	if err != nil {
		return nil, err
	}

	var payload struct {
		Name          string `json:"name"`
		Formula       string `json:"formula"`
		Description   string `json:"description"`
		Intuition     string `json:"intuition"`
		Category      string `json:"category"`
		BuyThreshold  string `json:"buyThreshold"`
		SellThreshold string `json:"sellThreshold"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &payload); err != nil {
		return nil, fmt.Errorf("malformed factor payload: %w", err)
	}
	if payload.Name == "" || payload.Formula == "" {
		return nil, errors.New("factor payload missing name or formula")
	}

	return &domain.AlphaFactor{
		ID:            uuid.New().String(),
		Name:          payload.Name,
		Formula:       payload.Formula,
		Description:   payload.Description,
		Intuition:     payload.Intuition,
		Category:      payload.Category,
		BuyThreshold:  payload.BuyThreshold,
		SellThreshold: payload.SellThreshold,
		CreatedAt:     time.Now().UnixMilli(),
	}, nil
}

// GenerateBulk produces count factor definitions.
func (c *Client) GenerateBulk(ctx context.Context, count int, theme string) ([]domain.AlphaFactor, error) {
	if count <= 0 {
		return nil, errors.New("count must be positive")
	}
	out := make([]domain.AlphaFactor, 0, count)
	for i := 0; i < count; i++ {
		factor, err := c.GenerateFactor(ctx, fmt.Sprintf("%s (variant %d of %d, make it distinct)", theme, i+1, count))
		if err != nil {
			return nil, fmt.Errorf("bulk generation failed at %d/%d: %w", i+1, count, err)
		}
		out = append(out, *factor)
	}
	return out, nil
}

// GenerateCalculationLogic turns a factor formula into a program for the
// engine's calculation language.
func (c *Client) GenerateCalculationLogic(ctx context.Context, formula string) (string, error) {
	text, err := c.generate(ctx, fmt.Sprintf(logicInstruction, formula))
	if err != nil {
		return "", err
	}
	logic := strings.TrimSpace(stripCodeFence(text))
	if logic == "" {
		return "", errors.New("model returned empty calculation logic")
	}
	return logic, nil
}

// generate tries each configured key in order, moving on when a key fails.
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if len(c.cfg.APIKeys) == 0 {
		return "", errors.New("no LLM API keys configured")
	}
	var lastErr error
	for i, key := range c.cfg.APIKeys {
		text, err := c.generateWithKey(ctx, key, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("key_index", i).Msg("generateContent failed, rotating key")
	}
	return "", lastErr
}

func (c *Client) generateWithKey(ctx context.Context, key, prompt string) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", key)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generateContent request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generateContent: HTTP %d", resp.StatusCode)
	}

	var payload struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode generateContent response: %w", err)
	}
	if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("empty response from model")
	}
	return payload.Candidates[0].Content.Parts[0].Text, nil
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if i := strings.Index(text, "\n"); i >= 0 {
		text = text[i+1:]
	}
	if i := strings.LastIndex(text, "```"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}
