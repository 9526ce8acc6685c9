package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-assistant/internal/config"
)

const systemPrompt = `You are an expert AI assistant that triages technical support tickets.

Your job is to:
1. Summarize the issue.
2. Estimate its priority as one of "Low", "Medium" or "High".
3. Provide helpful notes and resource links for human moderators.
4. List the technical skills required to resolve it.

Respond with a single raw JSON object and nothing else, no markdown fences:
{"summary": "...", "priority": "Low|Medium|High", "helpfulNotes": "...", "relatedSkills": ["..."]}`

// Analysis is the classifier's view of a ticket.
type Analysis struct {
	Summary       string   `json:"summary"`
	Priority      string   `json:"priority"`
	HelpfulNotes  string   `json:"helpfulNotes"`
	RelatedSkills []string `json:"relatedSkills"`
}

// ErrNoText is returned when the model answered without a text block.
var ErrNoText = errors.New("no text content in Anthropic response")

type completeFunc func(ctx context.Context, system, prompt string) (string, error)

// Classifier analyzes tickets with an Anthropic model.
type Classifier struct {
	complete completeFunc
	timeout  time.Duration
	logger   *zap.Logger
}

// NewClassifier builds a classifier. Without an API key it is disabled and
// Analyze returns a nil analysis.
func NewClassifier(cfg config.LLMConfig, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Classifier{
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:  logger,
	}
	if !cfg.Configured() {
		logger.Warn("ANTHROPIC_API_KEY not provided; ticket analysis disabled")
		return c
	}

	client := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
	model := cfg.Model
	maxTokens := int64(cfg.MaxTokens)
	c.complete = func(ctx context.Context, system, prompt string) (string, error) {
		message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: maxTokens,
			System: []anthropic.TextBlockParam{
				{Text: system},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return "", fmt.Errorf("anthropic api: %w", err)
		}
		logger.Debug("ticket analysis usage",
			zap.Int64("tokens_in", message.Usage.InputTokens),
			zap.Int64("tokens_out", message.Usage.OutputTokens))
		for _, block := range message.Content {
			if block.Type == "text" {
				return block.Text, nil
			}
		}
		return "", ErrNoText
	}
	return c
}

// Enabled reports whether a model is configured.
func (c *Classifier) Enabled() bool {
	return c != nil && c.complete != nil
}

// Analyze classifies a ticket. It returns (nil, nil) when disabled.
func (c *Classifier) Analyze(ctx context.Context, title, description string) (*Analysis, error) {
	if !c.Enabled() {
		return nil, nil
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	prompt := fmt.Sprintf("Analyze the following support ticket.\n\nTitle: %s\nDescription: %s", title, description)
	raw, err := c.complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	analysis, err := ParseAnalysis(raw)
	if err != nil {
		c.logger.Warn("ticket analysis unparseable", zap.Error(err), zap.Int("response_size", len(raw)))
		return nil, err
	}
	return analysis, nil
}

// ParseAnalysis extracts the JSON object from a model reply, tolerating
// markdown fences and surrounding prose.
func ParseAnalysis(raw string) (*Analysis, error) {
	text := strings.TrimSpace(raw)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model reply")
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(text[start:end+1]), &analysis); err != nil {
		return nil, fmt.Errorf("decode model reply: %w", err)
	}
	skills := analysis.RelatedSkills[:0]
	for _, skill := range analysis.RelatedSkills {
		if skill = strings.TrimSpace(skill); skill != "" {
			skills = append(skills, skill)
		}
	}
	analysis.RelatedSkills = skills
	return &analysis, nil
}
