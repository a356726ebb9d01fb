package emailgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jordanlanch/leadpilot/pkg/domain"
	"github.com/jordanlanch/leadpilot/pkg/logger"
	"github.com/jordanlanch/leadpilot/pkg/models"
	"github.com/sashabaranov/go-openai"
)

// Config for the content generator
type Config struct {
	APIKey      string
	Model       string  // default: gpt-4-turbo-preview
	Temperature float32 // default: 0.7
}

// New creates an EmailContentGenerator. With an API key the copy is produced
// by OpenAI; without one a deterministic template generator is used so the
// scheduler keeps working in development.
func New(cfg Config, log logger.Logger) domain.EmailContentGenerator {
	if cfg.APIKey == "" {
		log.Warn("Email content generator in template mode (set OPENAI_API_KEY for AI copy)")
		return &TemplateGenerator{}
	}
	return NewOpenAIGenerator(cfg, log)
}

// OpenAIGenerator produces follow-up copy with the OpenAI chat API
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	log         logger.Logger
}

// NewOpenAIGenerator creates an OpenAI-backed generator
func NewOpenAIGenerator(cfg Config, log logger.Logger) *OpenAIGenerator {
	if cfg.Model == "" {
		cfg.Model = "gpt-4-turbo-preview"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}

	return &OpenAIGenerator{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		log:         log,
	}
}

const systemPrompt = `You are a sales outreach assistant writing short, polite follow-up emails.
Respond with a JSON object: {"subject": "...", "content": "..."} where content is simple HTML.
Keep the email under 120 words, reference the previous email briefly, and end with a soft call to action.`

type generatedPayload struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// GenerateFollowUp asks the model for the next email in the thread.
func (g *OpenAIGenerator) GenerateFollowUp(ctx context.Context, lead *models.Lead, previousContent, tone string, sequence int) (*domain.GeneratedEmail, error) {
	userPrompt := fmt.Sprintf(
		"Write follow-up #%d to %s (%s) at %s.\nTone: %s.\nPrevious email:\n%s",
		sequence, lead.Name, lead.Email, lead.Company, tone, previousContent)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		MaxTokens:   600,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.Trim(raw, "` \n")

	var payload generatedPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// Model ignored the JSON instruction; salvage the text as the body.
		g.log.Warn("Generator returned non-JSON payload, using raw text", "sequence", sequence)
		fallback := (&TemplateGenerator{}).subject(lead, sequence)
		return &domain.GeneratedEmail{Subject: fallback, Content: raw}, nil
	}
	if payload.Subject == "" || payload.Content == "" {
		return nil, fmt.Errorf("openai returned incomplete email payload")
	}

	return &domain.GeneratedEmail{Subject: payload.Subject, Content: payload.Content}, nil
}

// TemplateGenerator produces deterministic follow-up copy without an AI backend
type TemplateGenerator struct{}

func (t *TemplateGenerator) subject(lead *models.Lead, sequence int) string {
	if sequence <= 1 {
		return fmt.Sprintf("Following up, %s", lead.Name)
	}
	return fmt.Sprintf("Checking in again, %s (#%d)", lead.Name, sequence)
}

func (t *TemplateGenerator) GenerateFollowUp(ctx context.Context, lead *models.Lead, previousContent, tone string, sequence int) (*domain.GeneratedEmail, error) {
	content := fmt.Sprintf(
		"<p>Hi %s,</p><p>I wanted to follow up on my previous note in case it got buried. "+
			"Would you have 15 minutes this week for a quick chat?</p><p>Best regards</p>",
		lead.Name)

	return &domain.GeneratedEmail{
		Subject: t.subject(lead, sequence),
		Content: content,
	}, nil
}
