package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/centavobot/centavo/internal/common"
	"github.com/centavobot/centavo/internal/model"
	"github.com/centavobot/centavo/internal/service"
)

// IntentParser implements service.ModelClient on top of a raw Client.
// Malformed output is a hard failure for the attempt; entities are never
// guessed at on the engine side.
type IntentParser struct {
	client    Client
	logger    *slog.Logger
	retryOpts service.RetryOptions
}

// NewIntentParser creates a model-backed intent parser.
func NewIntentParser(cfg Config, logger *slog.Logger) (*IntentParser, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 2
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &IntentParser{
		client:    client,
		logger:    logger,
		retryOpts: retryOpts,
	}, nil
}

// NewIntentParserWithClient wires an existing client, used by tests.
func NewIntentParserWithClient(client Client, logger *slog.Logger) *IntentParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntentParser{
		client:    client,
		logger:    logger,
		retryOpts: service.RetryOptions{MaxAttempts: 1},
	}
}

// Parse sends the message plus lightweight user context to the model and
// decodes the single JSON object it must return.
func (p *IntentParser) Parse(ctx context.Context, text string, userCtx service.UserContext, quotedText string) (model.Intent, error) {
	prompt := buildIntentPrompt(text, userCtx, quotedText)

	var intent model.Intent

	err := common.WithRetry(ctx, func() error {
		raw, err := p.client.Complete(ctx, intentSystemPrompt, prompt)
		if err != nil {
			p.logger.Warn("model completion attempt failed", "error", err)
			return &common.RetryableError{Err: err, Retryable: true}
		}

		parsed, err := decodeIntent(raw)
		if err != nil {
			// Malformed output is terminal for the attempt; retrying
			// the same prompt tends to reproduce the same output.
			return &common.RetryableError{
				Err:       fmt.Errorf("%w: %v", common.ErrModelMalformed, err),
				Retryable: false,
			}
		}

		intent = parsed
		return nil
	}, p.retryOpts)

	if err != nil {
		return model.Intent{}, err
	}

	p.logger.Debug("model resolved intent",
		"action", intent.Action,
		"confidence", intent.Confidence)

	return intent, nil
}

// decodeIntent extracts, validates and converts raw model output.
func decodeIntent(raw string) (model.Intent, error) {
	jsonText, err := extractJSON(raw)
	if err != nil {
		return model.Intent{}, err
	}

	if err := validateIntentJSON(jsonText); err != nil {
		return model.Intent{}, err
	}

	action := model.IntentAction(gjson.Get(jsonText, "action").String())
	if !action.Valid() {
		return model.Intent{}, fmt.Errorf("unknown action %q", action)
	}

	confidence := gjson.Get(jsonText, "confidence").Float()
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	entities := map[string]any{}
	if raw := gjson.Get(jsonText, "entities").Raw; raw != "" {
		if err := json.Unmarshal([]byte(raw), &entities); err != nil {
			return model.Intent{}, fmt.Errorf("decode entities: %w", err)
		}
	}

	return model.Intent{Action: action, Confidence: confidence, Entities: entities}, nil
}

const intentSystemPrompt = `You are the intent resolver for a personal-finance chat assistant. ` +
	`You MUST respond with ONLY a valid JSON object, no markdown fences, no commentary. ` +
	`Start your response with { and end with }.`

func buildIntentPrompt(text string, userCtx service.UserContext, quotedText string) string {
	var b strings.Builder

	b.WriteString("Resolve the user's message into a financial intent.\n\n")
	b.WriteString("Message: ")
	b.WriteString(text)
	b.WriteString("\n")

	if quotedText != "" {
		b.WriteString("The message replies to this earlier assistant message:\n")
		b.WriteString(quotedText)
		b.WriteString("\n")
	}

	if len(userCtx.Categories) > 0 {
		b.WriteString("\nThe user's categories: ")
		b.WriteString(strings.Join(userCtx.Categories, ", "))
		b.WriteString("\n")
	}
	if len(userCtx.PaymentMethods) > 0 {
		b.WriteString("The user's payment methods: ")
		b.WriteString(strings.Join(userCtx.PaymentMethods, ", "))
		b.WriteString("\n")
	}

	b.WriteString(`
Allowed actions: add_expense, add_income, delete_entry, edit_entry, set_budget,
add_recurring, list_recurring, remove_recurring, report, list_entries,
categories, settings, help, login, undo, unknown.

Respond with exactly this JSON shape:
{"action": "<one allowed action>", "confidence": <0.0-1.0>, "entities": {...}}

Entity keys when relevant: amount (number), description (string),
category (string, prefer one of the user's categories),
payment_method (string), date (YYYY-MM-DD), count (number),
day_of_month (number), target (string), mode (string), month (YYYY-MM).

Use "unknown" with low confidence when the message is not a financial
instruction. Never invent amounts that are not in the message.`)

	return b.String()
}
