package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/centavobot/centavo/internal/common"
	"github.com/centavobot/centavo/internal/model"
	"github.com/centavobot/centavo/internal/service"
)

// DefaultModelTimeout bounds one external-model call.
const DefaultModelTimeout = 30 * time.Second

// Result carries a resolved intent plus how it was produced.
type Result struct {
	Intent     model.Intent
	Strategy   model.ParseStrategy
	Similarity float64
	CacheHit   bool
}

// Config holds pipeline tuning knobs.
type Config struct {
	ModelTimeout time.Duration
	DailyQuota   int
}

// Pipeline composes the three parsing layers behind one entry point.
// Layer order is fixed by cost: grammar, cache, model.
type Pipeline struct {
	grammar *Grammar
	cache   *SemanticCache
	client  service.ModelClient
	quota   *DailyQuota
	logger  *slog.Logger
	timeout time.Duration
}

// New creates a pipeline. client may be nil, in which case the model
// layer always degrades to a parse failure.
func New(grammar *Grammar, cache *SemanticCache, client service.ModelClient, cfg Config, logger *slog.Logger) *Pipeline {
	timeout := cfg.ModelTimeout
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		grammar: grammar,
		cache:   cache,
		client:  client,
		quota:   NewDailyQuota(cfg.DailyQuota),
		logger:  logger,
		timeout: timeout,
	}
}

// ParseCommand runs only the command grammar. Commands never fall
// through to the cache or the model, even when the grammar yields an
// unknown intent.
func (p *Pipeline) ParseCommand(text string) (Result, error) {
	intent, ok := p.grammar.Parse(text)
	if !ok {
		return Result{}, fmt.Errorf("%w: not a command", common.ErrParseFailed)
	}
	return Result{Intent: intent, Strategy: model.StrategyCommand}, nil
}

// Parse resolves free-form text: cache lookup first, then the external
// model gated by the per-user daily quota. On a model success a cache
// write is scheduled on a detached goroutine; its failure never reaches
// the caller.
func (p *Pipeline) Parse(ctx context.Context, userID, text, quotedText string, userCtx service.UserContext) (Result, error) {
	if intent, similarity, ok := p.cache.Lookup(userID, text); ok {
		p.logger.Debug("semantic cache hit",
			"user_id", userID,
			"action", intent.Action,
			"similarity", similarity)
		return Result{
			Intent:     intent,
			Strategy:   model.StrategyCache,
			Similarity: similarity,
			CacheHit:   true,
		}, nil
	}

	if p.client == nil {
		return Result{Strategy: model.StrategyNone}, common.ErrParseFailed
	}

	if !p.quota.TryAcquire(userID) {
		return Result{Strategy: model.StrategyNone}, common.ErrQuotaExceeded
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		// The acquired slot never reached the model; give it back.
		p.quota.Release(userID)
		return Result{Strategy: model.StrategyNone}, fmt.Errorf("%w: %v", common.ErrParseFailed, ctxErr)
	}

	modelCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	intent, err := p.client.Parse(modelCtx, text, userCtx, quotedText)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", common.ErrModelTimeout, err)
		}
		p.logger.Warn("model parse failed",
			"user_id", userID,
			"error", err)
		return Result{Strategy: model.StrategyModel}, fmt.Errorf("%w: %v", common.ErrParseFailed, err)
	}

	p.scheduleCacheWrite(userID, text, intent)

	return Result{Intent: intent, Strategy: model.StrategyModel}, nil
}

// QuotaRemaining reports the user's remaining model calls today.
func (p *Pipeline) QuotaRemaining(userID string) int {
	return p.quota.Remaining(userID)
}

// scheduleCacheWrite populates the semantic cache on a detached
// goroutine. The write is best-effort: a panic is logged, never
// propagated to the message path.
func (p *Pipeline) scheduleCacheWrite(userID, text string, intent model.Intent) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("semantic cache write panicked",
					"user_id", userID,
					"panic", r)
			}
		}()
		p.cache.Store(userID, text, intent)
	}()
}
