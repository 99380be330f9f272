package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/centavobot/centavo/internal/handlers"
	"github.com/centavobot/centavo/internal/llm"
	"github.com/centavobot/centavo/internal/parser"
	"github.com/centavobot/centavo/internal/pending"
	"github.com/centavobot/centavo/internal/router"
	"github.com/centavobot/centavo/internal/service"
	"github.com/centavobot/centavo/internal/storage"
	"github.com/centavobot/centavo/internal/tui"
	"github.com/centavobot/centavo/internal/undo"
)

// defaultPaymentMethods seeds the grammar before the user has recorded
// anything; stored methods are merged in on top.
var defaultPaymentMethods = []string{"credito", "debito", "pix", "dinheiro"}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long:  `Opens the terminal chat. Type what you spent, or /help for commands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context())
		},
	}
}

func runChat(ctx context.Context) error {
	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close storage", "error", closeErr)
		}
	}()

	userID := viper.GetString("user.id")
	engine, err := buildEngine(ctx, store, userID)
	if err != nil {
		return err
	}

	return tui.Run(tui.Config{Engine: engine, UserID: userID})
}

func buildEngine(ctx context.Context, store *storage.SQLiteStorage, userID string) (*router.Engine, error) {
	logger := slog.Default()

	methods := defaultPaymentMethods
	if stored, err := store.GetPaymentMethods(ctx, userID); err == nil {
		methods = mergeMethods(methods, stored)
	} else {
		logger.Warn("Failed to load payment methods, using defaults", "error", err)
	}

	var client service.ModelClient
	if viper.GetString("llm.api_key") != "" {
		intentParser, err := llm.NewIntentParser(llm.Config{
			Provider: viper.GetString("llm.provider"),
			APIKey:   viper.GetString("llm.api_key"),
			BaseURL:  viper.GetString("llm.base_url"),
			Model:    viper.GetString("llm.model"),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create model client: %w", err)
		}
		client = intentParser
	} else {
		logger.Info("No llm.api_key configured, free-form parsing limited to grammar and cache")
	}

	pipeline := parser.New(parser.NewGrammar(methods), parser.NewSemanticCache(), client, parser.Config{}, logger)

	engine := router.New(router.Deps{
		Pending:    pending.NewStore(),
		Undo:       undo.NewStack(),
		Pipeline:   pipeline,
		Dispatcher: handlers.NewRegistry(store, store, logger),
		Storage:    store,
		Sessions:   store,
		Logger:     logger,
	})

	return engine, nil
}

func mergeMethods(defaults, stored []string) []string {
	seen := make(map[string]bool, len(defaults)+len(stored))
	merged := make([]string, 0, len(defaults)+len(stored))
	for _, m := range append(defaults, stored...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		merged = append(merged, m)
	}
	return merged
}

func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".local", "share", "centavo", "centavo.db")
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		closeErr := store.Close()
		if closeErr != nil {
			slog.Error("Failed to close storage after migration error", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}
