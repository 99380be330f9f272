package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/centavobot/centavo/internal/model"
	"github.com/centavobot/centavo/internal/ofx"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import entries from OFX/QFX bank statements",
		Long: `Import transactions from OFX or QFX files exported from your bank.

Examples:
  # Import a single file
  centavo import ~/Downloads/extrato_jan.ofx

  # Import everything a glob matches
  centavo import ~/Downloads/*.ofx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().BoolP("dry-run", "d", false, "Preview import without saving")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	userID := viper.GetString("user.id")
	ctx := cmd.Context()

	var allFiles []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			// If no glob matches, check if it's a direct file.
			if _, statErr := os.Stat(pattern); statErr == nil {
				allFiles = append(allFiles, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
		} else {
			allFiles = append(allFiles, matches...)
		}
	}

	if len(allFiles) == 0 {
		return fmt.Errorf("no files found to import")
	}

	slog.Info("Importing OFX files...",
		"file_count", len(allFiles),
		"dry_run", dryRun)

	var allEntries []model.Entry
	seen := make(map[string]bool)

	parser := ofx.NewParser()

	for _, filePath := range allFiles {
		f, err := os.Open(filePath)
		if err != nil {
			slog.Error("Failed to open file",
				"file", filePath,
				"error", err)
			continue
		}

		entries, err := parser.ParseFile(ctx, f, userID)
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("Failed to close file", "file", filePath, "error", closeErr)
		}

		if err != nil {
			slog.Error("Failed to parse OFX file",
				"file", filePath,
				"error", err)
			continue
		}

		addedCount := 0
		for _, entry := range entries {
			hash := entry.GenerateHash()
			if seen[hash] {
				continue
			}
			seen[hash] = true
			allEntries = append(allEntries, entry)
			addedCount++
		}

		slog.Info("Processed file",
			"file", filepath.Base(filePath),
			"entries_found", len(entries),
			"added", addedCount,
			"duplicates", len(entries)-addedCount)
	}

	if len(allEntries) == 0 {
		slog.Warn("No transactions found in any file")
		return nil
	}

	printImportSummary(allEntries)

	if dryRun {
		slog.Info("Dry run complete, nothing saved")
		return nil
	}

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close storage", "error", closeErr)
		}
	}()

	bar := progressbar.NewOptions(len(allEntries),
		progressbar.OptionSetDescription("Saving entries"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	saved := 0
	for i := range allEntries {
		if err := store.SaveEntry(ctx, &allEntries[i]); err != nil {
			slog.Error("Failed to save entry",
				"description", allEntries[i].Description,
				"error", err)
			continue
		}
		saved++
		_ = bar.Add(1)
	}

	slog.Info("Import complete",
		"saved", saved,
		"skipped", len(allEntries)-saved)

	return nil
}

func printImportSummary(entries []model.Entry) {
	var oldest, newest time.Time
	var income, expenses float64

	for i, entry := range entries {
		if i == 0 || entry.Date.Before(oldest) {
			oldest = entry.Date
		}
		if i == 0 || entry.Date.After(newest) {
			newest = entry.Date
		}
		if entry.Direction == model.DirectionIncome {
			income += entry.Amount
		} else {
			expenses += entry.Amount
		}
	}

	fmt.Printf("\nDate range: %s to %s\n",
		oldest.Format("2006-01-02"),
		newest.Format("2006-01-02"))
	fmt.Printf("Entries: %d (income R$ %.2f, expenses R$ %.2f)\n\n",
		len(entries), income, expenses)

	limit := 5
	if len(entries) < limit {
		limit = len(entries)
	}
	for _, entry := range entries[:limit] {
		fmt.Printf("  %s  R$ %8.2f  %s\n",
			entry.Date.Format("2006-01-02"),
			entry.Amount,
			entry.Description)
	}
	if len(entries) > limit {
		fmt.Printf("  ... and %d more\n", len(entries)-limit)
	}
	fmt.Println()
}
