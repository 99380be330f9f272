package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage expense categories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known categories",
		RunE: func(c *cobra.Command, _ []string) error {
			ctx := c.Context()
			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := store.Close(); closeErr != nil {
					slog.Error("Failed to close storage", "error", closeErr)
				}
			}()

			categories, err := store.GetCategories(ctx, viper.GetString("user.id"))
			if err != nil {
				return fmt.Errorf("failed to list categories: %w", err)
			}

			if len(categories) == 0 {
				fmt.Println("No categories yet. They are learned as you record entries.")
				return nil
			}
			for _, name := range categories {
				fmt.Println(name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add [name]",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := store.Close(); closeErr != nil {
					slog.Error("Failed to close storage", "error", closeErr)
				}
			}()

			if err := store.AddCategory(ctx, viper.GetString("user.id"), args[0]); err != nil {
				return fmt.Errorf("failed to add category: %w", err)
			}

			slog.Info("Category added", "name", args[0])
			return nil
		},
	})

	return cmd
}
