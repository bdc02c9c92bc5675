package handlers

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"coachly/internal/core"
	"coachly/internal/query"
	"coachly/internal/store"
)

// NewSuggestCmd creates the query suggestion command.
func NewSuggestCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest search queries from your learning profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			learningCtx, err := a.store.GetLearningContext(cmd.Context(), a.defaultUserID(userID))
			if err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("failed to load learning context: %w", err)
				}
				fallback := core.DefaultLearningContext()
				learningCtx = &fallback
			}

			for _, s := range query.Suggestions(*learningCtx) {
				fmt.Printf("- %s\n", s)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user ID (default: configured default user)")

	return cmd
}
