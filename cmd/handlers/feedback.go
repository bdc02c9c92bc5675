package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"coachly/internal/core"
)

// NewFeedbackCmd creates the feedback recording command.
func NewFeedbackCmd() *cobra.Command {
	var (
		feedbackType string
		comment      string
	)

	cmd := &cobra.Command{
		Use:   "feedback <insight-id>",
		Short: "Record feedback on an insight",
		Args:  cobra.ExactArgs(1),
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

			fb := &core.Feedback{
				InsightID: args[0],
				Type:      feedbackType,
				Comment:   comment,
			}
			if err := a.search.RecordFeedback(cmd.Context(), fb); err != nil {
				return fmt.Errorf("failed to record feedback: %w", err)
			}
			fmt.Printf("Recorded %s feedback for insight %s.\n", fb.Type, fb.InsightID)
			return nil
		},
	}

	cmd.Flags().StringVar(&feedbackType, "type", "helpful", "feedback type (helpful, not_helpful)")
	cmd.Flags().StringVar(&comment, "comment", "", "optional comment")

	return cmd
}
