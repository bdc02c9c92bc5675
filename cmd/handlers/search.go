package handlers

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"coachly/internal/insights"
)

// NewSearchCmd creates the insight search command.
func NewSearchCmd() *cobra.Command {
	var (
		userID      string
		from        string
		to          string
		minFeedback int
		limit       int
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search insights across past digests",
		Long: `Search embeds the query and ranks every insight from digests in the
date range by cosine similarity. Use --min-feedback to keep only insights
with at least that many helpful votes.`,
		Args: cobra.MinimumNArgs(1),
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

			req := insights.SearchRequest{
				UserID:    a.defaultUserID(userID),
				Query:     strings.Join(args, " "),
				StartDate: from,
				EndDate:   to,
				Limit:     limit,
			}
			if cmd.Flags().Changed("min-feedback") {
				req.FilterByFeedback = true
				req.MinFeedbackScore = minFeedback
			}

			results, err := a.search.Search(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to search insights: %w", err)
			}

			if asJSON {
				return printJSON(results)
			}
			if len(results) == 0 {
				fmt.Println("No matching insights.")
				return nil
			}
			for i, r := range results {
				fmt.Printf("%d. [%.2f] %s (%s)\n", i+1, r.SearchScore, r.Title, r.DigestDate)
				fmt.Printf("   %s\n", indentWrap(r.Explanation))
				if r.Source.Title != "" {
					fmt.Printf("   Source: %s\n", r.Source.Title)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user ID (default: configured default user)")
	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&minFeedback, "min-feedback", 0, "minimum helpful feedback count")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (default: 10)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")

	return cmd
}
