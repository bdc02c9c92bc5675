package handlers

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"coachly/internal/core"
	"coachly/internal/digest"
)

// NewDigestCmd creates the digest command group.
func NewDigestCmd() *cobra.Command {
	digestCmd := &cobra.Command{
		Use:   "digest",
		Short: "Generate and manage daily digests",
	}

	digestCmd.AddCommand(newDigestGenerateCmd())
	digestCmd.AddCommand(newDigestShowCmd())
	digestCmd.AddCommand(newDigestListCmd())
	digestCmd.AddCommand(newDigestDeleteCmd())

	return digestCmd
}

func newDigestGenerateCmd() *cobra.Command {
	var (
		date         string
		userID       string
		maxInsights  int
		forceRefresh bool
		explicitQry  string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a digest for a date",
		Long: `Generate runs the full pipeline for the given date: query building,
retrieval, synthesis, and quality gating. A digest generated within the
cache window is returned as-is unless --force is set.`,
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

			d, err := a.generator.Generate(cmd.Context(), digest.Request{
				UserID:        a.defaultUserID(userID),
				Date:          date,
				MaxInsights:   maxInsights,
				ForceRefresh:  forceRefresh,
				ExplicitQuery: explicitQry,
			})
			if err != nil {
				return fmt.Errorf("failed to generate digest: %w", err)
			}

			if asJSON {
				return printJSON(d)
			}
			printDigest(d)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "digest date (YYYY-MM-DD, default: today)")
	cmd.Flags().StringVar(&userID, "user", "", "user ID (default: configured default user)")
	cmd.Flags().IntVar(&maxInsights, "max-insights", 0, "maximum insights to generate (default: configured)")
	cmd.Flags().BoolVar(&forceRefresh, "force", false, "regenerate even when a cached digest exists")
	cmd.Flags().StringVar(&explicitQry, "query", "", "explicit search query instead of the profile-built one")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the digest as JSON")

	return cmd
}

func newDigestShowCmd() *cobra.Command {
	var (
		userID string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "show [date]",
		Short: "Show a stored digest",
		Args:  cobra.MaximumNArgs(1),
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

			date := time.Now().Format("2006-01-02")
			if len(args) > 0 {
				date = args[0]
			}

			d, err := a.store.Get(cmd.Context(), a.defaultUserID(userID), date)
			if err != nil {
				return fmt.Errorf("failed to load digest for %s: %w", date, err)
			}

			if asJSON {
				return printJSON(d)
			}
			printDigest(d)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user ID (default: configured default user)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the digest as JSON")

	return cmd
}

func newDigestListCmd() *cobra.Command {
	var (
		userID string
		from   string
		to     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored digests in a date range",
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

			if to == "" {
				to = time.Now().Format("2006-01-02")
			}
			if from == "" {
				from = time.Now().AddDate(0, 0, -30).Format("2006-01-02")
			}

			digests, err := a.store.List(cmd.Context(), a.defaultUserID(userID), from, to)
			if err != nil {
				return fmt.Errorf("failed to list digests: %w", err)
			}

			if len(digests) == 0 {
				fmt.Printf("No digests between %s and %s.\n", from, to)
				return nil
			}
			for _, d := range digests {
				fmt.Printf("%s  %-8s  %2d insights  avg %.2f\n",
					d.Date, d.QualityBadge, len(d.Insights), d.QualityScores.Average)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user ID (default: configured default user)")
	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD, default: 30 days ago)")
	cmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD, default: today)")

	return cmd
}

func newDigestDeleteCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "delete <date>",
		Short: "Delete a stored digest",
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

			if err := a.store.Delete(cmd.Context(), a.defaultUserID(userID), args[0]); err != nil {
				return fmt.Errorf("failed to delete digest for %s: %w", args[0], err)
			}
			fmt.Printf("Deleted digest for %s.\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user ID (default: configured default user)")

	return cmd
}

func printDigest(d *core.Digest) {
	fmt.Printf("Digest for %s", d.Date)
	if d.Cached {
		fmt.Print(" (cached)")
	}
	fmt.Println()
	fmt.Printf("Quality: %s (avg %.2f)\n", d.QualityBadge, d.QualityScores.Average)

	if len(d.Insights) == 0 {
		if d.Metadata.Error != "" {
			fmt.Printf("\n%s\n", d.Metadata.Error)
		} else {
			fmt.Println("\nNo insights.")
		}
		return
	}

	for i, ins := range d.Insights {
		fmt.Printf("\n%d. %s\n", i+1, ins.Title)
		if ins.RelevanceReason != "" {
			fmt.Printf("   Why: %s\n", ins.RelevanceReason)
		}
		fmt.Printf("   %s\n", indentWrap(ins.Explanation))
		if ins.PracticalTakeaway != "" {
			fmt.Printf("   Try: %s\n", ins.PracticalTakeaway)
		}
		if ins.Source.Title != "" {
			fmt.Printf("   Source: %s", ins.Source.Title)
			if ins.Source.URL != "" {
				fmt.Printf(" <%s>", ins.Source.URL)
			}
			fmt.Println()
		}
	}
}

func indentWrap(text string) string {
	return strings.ReplaceAll(strings.TrimSpace(text), "\n", "\n   ")
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
