package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marlonsc/mcb/internal/memory"
)

var (
	searchLimit   int
	searchSession string
	searchBranch  string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Hybrid search over stored observations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		container, cleanup, err := buildContainer(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		filter := memory.Filter{
			SessionID: searchSession,
			Branch:    searchBranch,
		}

		results, err := container.Memory.Search(cmd.Context(), query, filter, searchLimit)
		if err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("no results")
			return nil
		}

		for i, r := range results {
			if interactive() {
				fmt.Printf("%2d. [%.3f] %s\n", i+1, r.Score, firstLine(r.Observation.Content))
			} else {
				fmt.Printf("%s\t%.3f\t%s\n", r.Observation.ID, r.Score, firstLine(r.Observation.Content))
			}
		}
		return nil
	},
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum results")
	searchCmd.Flags().StringVar(&searchSession, "session", "", "filter by session id")
	searchCmd.Flags().StringVar(&searchBranch, "branch", "", "filter by branch")
	rootCmd.AddCommand(searchCmd)
}
