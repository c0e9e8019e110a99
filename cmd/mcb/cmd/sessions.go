package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marlonsc/mcb/internal/agent"
)

var (
	sessionsProject string
	sessionsLimit   int
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded agent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, cleanup, err := buildContainer(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		query := agent.SessionQuery{Limit: sessionsLimit}
		if sessionsProject != "" {
			query.ProjectID = &sessionsProject
		}

		sessions, err := container.Agent.ListSessions(cmd.Context(), query)
		if err != nil {
			return err
		}

		if len(sessions) == 0 {
			fmt.Println("no sessions")
			return nil
		}

		for _, s := range sessions {
			duration := "running"
			if s.DurationMS != nil {
				duration = (time.Duration(*s.DurationMS) * time.Millisecond).String()
			}
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n",
				s.ID, s.AgentType, s.Status, s.StartedAt.Format(time.RFC3339), duration)
		}
		return nil
	},
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsProject, "project", "", "filter by project id")
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "maximum sessions")
	rootCmd.AddCommand(sessionsCmd)
}
