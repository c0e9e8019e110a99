package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marlonsc/mcb/internal/memory"
)

var (
	rememberProject string
	rememberType    string
	rememberTags    []string
	rememberSession string
)

var rememberCmd = &cobra.Command{
	Use:   "remember <content>",
	Short: "Store an observation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		container, cleanup, err := buildContainer(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		id, err := container.Memory.StoreObservation(cmd.Context(), &memory.Observation{
			ProjectID: rememberProject,
			Content:   strings.Join(args, " "),
			Type:      memory.ObservationType(rememberType),
			Tags:      rememberTags,
			Metadata:  memory.Metadata{SessionID: rememberSession},
		})
		if err != nil {
			return err
		}

		fmt.Println(id)
		return nil
	},
}

func init() {
	rememberCmd.Flags().StringVar(&rememberProject, "project", "default", "project id")
	rememberCmd.Flags().StringVar(&rememberType, "type", string(memory.ObservationContext), "observation type")
	rememberCmd.Flags().StringSliceVar(&rememberTags, "tag", nil, "tags (repeatable)")
	rememberCmd.Flags().StringVar(&rememberSession, "session", "", "session id")
	rootCmd.AddCommand(rememberCmd)
}
