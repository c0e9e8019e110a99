package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marlonsc/mcb/internal/ids"
	"github.com/marlonsc/mcb/internal/index"
	"github.com/marlonsc/mcb/internal/registry"
	"github.com/marlonsc/mcb/internal/watcher"
)

const timeRounding = time.Millisecond

var (
	indexCollection string
	indexWatch      bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a codebase into the hybrid store",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		container, cleanup, err := buildContainer(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		collection, err := ids.FromName(indexCollection)
		if err != nil {
			return err
		}

		opts := index.Options{
			RootDir:     root,
			Collection:  collection,
			Exclude:     container.Config.Indexing.Exclude,
			MaxFileSize: container.Config.Indexing.MaxFileSizeBytes,
			LockDir:     container.Config.Indexing.LockDir,
		}

		summary, err := container.Pipeline.Run(cmd.Context(), opts)
		if err != nil {
			return err
		}

		fmt.Printf("indexed %d files (%d chunks, %d skipped, %d removed) in %s\n",
			summary.FilesIndexed, summary.Chunks, summary.FilesSkipped,
			summary.FilesRemoved, summary.Duration.Round(timeRounding))
		for _, warning := range summary.Warnings {
			fmt.Println("warning:", warning)
		}

		if !indexWatch {
			return nil
		}
		return watchAndSync(cmd.Context(), container, root, opts)
	},
}

// watchAndSync re-runs the pipeline on debounced file changes until the
// context is canceled.
func watchAndSync(ctx context.Context, container *registry.Container, root string, opts index.Options) error {
	w, err := watcher.New(watcher.Options{
		RootDir:  root,
		Debounce: container.Config.Watcher.Debounce,
		Exclude:  container.Config.Indexing.Exclude,
		Sync: func(ctx context.Context) (int, error) {
			s, err := container.Pipeline.Run(ctx, opts)
			if err != nil {
				return 0, err
			}
			return s.FilesIndexed + s.FilesRemoved, nil
		},
	}, container.Bus)
	if err != nil {
		return err
	}
	defer w.Close()

	fmt.Println("watching", root, "for changes")
	w.Run(ctx)
	return nil
}

func init() {
	indexCmd.Flags().StringVar(&indexCollection, "collection", "default", "target collection name")
	indexCmd.Flags().BoolVar(&indexWatch, "watch", false, "keep watching the root and re-index on change")
	rootCmd.AddCommand(indexCmd)
}
