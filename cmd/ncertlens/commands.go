package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/ncertlens-backend/internal/app"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the processing workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				a.Start(ctx)
				return a.Run(ctx)
			})
		},
	}
}

func processCmd() *cobra.Command {
	var (
		force   bool
		subject string
		class   int
	)
	cmd := &cobra.Command{
		Use:   "process [videoId]",
		Short: "Process one video synchronously and print its mappings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				out, err := a.ProcessNow(ctx, args[0], force, subject, class)
				if err != nil {
					return err
				}
				return printJSON(out)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "reprocess even when already completed")
	cmd.Flags().StringVar(&subject, "subject", "", "subject hint (Physics, Chemistry, Biology, Mathematics)")
	cmd.Flags().IntVar(&class, "class", 0, "class hint (1-12)")
	return cmd
}

func seedConceptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-concepts",
		Short: "Load the NCERT concept catalog and index it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.SeedConcepts(ctx)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
}

func discoverCmd() *cobra.Command {
	var maxUploads int
	cmd := &cobra.Command{
		Use:   "discover [channelId]",
		Short: "Create pending records for a channel's uploads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Services.Discovery.Discover(dbctx.New(ctx), args[0], maxUploads)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	cmd.Flags().IntVar(&maxUploads, "max", 50, "maximum uploads to read")
	return cmd
}

func reindexCmd() *cobra.Command {
	var videos, concepts bool
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Write completed videos and concepts missing from the similarity index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !videos && !concepts {
				return fmt.Errorf("nothing to do: pass --videos and/or --concepts")
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Services.Reindex.Run(ctx, videos, concepts)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	cmd.Flags().BoolVar(&videos, "videos", true, "reindex completed videos")
	cmd.Flags().BoolVar(&concepts, "concepts", true, "reindex catalog concepts")
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Fail processing records whose heartbeat went stale",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.SweepStale(ctx)
				if err != nil {
					return err
				}
				return printJSON(map[string]int64{"reset": n})
			})
		},
	}
}
