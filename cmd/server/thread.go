package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xevi10h/redbee-expo-sub000/internal/config"
	"github.com/xevi10h/redbee-expo-sub000/internal/dataloader"
	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
	"github.com/xevi10h/redbee-expo-sub000/internal/executor"
	"github.com/xevi10h/redbee-expo-sub000/internal/logging"
	"github.com/xevi10h/redbee-expo-sub000/internal/storage/remote"
	"github.com/xevi10h/redbee-expo-sub000/internal/thread"
)

type threadOptions struct {
	contentID string
	viewerID  string
	pages     int
	expand    bool
}

// newThreadCommand синхронизирует ветку с сервером через движок и печатает кэш.
func newThreadCommand(root *rootOptions) *cobra.Command {
	opts := &threadOptions{}

	cmd := &cobra.Command{
		Use:   "thread",
		Short: "Load a comment thread through the sync engine and print it",
		Example: `  comments thread --content video-1 --viewer user-2 --pages 2 --expand
  comments thread --server http://comments:8080 --content video-1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := loadThread(cmd.Context(), root.cfg, opts)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().StringVar(&root.cfg.ServerURL, "server", root.cfg.ServerURL, "comment server base URL")
	cmd.Flags().StringVar(&opts.contentID, "content", "video-1", "content id")
	cmd.Flags().StringVar(&opts.viewerID, "viewer", "", "viewer id")
	cmd.Flags().IntVar(&opts.pages, "pages", 1, "number of top-level pages to load")
	cmd.Flags().BoolVar(&opts.expand, "expand", false, "expand replies of every loaded comment")
	return cmd
}

func loadThread(ctx context.Context, cfg config.Config, opts *threadOptions) (string, error) {
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return "", fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	client, err := remote.New(cfg.ServerURL)
	if err != nil {
		return "", err
	}

	viewer := domain.Author{ID: opts.viewerID}
	exec := executor.New(client, opts.contentID, viewer,
		executor.WithTimeout(cfg.RequestTimeout),
		executor.WithLogger(logger),
		executor.WithBatchedReplies(cfg.ReplyPageSize, dataloader.DefaultWait))
	engine := thread.NewEngine(thread.Scope{ContentID: opts.contentID, Viewer: viewer}, thread.NewCache(), exec,
		thread.WithLogger(logger),
		thread.WithPageSize(cfg.PageSize),
		thread.WithReplyPageSize(cfg.ReplyPageSize))

	for i := 0; i < opts.pages; i++ {
		if err := engine.LoadPage(ctx, i == 0); err != nil {
			return "", err
		}
	}

	if opts.expand {
		// Первые страницы ответов запрашиваются параллельно и уходят на сервер одним батчем
		top := engine.Cache().Snapshot().TopLevel
		errs := make(chan error, len(top))
		for _, c := range top {
			go func(id string) { errs <- engine.ToggleReplies(ctx, id) }(c.ID)
		}
		for range top {
			if err := <-errs; err != nil {
				return "", err
			}
		}
	}
	return engine.Cache().Dump(), nil
}
