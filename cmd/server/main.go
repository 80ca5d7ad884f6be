package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xevi10h/redbee-expo-sub000/internal/config"
)

// rootOptions - общие флаги всех команд. Значения по умолчанию берутся из окружения.
type rootOptions struct {
	cfg config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{cfg: config.Load()}

	cmd := &cobra.Command{
		Use:           "comments",
		Short:         "Threaded comments store and sync client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.cfg.LogLevel, "log-level", opts.cfg.LogLevel, "log level (debug|info|warn|error)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newThreadCommand(opts))
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
