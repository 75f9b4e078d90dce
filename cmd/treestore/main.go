// Command treestore runs the tree engine REST surface and its maintenance tasks.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/SharedCode/treestore"
)

func main() {
	treestore.ConfigureLogging()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var configPath string
	var debug bool
	root := &cobra.Command{
		Use:           "treestore",
		Short:         "nested-set Edit/Live tree storage engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				treestore.SetLogLevel(slog.LevelDebug)
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("TREESTORE_CONFIG"), "path of the JSON options file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")

	load := func() (treestore.Options, error) {
		return treestore.LoadOptions(configPath)
	}
	root.AddCommand(
		initCommand(load),
		serveCommand(load),
		checkCommand(load),
		sweepCommand(load),
		activateAllCommand(load),
		exportCommand(load),
		treeCommand(load),
	)
	return root
}
