// Package main is the entry point for the ragchat CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/serhrag/ragchat/internal/core"
	_ "github.com/serhrag/ragchat/internal/gateway"
	_ "github.com/serhrag/ragchat/modules/provider/echo"
	_ "github.com/serhrag/ragchat/modules/provider/openai_compatible"
	_ "github.com/serhrag/ragchat/modules/provider/vertex"
	_ "github.com/serhrag/ragchat/modules/store/sqlite"
	"github.com/serhrag/ragchat/pkg/app"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ragchat",
		Short:         "Conversational question answering over a document corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.AddCommand(versionCmd(), serveCmd(), configCmd(), mcpCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "ragchat %s (commit: %s, built: %s)\n", version, commit, date)
	mods := core.GetModules()
	if len(mods) == 0 {
		fmt.Fprintln(w, "\nNo compiled modules.")
		return
	}
	fmt.Fprintln(w, "\nCompiled modules:")
	for _, mod := range mods {
		fmt.Fprintf(w, "  %s\n", mod.ID)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the HTTP service with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx, runParams(cmd))
		},
	}
}

func runParams(cmd *cobra.Command) app.Params {
	cfgPath, _ := cmd.Flags().GetString("config")
	return app.Params{
		ConfigPath: cfgPath,
		Version:    version,
		Commit:     commit,
		Date:       date,
	}
}

// contextOrBackground returns cmd's context, which is nil when the command
// is executed without ExecuteContext.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
