package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/serhrag/ragchat/internal/mcpserver"
	"github.com/serhrag/ragchat/pkg/app"
	"github.com/spf13/cobra"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the chat tools over MCP on stdin and stdout",
		Long: "Serve ask, get_conversation, list_conversations and delete_conversation " +
			"as Model Context Protocol tools. The HTTP gateway is not started; logs go to stderr.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			params := runParams(cmd)
			params.Exclude = []string{"gateway.http"}
			params.LogOutput = os.Stderr

			rt, err := app.Build(ctx, params)
			if err != nil {
				return err
			}
			if err := rt.Start(); err != nil {
				return err
			}

			srv := mcpserver.New(rt.Orchestrator, app.Name, version, rt.Logger)
			serveErr := srv.ServeStdio(ctx, os.Stdin, os.Stdout)
			if err := rt.Stop(); serveErr == nil {
				serveErr = err
			}
			return serveErr
		},
	}
}
