package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/serhrag/ragchat/pkg/app"
	"github.com/spf13/cobra"
)

// program adapts the application to the OS service manager. Start must
// not block, so the application runs on its own goroutine until Stop.
type program struct {
	params app.Params
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	rt, err := app.Build(ctx, p.params)
	if err != nil {
		cancel()
		return err
	}

	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() { p.done <- rt.Run(ctx) }()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	return <-p.done
}

// serviceConfig describes the unit the service manager installs. The
// config path is made absolute because services start in another
// working directory.
func serviceConfig(cfgPath string) (*service.Config, error) {
	args := []string{"service", "run"}
	if cfgPath != "" {
		abs, err := filepath.Abs(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("resolving config path: %w", err)
		}
		args = append(args, "--config", abs)
	}
	return &service.Config{
		Name:        "ragchat",
		DisplayName: "ragchat",
		Description: "Conversational question answering over a document corpus.",
		Arguments:   args,
	}, nil
}

func newService(cmd *cobra.Command) (service.Service, error) {
	params := runParams(cmd)
	cfg, err := serviceConfig(params.ConfigPath)
	if err != nil {
		return nil, err
	}
	return service.New(&program{params: params}, cfg)
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage ragchat as an OS service",
	}

	for _, action := range service.ControlAction {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the ragchat service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, err := newService(cmd)
				if err != nil {
					return err
				}
				if err := service.Control(svc, action); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(cmd)
			if err != nil {
				return err
			}
			return svc.Run()
		},
	})

	return cmd
}
