package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/serhrag/ragchat/internal/config"
	"github.com/serhrag/ragchat/modules/provider/vertex"
	"github.com/serhrag/ragchat/pkg/app"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(configCheckCmd(), configInitCmd())
	return cmd
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and provision every module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := runParams(cmd)
			if len(args) == 1 {
				params.ConfigPath = args[0]
			}
			params.LogOutput = io.Discard
			return checkConfig(contextOrBackground(cmd), cmd.OutOrStdout(), params)
		},
	}
}

// checkConfig builds the application without starting it and reports the
// modules that would run.
func checkConfig(ctx context.Context, w io.Writer, params app.Params) error {
	rt, err := app.Build(ctx, params)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Stop() }()

	mods := rt.App.Modules()
	fmt.Fprintf(w, "Configuration OK: %s (%d modules)\n", rt.ConfigPath, len(mods))
	for _, mod := range mods {
		fmt.Fprintf(w, "  %s\n", mod.ModuleInfo().ID)
	}
	return nil
}

// Backends offered by config init.
const (
	backendVertex = "vertex"
	backendOpenAI = "openai_compatible"
	backendEcho   = "echo"
)

// initAnswers collects what config init asks for.
type initAnswers struct {
	Backend string
	Bind    string
	SQLite  bool

	VertexProject  string
	VertexLocation string
	VertexModel    string

	OpenAIBaseURL string
	OpenAIKeyEnv  string
	OpenAIModel   string

	BearerTokenEnv string
	AllowedOrigins string
	LogFormat      string
}

func defaultAnswers() initAnswers {
	return initAnswers{
		Backend:        backendVertex,
		Bind:           "0.0.0.0:8000",
		VertexProject:  vertex.DefaultProject,
		VertexLocation: vertex.DefaultLocation,
		VertexModel:    vertex.DefaultModel,
		OpenAIBaseURL:  "https://api.openai.com/v1",
		OpenAIKeyEnv:   "OPENAI_API_KEY",
		OpenAIModel:    "gpt-4o-mini",
		LogFormat:      config.DefaultLogFormat,
		AllowedOrigins: "*",
	}
}

func configInitCmd() *cobra.Command {
	var (
		output      string
		force       bool
		useDefaults bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				if _, err := os.Stat(output); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", output)
				}
			}

			answers := defaultAnswers()
			if !useDefaults {
				if err := initForm(&answers).Run(); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						return errors.New("aborted")
					}
					return err
				}
			}

			raw, err := renderConfig(answers)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, raw, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "ragchat.yaml", "File to write")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVar(&useDefaults, "defaults", false, "Skip the prompts and write the defaults")
	return cmd
}

func initForm(a *initAnswers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Generation backend").
				Options(
					huh.NewOption("Vertex AI with a RAG corpus", backendVertex),
					huh.NewOption("OpenAI-compatible API", backendOpenAI),
					huh.NewOption("Echo (development, no model)", backendEcho),
				).
				Value(&a.Backend),
			huh.NewInput().Title("HTTP bind address").Value(&a.Bind).Validate(validateBind),
			huh.NewConfirm().Title("Keep conversations in SQLite instead of plain memory?").Value(&a.SQLite),
		),
		huh.NewGroup(
			huh.NewInput().Title("GCP project").Value(&a.VertexProject).Validate(notEmpty),
			huh.NewInput().Title("Location").Value(&a.VertexLocation).Validate(notEmpty),
			huh.NewInput().Title("Model").Value(&a.VertexModel).Validate(notEmpty),
		).WithHideFunc(func() bool { return a.Backend != backendVertex }),
		huh.NewGroup(
			huh.NewInput().Title("Base URL").Value(&a.OpenAIBaseURL).Validate(notEmpty),
			huh.NewInput().Title("Environment variable holding the API key").Value(&a.OpenAIKeyEnv).Validate(notEmpty),
			huh.NewInput().Title("Model").Value(&a.OpenAIModel).Validate(notEmpty),
		).WithHideFunc(func() bool { return a.Backend != backendOpenAI }),
		huh.NewGroup(
			huh.NewInput().
				Title("Environment variable holding the management API token").
				Description("Leave empty to leave /conversation and /conversations open.").
				Value(&a.BearerTokenEnv),
			huh.NewInput().Title("Allowed CORS origins, comma separated").Value(&a.AllowedOrigins),
			huh.NewSelect[string]().
				Title("Log format").
				Options(huh.NewOptions("text", "json")...).
				Value(&a.LogFormat),
		),
	)
}

func notEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}

func validateBind(s string) error {
	if _, _, err := net.SplitHostPort(s); err != nil {
		return fmt.Errorf("expected host:port: %w", err)
	}
	return nil
}

// initDocument is the shape config init writes. Modules are plain maps so
// only the chosen settings appear in the file.
type initDocument struct {
	Version string           `yaml:"version"`
	Log     config.LogConfig `yaml:"log"`
	Modules map[string]any   `yaml:"modules"`
}

func renderConfig(a initAnswers) ([]byte, error) {
	doc := initDocument{
		Version: "1",
		Log:     config.LogConfig{Level: config.DefaultLogLevel, Format: a.LogFormat},
		Modules: map[string]any{},
	}

	switch a.Backend {
	case backendVertex:
		doc.Modules["provider.vertex"] = map[string]any{
			"project":  a.VertexProject,
			"location": a.VertexLocation,
			"model":    a.VertexModel,
		}
	case backendOpenAI:
		doc.Modules["provider.openai_compatible"] = map[string]any{
			"base_url":    a.OpenAIBaseURL,
			"api_key_env": a.OpenAIKeyEnv,
			"model":       a.OpenAIModel,
		}
	case backendEcho:
		doc.Modules["provider.echo"] = map[string]any{}
	default:
		return nil, fmt.Errorf("unknown backend %q", a.Backend)
	}

	if a.SQLite {
		doc.Modules["store.sqlite"] = map[string]any{}
	}

	gw := map[string]any{"bind": a.Bind}
	if origins := splitList(a.AllowedOrigins); len(origins) > 0 {
		gw["cors"] = map[string]any{"allowed_origins": origins}
	}
	if a.BearerTokenEnv != "" {
		gw["auth"] = map[string]any{"bearer_token": "${" + a.BearerTokenEnv + "}"}
	}
	doc.Modules["gateway.http"] = gw

	return yaml.Marshal(doc)
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
