package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"code-reels/internal/config"
	"code-reels/internal/infra/provider"
	"code-reels/internal/observability/logging"
	"code-reels/internal/usecase/generate"
	"code-reels/internal/validation"
)

// defaultSchemas are the response shapes of the built-in task types.
var defaultSchemas = map[string]validation.Schema{
	"eli5":    {"eli5": validation.KindString},
	"tldr":    {"tldr": validation.KindString},
	"diagram": {"diagram": validation.KindString},
}

// TaskOutput is the JSON printed for one task.
type TaskOutput struct {
	Task      string   `json:"task"`
	RequestID string   `json:"request_id,omitempty"`
	FromCache bool     `json:"from_cache"`
	Attempts  int      `json:"attempts"`
	LatencyMs int64    `json:"latency_ms"`
	Value     any      `json:"value,omitempty"`
	Warnings  []string `json:"quality_warnings,omitempty"`
	Error     string   `json:"error,omitempty"`
}

type generateFlags struct {
	tasks         []string
	contextFile   string
	providerName  string
	model         string
	strict        bool
	noCache       bool
	report        bool
	metricsAddr   string
	responseFiles []string
	fields        []string
}

func newGenerateCmd() *cobra.Command {
	var f generateFlags

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run generation tasks for a context file",
		Example: `  genai generate --task eli5 --context-file snippet.yaml
  genai generate --task eli5 --task tldr --task diagram --context-file snippet.json --report
  genai generate --task tldr --provider static --response-file answer.json --context-file snippet.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runGenerate(ctx, cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&f.tasks, "task", nil, "task type to run (repeatable): eli5, tldr, diagram or custom")
	flags.StringVar(&f.contextFile, "context-file", "", "YAML or JSON file with the generation context")
	flags.StringVar(&f.providerName, "provider", "", "provider override: claude, openai or static")
	flags.StringVar(&f.model, "model", "", "model override")
	flags.BoolVar(&f.strict, "strict", false, "fail tasks whose response has quality warnings")
	flags.BoolVar(&f.noCache, "no-cache", false, "bypass the response cache")
	flags.BoolVar(&f.report, "report", false, "print the metrics report to stderr after the run")
	flags.StringVar(&f.metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address during the run")
	flags.StringArrayVar(&f.responseFiles, "response-file", nil, "scripted response for the static provider (repeatable)")
	flags.StringArrayVar(&f.fields, "field", nil, "response schema entry name=kind for custom tasks (repeatable)")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("context-file")

	return cmd
}

func runGenerate(ctx context.Context, cmd *cobra.Command, f generateFlags) error {
	cfg, err := config.LoadGenAIConfig()
	if err != nil {
		return err
	}
	if f.providerName != "" {
		cfg.Provider.Name = f.providerName
	}
	if f.model != "" {
		cfg.Provider.Model = f.model
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.NewJSONLogger(cmd.ErrOrStderr(), logging.ParseLevel(cfg.Observability.LogLevel))

	payload, err := loadContext(f.contextFile)
	if err != nil {
		return err
	}
	customSchema, err := parseFields(f.fields)
	if err != nil {
		return err
	}

	var providerOpts []provider.Option
	for _, path := range f.responseFiles {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read response file: %w", err)
		}
		providerOpts = append(providerOpts, provider.WithStaticResponses(provider.Response{Text: string(raw)}))
	}

	a, err := newApp(cfg, logger, providerOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", slog.Any("error", err))
		}
	}()

	if f.metricsAddr != "" {
		serverCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		startMetricsServer(serverCtx, logger, f.metricsAddr, a.registry, a.service.Snapshot, a.breakers.ResetAll)
	}

	outputs := make([]TaskOutput, len(f.tasks))
	var g errgroup.Group
	for i, task := range f.tasks {
		schema := customSchema
		if s, ok := defaultSchemas[task]; ok && len(customSchema) == 0 {
			schema = s
		}
		g.Go(func() error {
			outputs[i] = runTask(ctx, a, task, payload, schema, f)
			return nil
		})
	}
	_ = g.Wait()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(outputs); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if f.report {
		fmt.Fprint(cmd.ErrOrStderr(), a.service.Report())
	}

	var failed int
	for _, out := range outputs {
		if out.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", failed, len(outputs))
	}
	return nil
}

func runTask(ctx context.Context, a *app, task string, payload any, schema validation.Schema, f generateFlags) TaskOutput {
	out := TaskOutput{Task: task}

	prompt, err := provider.BuildPrompt(task, payload, schema)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	res, err := a.service.Generate(ctx, generate.Request{
		TaskType: task,
		Context:  payload,
		Schema:   schema,
		Options: generate.Options{
			Model:         a.cfg.Provider.Model,
			SkipCache:     f.noCache,
			StrictQuality: f.strict,
		},
	}, provider.JSONAttempt(a.completer, prompt))
	if err != nil {
		out.Error = err.Error()
		return out
	}

	out.RequestID = res.RequestID
	out.FromCache = res.FromCache
	out.Attempts = res.Attempts
	out.LatencyMs = res.Latency.Milliseconds()
	out.Value = res.Value
	out.Warnings = res.Validation.QualityWarnings
	return out
}

// loadContext reads a YAML or JSON document. JSON is a subset of YAML, so a
// single decoder handles both.
func loadContext(path string) (any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read context file: %w", err)
	}

	var payload any
	if err := yaml.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse context file %s: %w", path, err)
	}
	if payload == nil {
		return nil, fmt.Errorf("context file %s is empty", path)
	}
	return payload, nil
}

// parseFields turns name=kind flags into a schema.
func parseFields(fields []string) (validation.Schema, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	schema := make(validation.Schema, len(fields))
	for _, field := range fields {
		name, kind, ok := strings.Cut(field, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --field %q: want name=kind", field)
		}
		k := validation.Kind(kind)
		if !k.Valid() {
			return nil, fmt.Errorf("invalid --field %q: unknown kind %q", field, kind)
		}
		schema[name] = k
	}
	return schema, nil
}
