package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/theimaginaryfoundation/journal-distiller/journal"
	"github.com/theimaginaryfoundation/journal-distiller/journal/fileutils"
	"github.com/theimaginaryfoundation/journal-distiller/journal/ledger"
	"github.com/theimaginaryfoundation/journal-distiller/journal/provider"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if cfg.Schema {
		b, err := journal.DocumentSchema()
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		fmt.Fprintln(os.Stdout, string(b))
		return
	}

	if cfg.LedgerReport != "" {
		if err := reportLedger(context.Background(), cfg.LedgerPath, cfg.LedgerReport, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		return
	}

	pcfg := cfg.ProviderConfig()
	if !cfg.DryRun {
		if err := pcfg.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			var f *provider.Failure
			if errors.As(err, &f) {
				fmt.Fprintln(os.Stderr, f.Hint())
			}
			os.Exit(2)
		}
	}

	log, closeLog, err := newLogger(cfg, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	a := &app{
		cfg:      cfg,
		runID:    runID,
		log:      log.With().Str("run_id", runID).Logger(),
		prompt:   newPrompter(os.Stdin, os.Stderr),
		progress: os.Stderr,
		newGenerator: func(ctx context.Context, log zerolog.Logger) (journal.Generator, error) {
			client, err := provider.New(pcfg, log)
			if err != nil {
				return nil, err
			}
			if cfg.Preflight {
				if err := client.Preflight(ctx); err != nil {
					return nil, fmt.Errorf("preflight: %w", err)
				}
				used := client.Config()
				log.Info().Str("provider", string(used.Provider)).Str("model", used.Model).Str("endpoint", used.Endpoint()).Msg("preflight ok")
			}
			return client, nil
		},
	}

	stats, err := a.run(ctx)
	if errors.Is(err, errQuit) {
		a.log.Info().Msg("stopped by user")
		return
	}
	if err != nil {
		a.log.Error().Err(err).Msg("run failed")
		fmt.Fprintf(os.Stdout, "processed=%d skipped_existing=%d errors=%d out_dir=%s\n", stats.Processed, stats.SkippedExisting, stats.Errors, cfg.OutDir)
		closeLog()
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "processed=%d skipped_existing=%d errors=%d out_dir=%s\n", stats.Processed, stats.SkippedExisting, stats.Errors, cfg.OutDir)
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	return parseFlagsEnv(fs, args, os.Getenv)
}

// parseFlagsEnv layers defaults, the -config YAML file, the environment and finally the flags given in args.
func parseFlagsEnv(fs *flag.FlagSet, args []string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()
	if path := configFileArg(args); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
		cfg.ConfigFile = path
	}
	cfg.applyEnv(getenv)
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "Optional YAML config file (keys match the flag names, with _ for -)")
	fs.StringVar(&cfg.InPath, "in", cfg.InPath, "Path to the journal JSON document")
	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Output directory for markdown notes")
	fs.StringVar(&cfg.CheckpointPath, "checkpoint", cfg.CheckpointPath, "Path of the filtered checkpoint document (empty disables it)")
	fs.StringVar(&cfg.CheckpointMode, "checkpoint-mode", cfg.CheckpointMode, "What to do with an existing checkpoint: ask, reuse, replace or abort")
	fs.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "Pretty-print the checkpoint JSON")

	fs.StringVar(&cfg.StartDate, "start", cfg.StartDate, "Keep posts on or after this date (DD.MM.YYYY)")
	fs.StringVar(&cfg.EndDate, "end", cfg.EndDate, "Keep posts on or before this date (DD.MM.YYYY)")
	fs.StringVar(&cfg.SplitSelector, "split", cfg.SplitSelector, "Threads to split by time gap: comma separated ids/categories (id:/cat: prefixes allowed) or *all*")
	fs.IntVar(&cfg.SplitDays, "split-days", cfg.SplitDays, "Split a selected thread where posts are more than N days apart (0 disables)")
	fs.IntVar(&cfg.MinArticleLength, "min-article", cfg.MinArticleLength, "Drop threads whose total article length is below N characters (0 disables)")
	fs.IntVar(&cfg.MinMemberQuoteLength, "min-quote", cfg.MinMemberQuoteLength, "Drop member quotes shorter than N characters (0 disables)")

	fs.StringVar(&cfg.Provider, "provider", cfg.Provider, "LLM provider: gemini, openai or ollama (env LLM_PROVIDER)")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Model name (env MODEL_NAME)")
	fs.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "API key (overrides OPENAI_API_KEY / GEMINI_API_KEY)")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Override the provider endpoint (ollama: env OLLAMA_BASE_URL)")
	fs.Float64Var(&cfg.Temperature, "temperature", cfg.Temperature, "Sampling temperature")
	fs.Float64Var(&cfg.TopP, "top-p", cfg.TopP, "Nucleus sampling top_p")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "Extra attempts after rate-limit or server errors (0 disables)")
	fs.BoolVar(&cfg.Preflight, "preflight", cfg.Preflight, "Check that the model exists before sending requests")

	fs.StringVar(&cfg.Lang, "lang", cfg.Lang, "Language of the prompt labels (BCP 47 tag, e.g. en or de)")
	fs.StringVar(&cfg.SystemPromptFile, "system-prompt-file", cfg.SystemPromptFile, "Optional path to a file containing the system prompt")

	fs.IntVar(&cfg.RPM, "rpm", cfg.RPM, "Max generation requests per minute (0 = no cap)")
	fs.DurationVar(&cfg.Pause, "pause", cfg.Pause, "Pause after every generation request")
	fs.DurationVar(&cfg.FailurePause, "failure-pause", cfg.FailurePause, "Extra pause after a failed request")

	fs.StringVar(&cfg.LedgerPath, "ledger", cfg.LedgerPath, "Optional SQLite file recording runs and request outcomes")
	fs.StringVar(&cfg.LedgerReport, "ledger-report", "", "Print a run recorded in -ledger (run id or latest) and exit")
	fs.StringVar(&cfg.RequestsOut, "requests-out", cfg.RequestsOut, "Optional path to write the prepared requests as JSONL")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "JSON log file, truncated per run (empty disables)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")

	fs.BoolVar(&cfg.Interactive, "interactive", cfg.Interactive, "Ask for filter settings and confirmation on stdin")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Filter and prepare requests, then stop before generation")
	fs.BoolVar(&cfg.Schema, "schema", false, "Print the JSON Schema of the input document and exit")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	if !explicit["api-key"] {
		if name := apiKeyEnv(cfg.Provider); name != "" {
			if v := getenv(name); v != "" {
				cfg.APIKey = v
			}
		}
	}
	if !explicit["base-url"] && provider.Name(cfg.Provider) == provider.Ollama {
		if v := getenv("OLLAMA_BASE_URL"); v != "" {
			cfg.BaseURL = v
		}
	}

	cfg.InPath = cleanPath(cfg.InPath)
	cfg.OutDir = cleanPath(cfg.OutDir)
	cfg.CheckpointPath = cleanPath(cfg.CheckpointPath)
	cfg.SystemPromptFile = cleanPath(cfg.SystemPromptFile)
	cfg.LedgerPath = cleanPath(cfg.LedgerPath)
	cfg.RequestsOut = cleanPath(cfg.RequestsOut)
	cfg.LogFile = cleanPath(cfg.LogFile)
	return cfg, nil
}

// app is one distiller run: checkpoint choice, filtering, request preparation and generation.
type app struct {
	cfg      Config
	runID    string
	log      zerolog.Logger
	prompt   *prompter
	progress io.Writer

	newGenerator func(ctx context.Context, log zerolog.Logger) (journal.Generator, error)
}

func (a *app) run(ctx context.Context) (journal.RunStats, error) {
	source, fromCheckpoint, err := a.chooseSource()
	if err != nil {
		return journal.RunStats{}, err
	}
	initial, err := a.load(source)
	if err != nil {
		return journal.RunStats{}, err
	}

	labels := journal.LabelsFor(a.cfg.Lang)
	systemPrompt := loadSystemPrompt(a.cfg.SystemPromptFile, a.log)

	for {
		data := initial
		if fromCheckpoint {
			a.log.Info().Str("checkpoint", source).Int("threads", data.Len()).Msg("filters skipped, using checkpoint")
		} else {
			params, err := a.params()
			if err != nil {
				return journal.RunStats{}, err
			}
			var rep journal.FilterReport
			data, rep = journal.Filter(initial, params, a.log)
			a.log.Info().
				Int("threads_in", rep.InputThreads).
				Int("threads_out", rep.OutputThreads).
				Int("posts_out", rep.OutputPosts).
				Msg("filtering done")
			a.saveCheckpoint(data)
		}

		reqs, rejected := journal.PrepareRequests(data, systemPrompt, labels)
		for _, id := range rejected {
			a.log.Debug().Str("thread_id", id).Msg("no content beyond title, not sent")
		}
		fmt.Fprintf(a.progress, "\n%d threads after filtering, %d requests ready\n", data.Len(), len(reqs))

		if len(reqs) == 0 {
			a.log.Warn().Int("threads", data.Len()).Msg("nothing to send")
			if !a.cfg.Interactive {
				return journal.RunStats{}, nil
			}
			if err := a.prompt.refilterOrQuit(); err != nil {
				return journal.RunStats{}, err
			}
			if initial, fromCheckpoint, err = a.reloadInput(initial, fromCheckpoint); err != nil {
				return journal.RunStats{}, err
			}
			continue
		}

		if a.cfg.RequestsOut != "" {
			if err := fileutils.WriteJSONLinesAtomic(a.cfg.RequestsOut, reqs); err != nil {
				return journal.RunStats{}, fmt.Errorf("write -requests-out: %w", err)
			}
			a.log.Info().Str("path", a.cfg.RequestsOut).Int("requests", len(reqs)).Msg("requests written")
		}
		if a.cfg.DryRun {
			a.log.Info().Int("requests", len(reqs)).Msg("dry run, stopping before generation")
			return journal.RunStats{}, nil
		}

		if a.cfg.Interactive {
			send, err := a.prompt.confirmSend(len(reqs))
			if err != nil {
				return journal.RunStats{}, err
			}
			if !send {
				if initial, fromCheckpoint, err = a.reloadInput(initial, fromCheckpoint); err != nil {
					return journal.RunStats{}, err
				}
				continue
			}
		}
		return a.generate(ctx, reqs)
	}
}

// chooseSource decides between the input document and an existing checkpoint.
// The bool is true when the checkpoint is reused and filtering is skipped.
func (a *app) chooseSource() (string, bool, error) {
	cp := a.cfg.CheckpointPath
	if cp == "" || !fileutils.FileExists(cp) {
		return a.cfg.InPath, false, nil
	}

	mode := a.cfg.CheckpointMode
	if mode == CheckpointAsk {
		var err error
		if mode, err = a.prompt.checkpointAction(cp); err != nil {
			return "", false, err
		}
	}

	switch mode {
	case CheckpointReuse:
		return cp, true, nil
	case CheckpointReplace:
		if err := os.Remove(cp); err != nil {
			a.log.Warn().Err(err).Str("checkpoint", cp).Msg("could not remove old checkpoint")
		} else {
			a.log.Info().Str("checkpoint", cp).Msg("old checkpoint removed")
		}
		return a.cfg.InPath, false, nil
	}
	a.log.Info().Str("checkpoint", cp).Msg("checkpoint exists, aborting")
	return "", false, errQuit
}

// reloadInput prepares a refilter pass. A reused checkpoint is replaced by the original input;
// an input collection is kept as is because filtering never modifies it.
func (a *app) reloadInput(current journal.Collection, fromCheckpoint bool) (journal.Collection, bool, error) {
	if !fromCheckpoint {
		return current, false, nil
	}
	c, err := a.load(a.cfg.InPath)
	return c, false, err
}

func (a *app) load(path string) (journal.Collection, error) {
	c, rep, err := journal.LoadCollection(path)
	if err != nil {
		return journal.Collection{}, err
	}
	for _, m := range rep.Malformed {
		a.log.Warn().
			Str("thread_id", m.ThreadID).
			Str("post_id", m.PostID).
			Str("reason", m.Reason).
			Msg("skipped malformed record")
	}
	a.log.Info().
		Str("path", path).
		Int("threads", rep.Threads).
		Int("posts", rep.Posts).
		Int("malformed", len(rep.Malformed)).
		Msg("journal loaded")
	return c, nil
}

func (a *app) params() (journal.Params, error) {
	p, err := a.cfg.Params()
	if err != nil {
		return journal.Params{}, err
	}
	if !a.cfg.Interactive {
		return p, nil
	}
	return a.prompt.params(p)
}

// saveCheckpoint failures are logged; the run continues with the in-memory result.
func (a *app) saveCheckpoint(c journal.Collection) {
	if a.cfg.CheckpointPath == "" {
		return
	}
	if err := journal.SaveCheckpoint(a.cfg.CheckpointPath, c, a.cfg.Pretty); err != nil {
		a.log.Warn().Err(err).Str("checkpoint", a.cfg.CheckpointPath).Msg("could not save checkpoint, continuing")
		return
	}
	a.log.Info().Str("checkpoint", a.cfg.CheckpointPath).Int("threads", c.Len()).Msg("checkpoint saved")
}

func (a *app) generate(ctx context.Context, reqs []journal.Request) (stats journal.RunStats, err error) {
	gen, err := a.newGenerator(ctx, a.log)
	if err != nil {
		return journal.RunStats{}, err
	}
	if err := os.MkdirAll(a.cfg.OutDir, 0o755); err != nil {
		return journal.RunStats{}, fmt.Errorf("mkdir -out: %w", err)
	}

	runner := &journal.Runner{
		Generator: gen,
		Writer:    journal.ArtifactWriter{Dir: a.cfg.OutDir},
		Pacer:     journal.NewPacer(a.cfg.Pause, a.cfg.FailurePause, a.cfg.RPM),
		Log:       a.log,
		Progress:  a.progress,
	}

	if a.cfg.LedgerPath != "" {
		l, err := ledger.Open(a.cfg.LedgerPath)
		if err != nil {
			return journal.RunStats{}, err
		}
		defer l.Close()

		pc := a.cfg.ProviderConfig()
		run := ledger.Run{
			ID:        a.runID,
			StartedAt: time.Now(),
			Provider:  string(pc.Provider),
			Model:     pc.Model,
			InputPath: a.cfg.InPath,
			OutDir:    a.cfg.OutDir,
			Requests:  len(reqs),
		}
		if err := l.StartRun(ctx, run); err != nil {
			return journal.RunStats{}, err
		}
		runner.Recorder = l
		defer func() {
			if ferr := l.FinishRun(context.WithoutCancel(ctx), stats); ferr != nil {
				a.log.Warn().Err(ferr).Msg("finish ledger run")
			}
		}()
	}

	fmt.Fprintln(a.progress, "\n--- Generating ---")
	stats, err = runner.Run(ctx, reqs)
	a.log.Info().
		Int("processed", stats.Processed).
		Int("skipped_existing", stats.SkippedExisting).
		Int("errors", stats.Errors).
		Msg("generation finished")
	return stats, err
}
