package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/theimaginaryfoundation/journal-distiller/journal"
	"github.com/theimaginaryfoundation/journal-distiller/journal/provider"
)

// Checkpoint modes for an existing checkpoint file.
const (
	CheckpointAsk     = "ask"
	CheckpointReuse   = "reuse"
	CheckpointReplace = "replace"
	CheckpointAbort   = "abort"
)

type Config struct {
	ConfigFile string `yaml:"-"`

	InPath         string `yaml:"in"`
	OutDir         string `yaml:"out"`
	CheckpointPath string `yaml:"checkpoint"`
	CheckpointMode string `yaml:"checkpoint_mode"`
	Pretty         bool   `yaml:"pretty"`

	StartDate            string `yaml:"start"`
	EndDate              string `yaml:"end"`
	SplitSelector        string `yaml:"split"`
	SplitDays            int    `yaml:"split_days"`
	MinArticleLength     int    `yaml:"min_article"`
	MinMemberQuoteLength int    `yaml:"min_quote"`

	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float64       `yaml:"temperature"`
	TopP        float64       `yaml:"top_p"`
	Timeout     time.Duration `yaml:"timeout"`
	Retries     int           `yaml:"retries"`
	Preflight   bool          `yaml:"preflight"`

	Lang             string `yaml:"lang"`
	SystemPromptFile string `yaml:"system_prompt_file"`

	RPM          int           `yaml:"rpm"`
	Pause        time.Duration `yaml:"pause"`
	FailurePause time.Duration `yaml:"failure_pause"`

	LedgerPath  string `yaml:"ledger"`
	RequestsOut string `yaml:"requests_out"`
	LogFile     string `yaml:"log_file"`
	LogLevel    string `yaml:"log_level"`

	Interactive bool `yaml:"interactive"`
	DryRun      bool `yaml:"dry_run"`
	Schema      bool `yaml:"-"`

	// LedgerReport is a run id or "latest"; when set the ledger is printed and nothing else runs.
	LedgerReport string `yaml:"-"`
}

func (c Config) Validate() error {
	if c.Schema {
		return nil
	}
	if c.LedgerReport != "" {
		if c.LedgerPath == "" {
			return errors.New("-ledger-report needs -ledger")
		}
		return nil
	}
	if c.InPath == "" {
		return errors.New("missing -in")
	}
	if c.OutDir == "" {
		return errors.New("missing -out")
	}
	switch c.CheckpointMode {
	case CheckpointAsk, CheckpointReuse, CheckpointReplace, CheckpointAbort:
	default:
		return fmt.Errorf("checkpoint-mode must be one of ask, reuse, replace, abort (got %q)", c.CheckpointMode)
	}
	if c.SplitDays < 0 {
		return errors.New("split-days must be >= 0")
	}
	if c.MinArticleLength < 0 || c.MinMemberQuoteLength < 0 {
		return errors.New("length thresholds must be >= 0")
	}
	if c.RPM < 0 {
		return errors.New("rpm must be >= 0")
	}
	if c.Pause < 0 || c.FailurePause < 0 {
		return errors.New("pauses must be >= 0")
	}
	if c.Retries < 0 {
		return errors.New("retries must be >= 0")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid -log-level %q", c.LogLevel)
	}
	if _, err := c.Params(); err != nil {
		return err
	}
	return nil
}

func defaultConfig() Config {
	pc := provider.DefaultConfig()
	return Config{
		InPath:         "journal.json",
		OutDir:         "notes",
		CheckpointPath: "journal_llm_input.json",
		CheckpointMode: CheckpointAsk,
		Pretty:         true,
		Provider:       string(pc.Provider),
		Temperature:    pc.Temperature,
		TopP:           pc.TopP,
		Timeout:        pc.Timeout,
		Lang:           "en",
		RPM:            0,
		Pause:          journal.DefaultPause,
		FailurePause:   journal.DefaultFailurePause,
		LogFile:        "journal-distiller.log",
		LogLevel:       "info",
	}
}

// Params converts the filter settings. Dates are DD.MM.YYYY; blank means unbounded.
func (c Config) Params() (journal.Params, error) {
	start, err := optionalDate("start", c.StartDate)
	if err != nil {
		return journal.Params{}, err
	}
	end, err := optionalDate("end", c.EndDate)
	if err != nil {
		return journal.Params{}, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return journal.Params{}, errors.New("-end is before -start")
	}
	return journal.Params{
		Start:                start,
		End:                  end,
		SplitSelector:        journal.ParseSelector(c.SplitSelector),
		SplitDays:            c.SplitDays,
		MinArticleLength:     c.MinArticleLength,
		MinMemberQuoteLength: c.MinMemberQuoteLength,
	}, nil
}

func optionalDate(name, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, ok := journal.ParseDate(s)
	if !ok {
		return nil, fmt.Errorf("invalid -%s %q (want DD.MM.YYYY)", name, s)
	}
	return &t, nil
}

// ProviderConfig builds the immutable client configuration.
func (c Config) ProviderConfig() provider.Config {
	pc := provider.DefaultConfig()
	pc.Provider = provider.Name(strings.ToLower(strings.TrimSpace(c.Provider)))
	pc.Model = strings.TrimSpace(c.Model)
	pc.APIKey = c.APIKey
	pc.BaseURL = c.BaseURL
	pc.Temperature = c.Temperature
	pc.TopP = c.TopP
	pc.Timeout = c.Timeout
	pc.Retries = c.Retries
	return pc
}

// applyFile overlays the keys present in a YAML config file.
func (c *Config) applyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read -config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse -config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv("LLM_PROVIDER")); v != "" {
		c.Provider = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv("MODEL_NAME")); v != "" {
		c.Model = v
	}
}

// apiKeyEnv names the variable holding the key for a provider.
func apiKeyEnv(p string) string {
	switch provider.Name(p) {
	case provider.OpenAI:
		return "OPENAI_API_KEY"
	case provider.Gemini:
		return "GEMINI_API_KEY"
	}
	return ""
}

// configFileArg finds -config before the flag set is built, so the file can seed flag defaults.
func configFileArg(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			break
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}
