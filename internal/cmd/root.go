// Package cmd provides the ttsdesk CLI commands.
package cmd

import (
	"fmt"
	"net/http"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/vinicius00franco/tts-sst-idiomas/internal/api"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/app"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/audio"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/config"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/db"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/logging"
)

// Version is set at build time.
var Version = "dev"

var (
	// Global flags
	configPath string
	apiURL     string
	debug      bool
	logLevel   string // --log-level flag (debug, info, warn, error)
	logFile    string
	noHistory  bool

	// Loaded configuration
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ttsdesk",
	Short: "ttsdesk - a terminal front-end for the TTS conversation backend",
	Long: `ttsdesk talks to the TTS conversation backend.

Without a subcommand it opens the interactive terminal UI: suggest topics
for a subject, generate a spoken conversation, play it back and search
the vector store. The subcommands run the same calls once and print the
result.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if apiURL != "" {
			cfg.API.BaseURL = apiURL
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		// Priority: --log-level flag > --debug flag > config
		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		} else if debug {
			level = "debug"
		}
		file := cfg.Logging.File
		if logFile != "" {
			file = logFile
		}

		// The TUI owns the terminal, so only one-shot commands log to stderr.
		if err := logging.Initialize(logging.Config{
			Level:   level,
			File:    file,
			Console: cmd != cmd.Root() && cmd.Name() != "mcp",
			JSON:    cfg.Logging.JSON,
		}); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Close()
	},
	RunE: runTUI,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file path (TOML or YAML, default $"+config.EnvConfigPath+" or ~/.config/ttsdesk/config.toml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Backend base URL (overrides api.base_url)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging (shorthand for --log-level=debug)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&logFile, "logfile", "l", "", "Log file path (overrides logging.file)")
	rootCmd.PersistentFlags().BoolVar(&noHistory, "no-history", false, "Do not read or write the history database")
}

func runTUI(cmd *cobra.Command, args []string) error {
	client := newClient()

	var store *db.Store
	if !noHistory {
		s, err := db.Open(cfg.Database.Path)
		if err != nil {
			// History is optional; the TUI still works without it.
			logging.WithComponent("cmd").Warn("history disabled", "path", cfg.Database.Path, "error", err)
		} else {
			store = s
			defer store.Close()
		}
	}

	playerCommand := cfg.Player.Command
	m := app.New(app.Options{
		Client: client,
		Store:  store,
		NewPlayer: func() (audio.Player, error) {
			return audio.NewExecPlayer(playerCommand, &http.Client{})
		},
		Defaults: cfg.Defaults,
		Throttle: cfg.Query.Throttle,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// newClient builds an API client from the loaded configuration.
func newClient() *api.Client {
	opts := []api.Option{
		api.WithAPIPrefix(cfg.API.Prefix),
		api.WithOutputsPath(cfg.API.OutputsPath),
	}
	if cfg.API.Timeout > 0 {
		opts = append(opts, api.WithTimeout(cfg.API.Timeout))
	}
	return api.New(cfg.API.BaseURL, opts...)
}
