package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"

	"hotelchat/internal/app"
	"hotelchat/internal/config"
	"hotelchat/internal/observability"
	"hotelchat/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Config is read from the environment when nil. Set before calling Run().
	Config *config.Config

	// LLM replaces the configured language model for chat.
	LLM service.LanguageModel

	// App holds the wired services while a command runs.
	App *app.App
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.App != nil {
		err := m.App.Close()
		m.App = nil
		return err
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("hotelchat"),
		kong.Description("Search the hotel room catalog and chat with the booking assistant"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'hotelchat --help' to see available commands")
	}

	cmd := args[0]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg := m.Config
	if cfg == nil {
		if cfg, err = config.Load(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	level := cfg.Logging.Level
	if !cli.Verbose {
		level = "warn"
	}
	logger := observability.NewLoggerTo(stderr, "dev", level)
	log.Logger = logger

	m.App, err = app.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, "Hint: CATALOG_DRIVER and EMBEDDING_PROVIDER select the catalog and embedder")
		return err
	}
	defer m.Close()
	deps.App = m.App

	if cmd == "chat" {
		if m.LLM != nil {
			deps.Agent = service.NewAgent(m.LLM, service.AgentOptions{
				Temperature:   cfg.LLM.Temperature,
				MaxTokens:     cfg.LLM.MaxTokens,
				MaxToolRounds: cfg.LLM.MaxToolRounds,
			}, logger, m.App.Tool)
		} else if deps.Agent, err = m.App.Agent(ctx); err != nil {
			fmt.Fprintln(stderr, "Hint: set LLM_MODEL and OPENAI_API_KEY or GOOGLE_API_KEY")
			return err
		}
	}

	return kongCtx.Run(deps)
}
