package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/So-hel/signalmatrix-repo/internal/adapters"
	"github.com/So-hel/signalmatrix-repo/internal/analysis"
	"github.com/So-hel/signalmatrix-repo/internal/config"
	apperrors "github.com/So-hel/signalmatrix-repo/internal/errors"
	"github.com/So-hel/signalmatrix-repo/internal/monitoring"
	"github.com/So-hel/signalmatrix-repo/internal/narrative"
	"github.com/So-hel/signalmatrix-repo/internal/report"
	"github.com/So-hel/signalmatrix-repo/internal/security"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "signalmatrix",
		Usage:     "score GitHub profiles from the command line",
		Writer:    stdout,
		ErrWriter: stderr,
		Commands: []*cli.Command{
			{
				Name:      "analyze",
				Usage:     "collect a live profile and print the report",
				ArgsUsage: "<username>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "resume", Aliases: []string{"r"}, Usage: "resume text file checked against the profile"},
					&cli.BoolFlag{Name: "no-ai", Usage: "skip the narrative provider"},
					&cli.StringFlag{Name: "token", Usage: "GitHub token, overrides GITHUB_TOKEN"},
				},
				Action: runAnalyze,
			},
			{
				Name:      "score",
				Usage:     "score a snapshot JSON file offline (- reads stdin)",
				ArgsUsage: "<snapshot.json>",
				Action:    runScore,
			},
			{
				Name:   "config",
				Usage:  "print the effective configuration with credentials masked",
				Action: runConfig,
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(monitoring.NewLoggerTo(c.App.ErrWriter, cfg.LogLevel).Logger)
	return cfg, nil
}

func runAnalyze(c *cli.Context) error {
	username := strings.TrimSpace(c.Args().First())
	if err := security.ValidateUsername(username); err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	var resume string
	if path := c.String("resume"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read resume: %w", err)
		}
		resume = security.SanitizeInput(string(data))
	}

	token := cfg.GitHubToken
	if t := c.String("token"); t != "" {
		token = t
	}
	github := adapters.NewGitHubAdapter(token, adapters.WithBaseURL(cfg.GitHubAPIURL))
	defer github.Close()

	snapshot, err := github.CollectSnapshot(c.Context, username)
	if err != nil {
		return describeCollectError(username, err)
	}
	score := analysis.Compute(snapshot)

	if c.Bool("no-ai") {
		return writeJSON(c.App.Writer, report.Construct(&score, nil))
	}

	generator, err := narrative.New(c.Context, cfg.Narrative())
	if err != nil {
		slog.Warn("Narrative provider unavailable", "error", err)
	}
	ai := generator.Generate(c.Context, score, resume)
	return writeJSON(c.App.Writer, report.Construct(&score, &ai))
}

func describeCollectError(username string, err error) error {
	switch apperrors.ToAppError(err).Category {
	case apperrors.CategoryNotFound:
		return fmt.Errorf("GitHub user '%s' not found", username)
	case apperrors.CategoryAuthentication:
		return errors.New("authentication failed, verify GITHUB_TOKEN")
	case apperrors.CategoryRateLimit:
		return errors.New("GitHub rate limit exceeded, set GITHUB_TOKEN or retry later")
	}
	return fmt.Errorf("collect %s: %w", username, err)
}

func runScore(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("snapshot path required, use - for stdin")
	}

	var in io.Reader
	if path == "-" {
		in = c.App.Reader
		if in == nil {
			in = os.Stdin
		}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open snapshot: %w", err)
		}
		defer f.Close()
		in = f
	}

	var snapshot analysis.Snapshot
	if err := json.NewDecoder(in).Decode(&snapshot); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	return writeJSON(c.App.Writer, analysis.Compute(snapshot.Normalize()))
}

func runConfig(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	for _, setting := range cfg.Summary() {
		fmt.Fprintf(c.App.Writer, "%-18s %s\n", setting[0]+":", setting[1])
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
