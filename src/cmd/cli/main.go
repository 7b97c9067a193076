package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"text-listener/src/config"
	"text-listener/src/session"
	"text-listener/src/speech"
)

const (
	maxFileSizeMB = 1
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

type cliOptions struct {
	filePath   string
	jsonOutput bool
	verbose    bool
	rate       float32
	backend    string
	voice      string
	envPath    string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"text-listener-say"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "text-listener-say",
		Short:         "Speak a text file with the configured voice",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(cmd.Context(), *opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to a UTF-8 text file (use '-' for stdin)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the result as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.Flags().Float32Var(&opts.rate, "rate", 0, "Speech rate multiplier 0.0-2.0 (default from configuration)")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Speech backend: auto, say, espeak-ng, espeak, sapi")
	cmd.Flags().StringVar(&opts.voice, "voice", "", "Voice name passed to the backend")
	cmd.Flags().StringVar(&opts.envPath, "env", "", "Path to the .env configuration file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runWithOptions(ctx context.Context, opts cliOptions, stdout io.Writer) error {
	// Configure logging BEFORE any other operations.
	if !opts.verbose {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(os.Stderr)
		fmt.Fprintf(os.Stderr, "[verbose] Starting speak tool\n")
	}

	cfg, err := config.LoadWithOptions(config.LoadOptions{EnvPathOverride: opts.envPath, SkipPrefs: true})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyOverrides(cfg, opts)

	if opts.verbose {
		fmt.Fprintf(os.Stderr, "[verbose] Backend=%s voice=%q rate=%.2f\n", cfg.SpeechBackend, cfg.SpeechVoice, cfg.SpeechRate)
	}

	text, err := readInput(opts.filePath, opts.verbose)
	if err != nil {
		return err
	}

	backend, err := speech.NewBackend(cfg.SpeechBackend, cfg.SpeechVoice)
	if err != nil {
		return err
	}
	defer backend.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := session.Execute(ctx, session.Options{
		Text:    func() (string, error) { return text, nil },
		Backend: backend,
		Rate:    cfg.SpeechRate,
	})
	if err != nil {
		if opts.verbose {
			fmt.Fprintf(os.Stderr, "[verbose] Speech ended early after %v: %v\n", res.Duration, err)
		}
		return err
	}

	if opts.verbose {
		fmt.Fprintf(os.Stderr, "[verbose] Spoke %d characters in %v\n", utf8.RuneCountInString(text), res.Duration)
	}
	return outputResult(stdout, res, opts.filePath, cfg.SpeechRate, opts.jsonOutput)
}

func applyOverrides(cfg *config.Config, opts cliOptions) {
	if opts.rate > 0 {
		cfg.SpeechRate = config.ClampRate(opts.rate)
	}
	if b := strings.TrimSpace(opts.backend); b != "" {
		cfg.SpeechBackend = strings.ToLower(b)
	}
	if v := strings.TrimSpace(opts.voice); v != "" {
		cfg.SpeechVoice = v
	}
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"file", "json", "verbose", "rate", "backend", "voice", "env"} {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "--" + arg[1:]
			}
		}
	}

	return normalized
}

func readInput(filePath string, verbose bool) (string, error) {
	var data []byte
	var err error

	if filePath == "-" {
		if verbose {
			fmt.Fprintf(os.Stderr, "[verbose] Reading text from stdin\n")
		}
		data, err = io.ReadAll(io.LimitReader(os.Stdin, maxFileSize+1))
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		if verbose {
			fmt.Fprintf(os.Stderr, "[verbose] Reading text from file: %s\n", filePath)
		}
		data, err = os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read file %s: %w", filePath, err)
		}
	}
	return validateText(data)
}

func validateText(data []byte) (string, error) {
	if len(data) > maxFileSize {
		return "", fmt.Errorf("input exceeds maximum size of %d MB", maxFileSizeMB)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("input is not valid UTF-8 text")
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("input is empty")
	}
	return text, nil
}

type SpeakResult struct {
	Source    string  `json:"source"`
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration_seconds"`
	CharCount int     `json:"character_count"`
	Rate      float32 `json:"rate"`
	Finished  bool    `json:"finished"`
}

func outputResult(w io.Writer, res session.Result, sourcePath string, rate float32, jsonOutput bool) error {
	if !jsonOutput {
		return nil
	}
	result := SpeakResult{
		Source:    sourcePath,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  res.Duration.Seconds(),
		CharCount: utf8.RuneCountInString(res.Text),
		Rate:      rate,
		Finished:  res.Finished,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}
