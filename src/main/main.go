package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	gohook "github.com/robotn/gohook"
	"github.com/spf13/cobra"

	"text-listener/src/config"
	"text-listener/src/eventloop"
	"text-listener/src/hotkey"
	"text-listener/src/inputhook"
	"text-listener/src/logutil"
	"text-listener/src/notification"
	"text-listener/src/runtimeinit"
	"text-listener/src/selection"
	"text-listener/src/session"
	"text-listener/src/singleinstance"
	"text-listener/src/tray"
)

var errNoResident = errors.New("text-listener is not running")

type mainOptions struct {
	noTray    bool
	envPath   string
	prefsPath string
	verbose   bool
}

// residentClient is the part of singleinstance.Client the commands use.
type residentClient interface {
	Send(ctx context.Context, req singleinstance.Request) (bool, string, error)
}

func init() {
	// The tray needs the main OS thread on macOS.
	runtime.LockOSThread()
}

func main() {
	if err := runWithArgs(normalizeLegacyArgs(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"text-listener"}
	}
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "text-listener",
		Short:         "Read the selected text aloud",
		Long:          "Runs the resident that reads selected text aloud. Subcommands control a running resident.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResident(*opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.envPath, "env", "", "Path to the .env configuration file")
	cmd.PersistentFlags().StringVar(&opts.prefsPath, "prefs", "", "Path to the preferences file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log to stderr")
	cmd.Flags().BoolVar(&opts.noTray, "no-tray", false, "Run without the tray menu")

	cmd.AddCommand(
		newReadCmd(opts),
		newControlCmd(opts, singleinstance.ActionStop, "stop", "Stop speaking"),
		newControlCmd(opts, singleinstance.ActionPause, "pause", "Pause speech"),
		newControlCmd(opts, singleinstance.ActionResume, "resume", "Resume paused speech"),
		newControlCmd(opts, singleinstance.ActionStatus, "status", "Print the resident's status"),
		newShortcutCmd(opts),
	)
	return cmd
}

func newReadCmd(opts *mainOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read",
		Short: "Read the current selection aloud",
		Long:  "Asks the running resident to read the selection; without a resident, reads it once and exits when speech ends.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := prepareCLI(*opts)
			return handleReadWithDelegation(cmd.Context(), singleinstance.NewClient(ports(cfg)), func() error {
				return runStandaloneRead(*opts)
			})
		},
	}
}

func newControlCmd(opts *mainOptions, action singleinstance.Action, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := prepareCLI(*opts)
			return runControl(cmd, singleinstance.NewClient(ports(cfg)), singleinstance.Request{Action: action})
		},
	}
}

func newShortcutCmd(opts *mainOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "shortcut <combo>",
		Short:   "Rebind the read shortcut",
		Long:    "Rebinds the running resident's read shortcut, e.g. \"Ctrl+Alt+R\", and saves it to the preferences file.",
		Example: "  text-listener shortcut Ctrl+Alt+R",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := hotkey.Parse(args[0])
			if err != nil {
				return err
			}
			cfg := prepareCLI(*opts)
			req := singleinstance.Request{Action: singleinstance.ActionShortcut, Arg: s.Combo()}
			return runControl(cmd, singleinstance.NewClient(ports(cfg)), req)
		},
	}
}

func runControl(cmd *cobra.Command, client residentClient, req singleinstance.Request) error {
	reply, err := delegate(cmd.Context(), client, req)
	if err != nil {
		return err
	}
	if reply != "" {
		fmt.Fprintln(cmd.OutOrStdout(), reply)
	}
	return nil
}

// prepareCLI loads the configuration for the delegation scan and keeps CLI
// output clean unless verbose.
func prepareCLI(opts mainOptions) *config.Config {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if opts.verbose {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}
	cfg, _ := config.LoadWithOptions(loadOptions(opts))
	return cfg
}

// ports is the control port range from cfg.
func ports(cfg *config.Config) singleinstance.PortRange {
	if cfg == nil {
		return singleinstance.PortRange{Start: config.DefaultPortStart, End: config.DefaultPortEnd}
	}
	return singleinstance.PortRange{Start: cfg.PortStart, End: cfg.PortEnd}
}

func delegate(ctx context.Context, client residentClient, req singleinstance.Request) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	delegated, reply, err := client.Send(ctx, req)
	if !delegated {
		return "", errNoResident
	}
	if err != nil {
		return "", fmt.Errorf("resident: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// handleReadWithDelegation prefers the resident and falls back to a
// standalone read when none answers.
func handleReadWithDelegation(ctx context.Context, client residentClient, fallback func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	delegated, _, err := client.Send(ctx, singleinstance.Request{Action: singleinstance.ActionRead})
	switch {
	case delegated && err != nil:
		return fmt.Errorf("resident: %w", err)
	case delegated:
		log.Printf("Delegated to resident")
		return nil
	case err != nil:
		log.Printf("Delegation error: %v; falling back to standalone", err)
	default:
		log.Printf("No resident detected, running standalone")
	}
	return fallback()
}

func runStandaloneRead(opts mainOptions) error {
	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:  loadOptions(opts),
		SetupLogging: setupLogging(opts),
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	capturer := selection.NewCapturer(rt.Source, rt.Clipboard)
	_, err = session.Execute(ctx, session.Options{
		Text: func() (string, error) {
			c, err := capturer.Capture("")
			return c.Text, err
		},
		Backend: rt.Backend,
		Rate:    rt.Config.SpeechRate,
		Target:  session.NotifyTarget{},
	})
	if errors.Is(err, session.ErrInterrupted) && ctx.Err() != nil {
		return nil
	}
	return err
}

func runResident(opts mainOptions) error {
	enableDPIAwareness()

	// Load the configuration early for the port range of the pre-flight scan.
	cfg, _ := config.LoadWithOptions(loadOptions(opts))
	preflight, cancelPreflight := context.WithTimeout(context.Background(), time.Second)
	port, running := ports(cfg).FindResident(preflight)
	cancelPreflight()
	if running {
		return fmt.Errorf("resident already running on port %d", port)
	}

	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:  loadOptions(opts),
		SetupLogging: setupLogging(opts),
	})
	if err != nil {
		notification.ShowError("Failed to start", err.Error())
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := singleinstance.NewServer(ports(rt.Config))
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to claim the control port: %w", err)
	}
	defer srv.Close()

	var loop *eventloop.Loop
	var tr *tray.Tray
	var observer eventloop.Observer
	if !opts.noTray {
		tr = tray.New(tray.Config{
			Shortcut: rt.Shortcut.String(),
			Post:     func(c eventloop.Command) bool { return loop.Post(c) },
			OnExit:   cancel,
		})
		observer = tr
	}

	matcher := hotkey.NewMatcher(rt.Shortcut)
	loop = eventloop.New(eventloop.Options{
		Source:    rt.Source,
		Clipboard: rt.Clipboard,
		Backend:   rt.Backend,
		Prefs:     rt.Prefs,
		Observer:  observer,
		Notify:    notification.ShowError,
		Shortcut:  matcher,
		AutoRead:  rt.Config.AutoReadOnSelection,
		Rate:      rt.Config.SpeechRate,
	})

	startInput(ctx, loop, matcher)
	go eventloop.ServeRemote(ctx, srv, loop)

	// Handle SIGINT/SIGTERM
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-ch:
			log.Printf("Received %v, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Printf("%s started on port %d", notification.AppName, srv.Port())
	if tr == nil {
		return ignoreCanceled(loop.Run(ctx))
	}

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(ctx)
		tr.Quit()
	}()
	tr.Run()
	cancel()
	return ignoreCanceled(<-loopDone)
}

// startInput feeds pointer transitions to the loop and turns shortcut
// presses into manual reads. The loop may rebind matcher at runtime.
func startInput(ctx context.Context, loop *eventloop.Loop, matcher *hotkey.Matcher) {
	ok := inputhook.Start(ctx, inputhook.Handlers{
		OnPointer: loop.PointerChanged,
		OnKey: func(ev gohook.Event) {
			if matcher.Feed(ev) {
				log.Printf("Shortcut %s pressed", matcher.Shortcut().Combo())
				// Never block the hook goroutine on the loop.
				go loop.Post(eventloop.ReadSelection{})
			}
		},
	})
	if !ok {
		log.Printf("Input hook unavailable; shortcut and pointer tracking disabled")
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func loadOptions(opts mainOptions) config.LoadOptions {
	return config.LoadOptions{
		EnvPathOverride:   opts.envPath,
		PrefsPathOverride: opts.prefsPath,
	}
}

func setupLogging(opts mainOptions) func(bool) {
	return func(enableFileLogging bool) {
		logutil.Setup(enableFileLogging)
		if opts.verbose {
			log.SetOutput(os.Stderr)
		}
	}
}

// normalizeLegacyArgs maps single-dash long flags (-no-tray) to the
// GNU form cobra expects.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"no-tray", "env", "prefs", "verbose"} {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "-" + arg
			}
		}
	}

	return normalized
}
