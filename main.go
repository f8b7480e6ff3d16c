package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lvcoi/ytdlp-picker/internal/app"
	"github.com/lvcoi/ytdlp-picker/internal/config"
	"github.com/lvcoi/ytdlp-picker/internal/downloader"
	"github.com/lvcoi/ytdlp-picker/internal/formats"
	"github.com/lvcoi/ytdlp-picker/internal/updater"
)

var version = "dev"

type options struct {
	configPath    string
	ytdlpPath     string
	outputDir     string
	policy        string
	timeout       time.Duration
	logLevel      string
	backend       string
	quiet         bool
	tui           bool
	noUpdateCheck bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !downloader.IsReported(err) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(downloader.ExitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "ytdlp-picker [url...]",
		Short: "Pick yt-dlp formats for videos and playlists, then download them",
		Long: "Without arguments ytdlp-picker prompts for URLs until the input ends.\n" +
			"Playlists are reconciled round by round so every video gets a format it supports.",
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			// Unblock a pending prompt on interrupt.
			stopClose := context.AfterFunc(ctx, func() { _ = os.Stdin.Close() })
			defer stopClose()
			return newSession(cfg, opts).Run(ctx, args)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default "+config.Path()+")")
	flags.StringVar(&opts.ytdlpPath, "ytdlp", "", "yt-dlp executable")
	flags.StringVarP(&opts.outputDir, "output", "o", "", "output directory")
	flags.StringVarP(&opts.policy, "policy", "p", "", "format policy: general, universal, smallest or all")
	flags.DurationVar(&opts.timeout, "timeout", 0, "bound for each metadata fetch")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.backend, "playlist-backend", "", "playlist listing: ytdlp or native")
	flags.BoolVar(&opts.quiet, "quiet", false, "suppress progress output (errors still shown)")
	flags.BoolVar(&opts.tui, "tui", false, "pick formats in a full-screen list")
	flags.BoolVar(&opts.noUpdateCheck, "no-update-check", false, "skip the yt-dlp version check")

	root.AddCommand(newFormatsCmd(opts), newCheckCmd(opts), newConfigCmd(opts))
	return root
}

func newFormatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "formats <url>",
		Short: "List the candidate formats of a video and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return newSession(cfg, opts).ListFormats(cmd.Context(), args[0], cmd.OutOrStdout())
		},
	}
}

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Compare the installed yt-dlp with its latest release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			res, err := newChecker(cfg, newClient(cfg)).Check(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "yt-dlp %s, latest %s: %s\n", orNone(res.Current), orNone(res.Latest), res.Status)
			if err != nil {
				return downloader.CategorizedError{Category: downloader.CategoryNetwork, Err: err}
			}
			return nil
		},
	}
}

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", configPath(opts), out)
			return nil
		},
	}, &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), configPath(opts))
		},
	})
	return cmd
}

func configPath(opts *options) string {
	if opts.configPath != "" {
		return opts.configPath
	}
	return config.Path()
}

// loadConfig layers flags over the environment, the file and the defaults.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, downloader.CategorizedError{Category: downloader.CategoryInput, Err: err}
	}
	flags := cmd.Flags()
	if flags.Changed("ytdlp") {
		cfg.YtdlpPath = opts.ytdlpPath
	}
	if flags.Changed("output") {
		cfg.OutputDir = opts.outputDir
	}
	if flags.Changed("policy") {
		cfg.Policy = opts.policy
	}
	if flags.Changed("timeout") {
		cfg.FetchTimeout = opts.timeout
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("playlist-backend") {
		cfg.PlaylistBackend = opts.backend
	}
	if flags.Changed("tui") {
		cfg.TUI = opts.tui
	}
	if opts.noUpdateCheck {
		cfg.CheckUpdates = false
	}
	if err := cfg.Validate(); err != nil {
		return cfg, downloader.CategorizedError{Category: downloader.CategoryInput, Err: err}
	}
	return cfg, nil
}

func newClient(cfg config.Config) *downloader.Client {
	return &downloader.Client{Path: cfg.YtdlpPath, Timeout: cfg.FetchTimeout}
}

func newChecker(cfg config.Config, client *downloader.Client) *updater.Checker {
	return &updater.Checker{
		Current:    client.Version,
		Token:      cfg.GitHubToken,
		HTTPClient: downloader.NewHTTPClient(cfg.FetchTimeout),
		Timeout:    cfg.FetchTimeout,
	}
}

func newSession(cfg config.Config, opts *options) *app.Session {
	level, _ := downloader.ParseLogLevel(cfg.LogLevel)
	printer := downloader.NewPrinter(downloader.PrinterOptions{Quiet: opts.quiet, LogLevel: level})
	client := newClient(cfg)

	var playlists app.PlaylistSource = client
	if cfg.PlaylistBackend == config.BackendNative {
		playlists = &downloader.NativePlaylistSource{
			HTTPClient: downloader.NewHTTPClient(cfg.FetchTimeout),
			Timeout:    cfg.FetchTimeout,
		}
	}

	prompter := downloader.NewPrompter(os.Stdin, os.Stderr)
	var chooser app.Chooser = &downloader.LineChooser{Prompter: prompter, Out: os.Stderr}
	if cfg.TUI && term.IsTerminal(int(os.Stdin.Fd())) {
		chooser = downloader.TUIChooser{}
	}

	orchestrator := &downloader.Orchestrator{
		Fetcher:          client,
		Printer:          printer,
		OutputDir:        cfg.OutputDir,
		ProgressInterval: cfg.ProgressInterval,
	}
	if cfg.VerifyMerge {
		orchestrator.Verifier = downloader.NewProbeVerifier(cfg.FetchTimeout)
	}

	session := &app.Session{
		Formats:   client,
		Playlists: playlists,
		Chooser:   chooser,
		Downloads: orchestrator,
		Input:     prompter,
		Printer:   printer,
		Policy:    formats.Policy(cfg.Policy),
	}
	if cfg.CheckUpdates {
		session.Updates = newChecker(cfg, client)
	}
	return session
}

func orNone(s string) string {
	if s == "" {
		return "(unknown)"
	}
	return s
}
