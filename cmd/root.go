package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/linkedin-connector/internal/config"
	"github.com/yourusername/linkedin-connector/internal/cookies"
	"github.com/yourusername/linkedin-connector/internal/logger"
	"github.com/yourusername/linkedin-connector/internal/storage"
)

// app holds what every subcommand needs once the root command has run
type app struct {
	cfgPath string
	quiet   bool
	cfg     *config.Config
	log     *zap.SugaredLogger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "linkedin-connector",
		Short:         "Send LinkedIn connection requests and follows through a real browser session",
		Version:       AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "config file (default is "+config.DefaultPath+")")
	root.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "do not print the warning banner")

	root.AddCommand(
		newRunCmd(a),
		newVerifyCmd(a),
		newBatchCmd(a),
		newHistoryCmd(a),
	)

	return root
}

// init loads configuration and builds the process logger
func (a *app) init() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return err
	}

	err = logger.Init(logger.Options{
		Level:      cfg.Logging.Level,
		ToFile:     cfg.Logging.ToFile,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return err
	}

	a.cfg = cfg
	a.log = logger.Get()
	return nil
}

// banner prints the warning unless --quiet was given
func (a *app) banner() {
	if !a.quiet {
		displayWarningBanner(os.Stderr)
	}
}

// signalContext is canceled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openStore opens the result history database
func (a *app) openStore() (*storage.Store, error) {
	a.log.Debugw("Opening result history", "path", a.cfg.Database.Path)
	store, err := storage.Open(a.cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open result history: %w", err)
	}
	return store, nil
}

func newRunID() string {
	return uuid.NewString()
}

// sessionFlags are the per-invocation overrides of the session section
type sessionFlags struct {
	cookiesFile string
	token       string
	userAgent   string
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.cookiesFile, "cookies-file", "", "file holding the exported cookie blob (JSON or base64 JSON)")
	cmd.Flags().StringVar(&f.token, "token", "", "li_at session token (default $LI_AT)")
	cmd.Flags().StringVar(&f.userAgent, "user-agent", "", "user agent the session was created with")
}

// resolveSession builds the session bundle from flags, then the environment, then config.
// An empty session is returned as is; the runner reports it as a setup failure.
func resolveSession(cfg config.SessionConfig, f sessionFlags) (cookies.Session, error) {
	s := cookies.Session{
		PrimaryToken: firstNonEmpty(f.token, os.Getenv("LI_AT"), cfg.PrimaryToken),
		UserAgent:    firstNonEmpty(f.userAgent, cfg.UserAgent),
	}

	if path := firstNonEmpty(f.cookiesFile, cfg.CookiesFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return s, fmt.Errorf("failed to read cookies file: %w", err)
		}
		s.FullCookies = strings.TrimSpace(string(data))
	}

	return s, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
