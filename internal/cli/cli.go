// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/jeranaias/proxima-tui/internal/config"
	"github.com/jeranaias/proxima-tui/internal/server"
	"github.com/jeranaias/proxima-tui/internal/storage"
	"github.com/jeranaias/proxima-tui/internal/ui"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// ErrNotATerminal is returned when the TUI is started without a terminal.
var ErrNotATerminal = errors.New("the TUI needs a terminal; use 'proxima repl' or 'proxima dump' instead")

// shutdownTimeout bounds draining the development backend.
const shutdownTimeout = 5 * time.Second

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	server     string
	pseudonym  string
	noStream   bool
}

// =============================================================================
// COMMAND TREE
// =============================================================================

// NewRootCommand builds the command tree. Running the root command starts
// the TUI.
func NewRootCommand() *cobra.Command {
	f := &globalFlags{}
	root := &cobra.Command{
		Use:           "proxima",
		Short:         "Proxima - chat client with optimistic sync",
		Long:          `Proxima is a terminal chat client. Chats, tags, access modes and configurations are created locally first and reconciled with the backend.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// glog reads its flags from the standard set.
			_ = flag.CommandLine.Parse(nil)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, f)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "config file (default ~/.proxima/config.toml)")
	pf.StringVar(&f.server, "server", "", "backend URL, overrides client.server_url")
	pf.StringVar(&f.pseudonym, "pseudonym", "", "pseudonym to log in with")
	pf.BoolVar(&f.noStream, "no-stream", false, "wait for whole replies instead of streaming")
	pf.AddGoFlagSet(flag.CommandLine)

	root.AddCommand(
		newServeCommand(f),
		newDumpCommand(f),
		newREPLCommand(f),
		newConfigCommand(f),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	defer glog.Flush()
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleError(err))
		return 1
	}
	return 0
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(f *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFromPath(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if f.server != "" {
		cfg.Client.ServerURL = f.server
	}
	if f.pseudonym != "" {
		cfg.Client.Pseudonym = f.pseudonym
	}
	if f.noStream {
		cfg.Client.Stream = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// path returns the config file in use.
func (f *globalFlags) path() (string, error) {
	if f.configPath != "" {
		return f.configPath, nil
	}
	return config.ConfigPath()
}

// =============================================================================
// TUI
// =============================================================================

func runTUI(cmd *cobra.Command, f *globalFlags) error {
	if !DetectTerminal().CanRunTUI() {
		return ErrNotATerminal
	}
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	c, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	c.listen(ctx)

	m := ui.New(ctx, c.sess, ui.Options{
		Stream:         cfg.Client.Stream,
		ServerURL:      cfg.Client.ServerURL,
		Device:         c.client.DeviceID(),
		OpTimeout:      cfg.RequestTimeout(),
		MarkdownStyle:  cfg.UI.Theme,
		CodeStyle:      cfg.UI.CodeStyle,
		ShowTimestamps: cfg.UI.ShowTimestamps,
	})
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// =============================================================================
// SERVE
// =============================================================================

func newServeCommand(f *globalFlags) *cobra.Command {
	var addr, dbPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the development backend",
		Long:  `Serve runs the development backend: sqlite storage, token auth, the echo AI endpoint and the push channel.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if dbPath != "" {
				cfg.Server.DBPath = dbPath
			}
			return runServe(cmd.Context(), f, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite file, overrides server.db_path")
	return cmd
}

func runServe(ctx context.Context, f *globalFlags, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := server.NewServer(store, server.Options{
		Secret:      cfg.Secret(),
		TokenTTL:    cfg.TokenTTL(),
		StreamDelay: cfg.StreamDelay(),
		RateLimiter: server.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst),
	})

	if path, err := f.path(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := config.Watch(ctx, path, func(next *config.Config) {
				glog.Infof("[cli] stream delay now %v", next.StreamDelay())
				srv.SetStreamDelay(next.StreamDelay())
			}); err != nil {
				glog.Warningf("[cli] not watching %s: %v", path, err)
			}
		}
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Start(cfg.Server.Addr) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}

// =============================================================================
// DUMP
// =============================================================================

func newDumpCommand(f *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the server's ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			c, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			snap := c.store.Snapshot()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snap.DB)
			}
			_, err = fmt.Fprintln(out, snap.Dump())
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the ledger as JSON")
	return cmd
}

// =============================================================================
// REPL
// =============================================================================

func newREPLCommand(f *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Chat from a line-oriented prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			c, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			if cfg.Client.Stream {
				c.listen(ctx)
			}

			in := NewChatCLI()
			defer in.Close()
			r := &repl{
				conn:   c,
				in:     in,
				out:    cmd.OutOrStdout(),
				md:     newMarkdown(DetectTerminal(), cfg.UI.Theme),
				stream: cfg.Client.Stream,
				quiet:  QuietPeriod,
			}
			return r.run(ctx)
		},
	}
}

// =============================================================================
// CONFIG
// =============================================================================

func newConfigCommand(f *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), cfg.String())
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := f.path()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.SaveTOML(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote "+path)
			return nil
		},
	})
	return cmd
}
