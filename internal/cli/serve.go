package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cashapp/redwood-sub006/internal/config"
	"github.com/cashapp/redwood-sub006/internal/engine"
	"github.com/cashapp/redwood-sub006/internal/schema"
	"github.com/cashapp/redwood-sub006/internal/store"
	"github.com/cashapp/redwood-sub006/internal/transport"
	"github.com/cashapp/redwood-sub006/internal/widget"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen      string
	Database    string
	Schema      string
	HostVersion string
	Mismatch    string

	// onListen is called with the bound address once the listener is up.
	onListen func(addr net.Addr)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(rootOpts, nil)
}

func newServeCommand(rootOpts *RootOptions, onListen func(net.Addr)) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts, onListen: onListen}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host guest sessions over websockets",
		Long: `Start a Redwood host. Each websocket connection is one guest session
with its own host tree; batches are applied in order and journaled when a
database is configured.

Settings come from --config (TOML) and are overridden by flags.

Example:
  redwood serve --schema ./schema --db ./redwood.db --listen :8080
  redwood serve --config redwood.toml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "address to listen on (default from config, :8080)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (empty disables journaling)")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "schema directory")
	cmd.Flags().StringVar(&opts.HostVersion, "host-version", "", "protocol version announced to guests")
	cmd.Flags().StringVar(&opts.Mismatch, "mismatch", "", "schema mismatch policy (throw|log)")

	return cmd
}

// serveConfig loads the config file, if any, and applies flag overrides.
func serveConfig(opts *ServeOptions, cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}

	flags := cmd.Flags()
	abs := func(p string) string {
		if a, err := filepath.Abs(p); err == nil {
			return a
		}
		return p
	}
	if flags.Changed("listen") {
		cfg.Transport.Listen = opts.Listen
	}
	if flags.Changed("db") {
		cfg.Store.Path = ""
		if opts.Database != "" {
			cfg.Store.Path = abs(opts.Database)
		}
	}
	if flags.Changed("schema") {
		cfg.Host.SchemaDir = abs(opts.Schema)
	}
	if flags.Changed("host-version") {
		cfg.Host.Version = opts.HostVersion
	}
	if flags.Changed("mismatch") {
		cfg.Host.Mismatch = opts.Mismatch
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := serveConfig(opts, cmd)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))

	s, err := loadSchema(cfg.Resolve(cfg.Host.SchemaDir))
	if err != nil {
		return err
	}
	logger.Info("schema loaded", "schema", s.Name, "widgets", len(s.Widgets))

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if cfg.Store.Path != "" {
		path := cfg.Resolve(cfg.Store.Path)
		st, err := store.Open(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts, engine.WithJournal(st))
		logger.Info("journal ready", "path", path)
	}
	eng := engine.New(engineOpts...)

	mux := http.NewServeMux()
	mux.Handle(cfg.Transport.Path, transport.NewServer(eng, cfg.HostVersion(),
		sessionTrees(s, cfg.Host.Mismatch, logger),
		transport.WithServerLogger(logger),
	))

	ln, err := net.Listen("tcp", cfg.Transport.Listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Listening on ws://%s%s\n", ln.Addr(), cfg.Transport.Path)
	if opts.onListen != nil {
		opts.onListen(ln.Addr())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := eng.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	logger.Info("host stopped")
	return nil
}

// sessionTrees builds each session's host tree over a fresh widget list.
func sessionTrees(s *schema.Schema, policy string, logger *slog.Logger) transport.TreeFactory {
	return func(sessionID string) (engine.TreeConfig, error) {
		mismatch, err := mismatchHandler(policy, logger.With("session", sessionID))
		if err != nil {
			return engine.TreeConfig{}, err
		}
		return engine.TreeConfig{
			SchemaName: s.Name,
			Root:       widget.NewList(),
			Factory:    widget.NewFactory(s, widget.WithLogger(logger)),
			Mismatch:   mismatch,
		}, nil
	}
}
