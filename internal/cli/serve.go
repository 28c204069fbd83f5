package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/storyindex/internal/search"
	"github.com/mvp-joe/storyindex/internal/server"
	"github.com/mvp-joe/storyindex/internal/storyindex"
	"github.com/mvp-joe/storyindex/internal/watcher"
)

var (
	serveAddr  string
	serveWatch bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve index.json over HTTP",
	Long: `Serve answers GET /index.json, /stories.json, /search and the /events
invalidation stream. With --watch, story files are re-extracted as they
change and subscribers of /events are told to refetch.

Send SIGHUP to re-discover the story files without restarting.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default is server.addr from config)")
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "watch story files for changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cmd.ErrOrStderr())
	p, err := loadProject()
	if err != nil {
		return err
	}

	gen := p.generator(logger, nil)
	if err := initialize(ctx, gen, logger); err != nil {
		return err
	}

	searcher, err := search.New(gen)
	if err != nil {
		return err
	}
	defer searcher.Close()

	srv, err := server.New(gen, server.Options{Logger: logger, Searcher: searcher})
	if err != nil {
		return err
	}
	defer srv.Close()

	if serveWatch {
		if err := startWatching(ctx, p, gen, srv.Notify, logger); err != nil {
			return err
		}
	}

	addr := serveAddr
	if addr == "" {
		addr = p.cfg.Server.Addr
	}
	return srv.ListenAndServe(ctx, addr, func(a net.Addr) {
		if !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Serving story index on http://%s/index.json\n", a)
		}
	})
}

// startWatching runs a watcher coordinator until ctx is done and rescans on
// SIGHUP.
func startWatching(ctx context.Context, p *project, gen *storyindex.Generator, notify func(), logger *slog.Logger) error {
	fw, err := watcher.New(p.watchDirs(), watcher.Options{
		Debounce: p.cfg.Debounce(),
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	coord := watcher.NewCoordinator(fw, gen, notify, logger)

	go func() {
		if err := coord.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("file watcher stopped", "error", err)
		}
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				logger.Info("rescanning story files")
				if err := coord.Rescan(ctx); err != nil {
					logger.Warn("rescan failed", "error", err)
				}
			}
		}
	}()
	return nil
}
