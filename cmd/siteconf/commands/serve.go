package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/siteconf/cmd"
	"github.com/thoreinstein/siteconf/internal/backup"
	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/snapshot"
	"github.com/thoreinstein/siteconf/internal/web"
)

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the snapshot HTTP API",
	Long: `Serve exposes export, import, reset, restore and history over HTTP and
runs the periodic history maintenance until interrupted.

Requests authenticate with a bearer credential from 'siteconf token
--credential'. Each mutating request also carries a single-use action
token obtained from GET /tokens/{action}. security.secret must be set.

When the history was last written by a different version, a
before_upgrade snapshot is recorded on startup.`,
	Example: `  # Serve on the configured address
  siteconf serve

  # Serve on another port
  siteconf serve --addr 127.0.0.1:9090

  See Also: siteconf token`,
	Args: cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, c.OutOrStdout(), serveAddr)
	},
}

func runServe(ctx context.Context, w io.Writer, addr string) error {
	cfg := currentConfig()
	if err := requireSecret(cfg); err != nil {
		return err
	}

	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	if _, err := captureBeforeUpgrade(ctx, sess.manager, cmd.Version); err != nil {
		return errors.NewSystemError(err, "")
	}

	if addr == "" {
		addr = cfg.Server.Addr
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg.Go(func() {
		sess.manager.RunMaintenance(ctx, cfg.Maintenance.Interval)
	})

	fmt.Fprintf(w, "Serving snapshot API on http://%s\n", addr)
	srv := web.NewServer(sess.manager, sess.signer, web.WithLogger(sess.logger))
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return errors.NewSystemError(err, "Check that the listen address is free")
	}
	return nil
}

// captureBeforeUpgrade records a before_upgrade snapshot when the newest
// history entry was written by another version. An empty history means a
// fresh install and records nothing.
func captureBeforeUpgrade(ctx context.Context, m *backup.Manager, version string) (*snapshot.Snapshot, error) {
	history, err := m.History(ctx)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 || history[len(history)-1].SchemaVersion == version {
		return nil, nil
	}
	return backup.NewTrigger(m).BeforeUpgrade(ctx, version)
}
