// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"github.com/pdiddy/curation-engine/internal/browser"
	"github.com/pdiddy/curation-engine/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the RPC endpoint used by the curation form",
	Long: `Attach to the curator's browser, watch it for PDF navigations and
downloads, and serve the RPC endpoint on server.addr until interrupted.

The browser is reached through browser.control_url (a DevTools websocket
URL) or launched locally when browser.launch is set. With --no-browser the
tab strategy, browser cookies and PDF detection are disabled.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().String("browser-url", "", "DevTools websocket URL (overrides browser.control_url)")
	serveCmd.Flags().Bool("no-browser", false, "serve without a browser connection")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if u, _ := cmd.Flags().GetString("browser-url"); u != "" {
		cfg.Browser.ControlURL = u
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var host *browser.Host
	if noBrowser, _ := cmd.Flags().GetBool("no-browser"); !noBrowser {
		host, err = connectBrowser(ctx, cfg.Browser)
		if err != nil {
			return err
		}
		if host == nil {
			logger.Warn("no browser configured; tab acquisition and PDF detection are disabled")
		} else {
			defer host.Close()
		}
	}

	eng, err := newEngine(ctx, cfg, host)
	if err != nil {
		return err
	}
	defer eng.Close()
	logger.Info("settings store", "path", eng.store.Path())

	var wg conc.WaitGroup
	if host != nil {
		wg.Go(func() {
			if err := host.Watch(ctx, eng.monitor); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("browser event stream ended", "err", err)
			}
		})
	}

	srv := server.New(cfg.Server, eng.orchestrator(), logger)
	err = srv.Run(ctx)
	stop()
	wg.Wait()
	if err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}
