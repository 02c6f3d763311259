// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pdiddy/curation-engine/internal/acquire"
	"github.com/pdiddy/curation-engine/internal/analyzer"
	"github.com/pdiddy/curation-engine/internal/browser"
	"github.com/pdiddy/curation-engine/internal/monitor"
	"github.com/pdiddy/curation-engine/internal/orchestrator"
	"github.com/pdiddy/curation-engine/internal/registry"
	"github.com/pdiddy/curation-engine/internal/secrets"
	"github.com/pdiddy/curation-engine/internal/settings"
	"github.com/pdiddy/curation-engine/pkg/types"
)

// engine holds the components shared by the subcommands.
type engine struct {
	cfg        types.EngineConfig
	store      *settings.Store
	reconciler *registry.Reconciler
	analyzer   *analyzer.Client
	monitor    *monitor.Monitor
	host       *browser.Host
	chain      *acquire.Chain
}

// storedKey reads the Scopus key from the settings store and falls back to
// the .secrets/ file.
type storedKey struct {
	store *settings.Store
}

func (k storedKey) APIKey(ctx context.Context) (string, error) {
	v, err := k.store.APIKey(ctx)
	if err != nil {
		return "", err
	}
	return secrets.Value(loadedSecrets, secrets.KeyScopusAPIKey, v), nil
}

// newEngine opens the settings store and builds the registry and analysis
// clients. host may be nil; the tab strategy and browser cookies are then
// unavailable.
func newEngine(ctx context.Context, cfg types.EngineConfig, host *browser.Host) (*engine, error) {
	store, err := settings.Open(cfg.Settings)
	if err != nil {
		return nil, err
	}

	if cfg.Registry.Email == "" {
		stored, _, err := store.Get(ctx, settings.KeyContactEmail)
		if err != nil {
			store.Close()
			return nil, err
		}
		cfg.Registry.Email = secrets.Value(loadedSecrets, secrets.KeyContactEmail, stored)
	}
	if cfg.Registry.Email == "" {
		logger.Warn("no contact email configured; open-access lookups will fail",
			"fix", "curation-engine settings set "+settings.KeyContactEmail+" <address>")
	}

	client := registry.New(cfg.Registry, registry.WithLogger(logger))
	e := &engine{
		cfg:        cfg,
		store:      store,
		reconciler: registry.NewReconciler(client, storedKey{store: store}, cfg.Registry.Institutions, logger),
		analyzer:   analyzer.New(cfg.Analyzer, analyzer.WithLogger(logger)),
		host:       host,
	}

	var notifier monitor.Notifier
	if host != nil {
		notifier = host
	}
	e.monitor = monitor.New(notifier, logger)

	opts := []acquire.Option{acquire.WithAssociations(e.monitor), acquire.WithLogger(logger)}
	if host != nil {
		opts = append(opts, acquire.WithTabHost(host), acquire.WithCookies(host))
	}
	e.chain = acquire.New(e.analyzer, cfg.Acquisition, opts...)
	return e, nil
}

// orchestrator builds the RPC dispatcher over the engine's components.
func (e *engine) orchestrator() *orchestrator.Orchestrator {
	opts := []orchestrator.Option{
		orchestrator.WithSession(e.monitor),
		orchestrator.WithHTTPClient(&http.Client{Timeout: e.cfg.Acquisition.Timeout}),
		orchestrator.WithUserAgent(e.cfg.Acquisition.UserAgent),
		orchestrator.WithSearch(e.cfg.Search),
		orchestrator.WithLogger(logger),
	}
	if e.host != nil {
		opts = append(opts, orchestrator.WithCookies(e.host), orchestrator.WithTabResolver(e.host))
	}
	return orchestrator.New(e.reconciler, e.chain, e.analyzer, opts...)
}

func (e *engine) Close() error {
	e.monitor.Wait()
	if err := e.store.Close(); err != nil {
		return fmt.Errorf("closing settings: %w", err)
	}
	return nil
}

// connectBrowser attaches to the configured browser, or returns nil when
// none is configured.
func connectBrowser(ctx context.Context, cfg types.BrowserConfig) (*browser.Host, error) {
	if cfg.ControlURL == "" && !cfg.Launch {
		return nil, nil
	}
	return browser.Connect(ctx, cfg, logger)
}
