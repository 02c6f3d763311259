// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package monitor keeps best-effort associations between PDF resources seen
// in the browser and the tabs or pages they came from.
//
// The monitor records URL to tab id associations from navigation events and
// URL to referrer associations from completed downloads. Entries are
// overwritten on repeated sightings and never deleted; they live for the
// lifetime of the process. When a session tab is registered, every sighting
// is announced to it asynchronously.
package monitor

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/conc"

	"github.com/pdiddy/curation-engine/internal/browser"
	"github.com/pdiddy/curation-engine/pkg/types"
)

// ActionPDFDetected is the notification action delivered to the session tab.
const ActionPDFDetected = "pdfDetected"

// blobFilename is announced for blob: URLs, which carry no file name.
const blobFilename = "document.pdf"

// notifyTimeout bounds a single notification delivery.
var notifyTimeout = 5 * time.Second

// Notifier delivers a message into a browser tab.
type Notifier interface {
	Notify(ctx context.Context, tabID int, msg types.PDFDetected) error
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithKeepOnDeliveryFailure keeps the session tab registered when a
// notification cannot be delivered because the tab is gone. Failures are
// then only logged.
func WithKeepOnDeliveryFailure() Option {
	return func(m *Monitor) { m.keepOnFailure = true }
}

// Monitor is the passive PDF monitor. It is safe for concurrent use.
type Monitor struct {
	notifier      Notifier
	logger        *log.Logger
	keepOnFailure bool

	mu         sync.RWMutex
	tabs       map[string]int
	referrers  map[string]string
	session    int
	hasSession bool

	pending conc.WaitGroup
}

// New creates a Monitor. notifier may be nil, in which case sightings are
// recorded but never announced.
func New(notifier Notifier, logger *log.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = log.Default()
	}
	m := &Monitor{
		notifier:  notifier,
		logger:    logger.WithPrefix("monitor"),
		tabs:      make(map[string]int),
		referrers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsPDFNavigation reports whether a navigated URL should be tracked: it ends
// in ".pdf" (case-insensitive) or uses the blob: scheme.
func IsPDFNavigation(url string) bool {
	return strings.HasSuffix(strings.ToLower(url), ".pdf") || strings.HasPrefix(url, "blob:")
}

// IsPDFDownload reports whether a completed download looks like a PDF by
// MIME type, file name, or URL.
func IsPDFDownload(ev types.DownloadEvent) bool {
	return strings.EqualFold(ev.MIME, "application/pdf") ||
		strings.HasSuffix(strings.ToLower(ev.Filename), ".pdf") ||
		strings.HasSuffix(strings.ToLower(ev.URL), ".pdf")
}

// ObserveNavigation records a tab navigation. It returns true when the URL
// was tracked.
func (m *Monitor) ObserveNavigation(ctx context.Context, tabID int, url string) bool {
	if url == "" || !IsPDFNavigation(url) {
		return false
	}

	m.mu.Lock()
	m.tabs[url] = tabID
	m.mu.Unlock()

	m.logger.Debug("pdf navigation", "url", url, "tab", tabID)
	m.announce(ctx, types.PDFDetected{
		Action:   ActionPDFDetected,
		URL:      url,
		Filename: navigationFilename(url),
	})
	return true
}

// ObserveDownload records a completed download. It returns true when the
// download looked like a PDF.
func (m *Monitor) ObserveDownload(ctx context.Context, ev types.DownloadEvent) bool {
	if ev.URL == "" || !IsPDFDownload(ev) {
		return false
	}

	if ev.Referrer != "" {
		m.mu.Lock()
		m.referrers[ev.URL] = ev.Referrer
		m.mu.Unlock()
	}

	m.logger.Debug("pdf download", "url", ev.URL, "referrer", ev.Referrer)
	m.announce(ctx, types.PDFDetected{
		Action:   ActionPDFDetected,
		URL:      ev.URL,
		Filename: downloadFilename(ev.Filename),
	})
	return true
}

// TabFor returns the tab id most recently associated with url.
func (m *Monitor) TabFor(url string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.tabs[url]
	return id, ok
}

// ReferrerFor returns the referrer recorded for a downloaded url.
func (m *Monitor) ReferrerFor(url string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ref, ok := m.referrers[url]
	return ref, ok
}

// RegisterSessionTab makes tabID the delivery target for notifications.
// A newer registration replaces an older one.
func (m *Monitor) RegisterSessionTab(tabID int) {
	m.mu.Lock()
	m.session = tabID
	m.hasSession = true
	m.mu.Unlock()
	m.logger.Info("session tab registered", "tab", tabID)
}

// SessionTab returns the registered session tab, if any.
func (m *Monitor) SessionTab() (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session, m.hasSession
}

// Wait blocks until all in-flight notifications have finished.
func (m *Monitor) Wait() {
	m.pending.Wait()
}

// announce delivers msg to the session tab in the background. Delivery
// failures are never retried.
func (m *Monitor) announce(ctx context.Context, msg types.PDFDetected) {
	tabID, ok := m.SessionTab()
	if !ok || m.notifier == nil {
		return
	}

	base := context.WithoutCancel(ctx)
	m.pending.Go(func() {
		ctx, cancel := context.WithTimeout(base, notifyTimeout)
		defer cancel()

		err := m.notifier.Notify(ctx, tabID, msg)
		if err == nil {
			return
		}
		m.logger.Warn("failed to notify session tab", "tab", tabID, "url", msg.URL, "err", err)

		if m.keepOnFailure || !errors.Is(err, browser.ErrTabGone) {
			return
		}
		m.clearSession(tabID)
	})
}

// clearSession unregisters tabID unless a newer registration replaced it.
func (m *Monitor) clearSession(tabID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasSession && m.session == tabID {
		m.hasSession = false
		m.session = 0
		m.logger.Info("session tab unregistered", "tab", tabID)
	}
}

func navigationFilename(url string) string {
	if strings.HasPrefix(url, "blob:") {
		return blobFilename
	}
	return url[strings.LastIndex(url, "/")+1:]
}

func downloadFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if name == "" {
		return ""
	}
	return path.Base(name)
}
