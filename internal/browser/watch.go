// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod/lib/proto"

	"github.com/pdiddy/curation-engine/pkg/types"
)

// EventSink receives the browser activity the passive monitor cares about.
type EventSink interface {
	ObserveNavigation(ctx context.Context, tabID int, url string) bool
	ObserveDownload(ctx context.Context, ev types.DownloadEvent) bool
}

// Watch streams tab navigations and completed downloads into sink until
// ctx ends. Download behavior is left at the browser default; only event
// reporting is enabled.
func (h *Host) Watch(ctx context.Context, sink EventSink) error {
	b, err := h.client(ctx)
	if err != nil {
		return err
	}
	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(b); err != nil {
		return fmt.Errorf("enabling target discovery: %w", err)
	}
	if err := (proto.BrowserSetDownloadBehavior{
		Behavior:      proto.BrowserSetDownloadBehaviorBehaviorDefault,
		EventsEnabled: true,
	}).Call(b); err != nil {
		return fmt.Errorf("enabling download events: %w", err)
	}

	w := newWatcher(h.ids, sink)
	wait := b.EachEvent(
		func(ev *proto.TargetTargetCreated) { w.targetChanged(ctx, ev.TargetInfo) },
		func(ev *proto.TargetTargetInfoChanged) { w.targetChanged(ctx, ev.TargetInfo) },
		func(ev *proto.TargetTargetDestroyed) { w.targetDestroyed(string(ev.TargetID)) },
		func(ev *proto.BrowserDownloadWillBegin) {
			w.downloadBegan(ev.GUID, string(ev.FrameID), ev.URL, ev.SuggestedFilename)
		},
		func(ev *proto.BrowserDownloadProgress) {
			w.downloadProgress(ctx, ev.GUID, ev.State == proto.BrowserDownloadProgressStateCompleted,
				ev.State == proto.BrowserDownloadProgressStateCanceled)
		},
	)
	h.logger.Info("watching tabs and downloads")
	wait()
	return ctx.Err()
}

// watcher turns raw target and download events into sink calls.
type watcher struct {
	ids  *tabIDs
	sink EventSink

	mu        sync.Mutex
	urls      map[string]string
	downloads map[string]types.DownloadEvent
}

func newWatcher(ids *tabIDs, sink EventSink) *watcher {
	return &watcher{
		ids:       ids,
		sink:      sink,
		urls:      map[string]string{},
		downloads: map[string]types.DownloadEvent{},
	}
}

func (w *watcher) targetChanged(ctx context.Context, info *proto.TargetTargetInfo) {
	if info == nil || string(info.Type) != "page" {
		return
	}
	target := string(info.TargetID)
	w.mu.Lock()
	prev, seen := w.urls[target]
	w.urls[target] = info.URL
	w.mu.Unlock()
	if seen && prev == info.URL {
		return
	}
	w.sink.ObserveNavigation(ctx, w.ids.idFor(target), info.URL)
}

func (w *watcher) targetDestroyed(target string) {
	w.mu.Lock()
	delete(w.urls, target)
	w.mu.Unlock()
	w.ids.forget(target)
}

// downloadBegan records a pending download. The top frame id of a page
// equals its target id, so the initiating tab's URL serves as referrer.
func (w *watcher) downloadBegan(guid, frameID, url, filename string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.downloads[guid] = types.DownloadEvent{
		URL:      url,
		Filename: filename,
		Referrer: w.urls[frameID],
	}
}

func (w *watcher) downloadProgress(ctx context.Context, guid string, completed, canceled bool) {
	if !completed && !canceled {
		return
	}
	w.mu.Lock()
	ev, ok := w.downloads[guid]
	delete(w.downloads, guid)
	w.mu.Unlock()
	if ok && completed {
		w.sink.ObserveDownload(ctx, ev)
	}
}
