// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package browser drives the curator's Chrome over the DevTools protocol.
// Host lists and opens tabs, runs the PDF locator inside them, reads
// cookies, delivers in-page notifications and streams navigation and
// download events to the passive monitor.
package browser

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sourcegraph/conc"

	"github.com/pdiddy/curation-engine/internal/locator"
	"github.com/pdiddy/curation-engine/pkg/types"
)

// Host is a connected browser.
type Host struct {
	browser *rod.Browser
	logger  *log.Logger
	ids     *tabIDs
	launch  *launcher.Launcher

	mu     sync.Mutex
	closed bool
}

// Connect attaches to the browser at cfg.ControlURL, or launches one when
// the URL is empty and cfg.Launch is set.
func Connect(ctx context.Context, cfg types.BrowserConfig, logger *log.Logger) (*Host, error) {
	if logger == nil {
		logger = log.Default()
	}
	h := &Host{logger: logger.WithPrefix("browser"), ids: newTabIDs()}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		if !cfg.Launch {
			return nil, fmt.Errorf("no browser control URL configured and launch disabled")
		}
		h.launch = launcher.New().Headless(cfg.Headless)
		u, err := h.launch.Launch()
		if err != nil {
			return nil, fmt.Errorf("launching browser: %w", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	h.browser = b
	h.logger.Info("connected", "control_url", controlURL)
	return h, nil
}

// Close disconnects from the browser and stops a launched instance.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	err := h.browser.Close()
	if h.launch != nil {
		h.launch.Kill()
	}
	return err
}

func (h *Host) client(ctx context.Context) (*rod.Browser, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrNotConnected
	}
	return h.browser.Context(ctx), nil
}

// Tabs lists the open page targets.
func (h *Host) Tabs(ctx context.Context) ([]types.Tab, error) {
	infos, err := h.pageTargets(ctx)
	if err != nil {
		return nil, err
	}
	tabs := make([]types.Tab, 0, len(infos))
	for _, info := range infos {
		tabs = append(tabs, types.Tab{
			ID:       h.ids.idFor(string(info.TargetID)),
			TargetID: string(info.TargetID),
			URL:      info.URL,
		})
	}
	return tabs, nil
}

func (h *Host) pageTargets(ctx context.Context) ([]*proto.TargetTargetInfo, error) {
	b, err := h.client(ctx)
	if err != nil {
		return nil, err
	}
	res, err := proto.TargetGetTargets{}.Call(b)
	if err != nil {
		return nil, fmt.Errorf("listing targets: %w", err)
	}
	var pages []*proto.TargetTargetInfo
	for _, info := range res.TargetInfos {
		if string(info.Type) == "page" {
			pages = append(pages, info)
		}
	}
	return pages, nil
}

// TabIDForTarget maps a DevTools target id to the tab id used everywhere
// else. Unknown or closed targets yield ErrTabGone.
func (h *Host) TabIDForTarget(ctx context.Context, target string) (int, error) {
	infos, err := h.pageTargets(ctx)
	if err != nil {
		return 0, err
	}
	id, ok := resolveTarget(h.ids, infos, target)
	if !ok {
		return 0, fmt.Errorf("target %s: %w", target, ErrTabGone)
	}
	return id, nil
}

func resolveTarget(ids *tabIDs, infos []*proto.TargetTargetInfo, target string) (int, bool) {
	if target == "" {
		return 0, false
	}
	for _, info := range infos {
		if string(info.TargetID) == target {
			return ids.idFor(target), true
		}
	}
	return 0, false
}

// OpenTab opens url in a new background tab.
func (h *Host) OpenTab(ctx context.Context, url string) (types.Tab, error) {
	b, err := h.client(ctx)
	if err != nil {
		return types.Tab{}, err
	}
	page, err := b.Page(proto.TargetCreateTarget{URL: url, Background: true})
	if err != nil {
		return types.Tab{}, fmt.Errorf("opening tab for %s: %w", url, err)
	}
	target := string(page.TargetID)
	tab := types.Tab{ID: h.ids.idFor(target), TargetID: target, URL: url}
	h.logger.Debug("opened tab", "tab", tab.ID, "url", url)
	return tab, nil
}

// WaitLoaded blocks until the tab fired its load event or ctx ends.
func (h *Host) WaitLoaded(ctx context.Context, tabID int) error {
	page, err := h.page(ctx, tabID)
	if err != nil {
		return err
	}
	return page.Context(ctx).WaitLoad()
}

// CloseTab closes a tab.
func (h *Host) CloseTab(ctx context.Context, tabID int) error {
	page, err := h.page(ctx, tabID)
	if err != nil {
		return err
	}
	h.ids.forget(string(page.TargetID))
	if err := page.Context(ctx).Close(); err != nil {
		return fmt.Errorf("closing tab %d: %w", tabID, err)
	}
	return nil
}

// page returns the live page behind tabID, or ErrTabGone.
func (h *Host) page(ctx context.Context, tabID int) (*rod.Page, error) {
	target, ok := h.ids.targetFor(tabID)
	if !ok {
		return nil, fmt.Errorf("tab %d: %w", tabID, ErrTabGone)
	}
	infos, err := h.pageTargets(ctx)
	if err != nil {
		return nil, err
	}
	alive := false
	for _, info := range infos {
		if string(info.TargetID) == target {
			alive = true
			break
		}
	}
	if !alive {
		h.ids.forget(target)
		return nil, fmt.Errorf("tab %d: %w", tabID, ErrTabGone)
	}
	b, err := h.client(ctx)
	if err != nil {
		return nil, err
	}
	page, err := b.PageFromTarget(proto.TargetTargetID(target))
	if err != nil {
		return nil, fmt.Errorf("attaching to tab %d: %w", tabID, err)
	}
	return page, nil
}

// Inject runs the locator in the tab's frames concurrently and returns one
// result per frame, top frame first. With types.WorldMain each frame runs in
// its page's own context; a child frame whose default context is not visible
// from the tab's session, typically an out-of-process iframe, falls back to
// an isolated world. With types.WorldIsolated every frame is isolated.
func (h *Host) Inject(ctx context.Context, req types.InjectRequest, opts locator.Options) ([]locator.Result, error) {
	page, err := h.page(ctx, req.TabID)
	if err != nil {
		return nil, err
	}
	tree, err := proto.PageGetFrameTree{}.Call(page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("reading frame tree: %w", err)
	}
	frames := flattenFrames(tree.FrameTree)
	if !req.AllFrames && len(frames) > 1 {
		frames = frames[:1]
	}

	var defaults map[proto.PageFrameID]proto.RuntimeExecutionContextID
	if req.World == types.WorldMain && len(frames) > 1 {
		defaults = h.defaultContexts(ctx, page, frames[1:])
	}

	plans := planFrames(frames, req.World, defaults)
	opens := make([]frameOpener, len(plans))
	for i, p := range plans {
		opens[i] = func(ctx context.Context) (locator.Frame, error) {
			return h.frame(ctx, page, p)
		}
	}
	return runFrames(ctx, opens, req.IsBlob, opts), nil
}

// framePlan says where the locator runs in one frame.
type framePlan struct {
	id proto.PageFrameID

	// main evaluates through the page itself (top frame, main world).
	main bool

	// contextID is a child frame's default context; zero means a fresh
	// isolated world.
	contextID proto.RuntimeExecutionContextID
}

func planFrames(frames []proto.PageFrameID, world types.World, defaults map[proto.PageFrameID]proto.RuntimeExecutionContextID) []framePlan {
	plans := make([]framePlan, len(frames))
	for i, fid := range frames {
		plans[i] = framePlan{id: fid}
		if world != types.WorldMain {
			continue
		}
		if i == 0 {
			plans[i].main = true
			continue
		}
		plans[i].contextID = defaults[fid]
	}
	return plans
}

// frameOpener prepares the execution context of one frame.
type frameOpener func(ctx context.Context) (locator.Frame, error)

// runFrames runs the locator in every frame at once. Results keep frame order.
func runFrames(ctx context.Context, opens []frameOpener, isBlob bool, opts locator.Options) []locator.Result {
	results := make([]locator.Result, len(opens))
	var wg conc.WaitGroup
	for i, open := range opens {
		wg.Go(func() {
			f, err := open(ctx)
			if err != nil {
				results[i] = locator.Result{Err: err}
				return
			}
			results[i] = locator.Run(ctx, f, isBlob, opts)
		})
	}
	wg.Wait()
	return results
}

func (h *Host) frame(ctx context.Context, page *rod.Page, p framePlan) (*rodFrame, error) {
	if p.main {
		return &rodFrame{page: page, main: true}, nil
	}
	if p.contextID != 0 {
		return &rodFrame{page: page, contextID: p.contextID}, nil
	}
	world, err := proto.PageCreateIsolatedWorld{FrameID: p.id, WorldName: isolatedWorldName}.Call(page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("creating isolated world: %w", err)
	}
	return &rodFrame{page: page, contextID: world.ExecutionContextID}, nil
}

// contextDiscoveryTimeout bounds the wait for child frames' default contexts.
var contextDiscoveryTimeout = time.Second

// defaultContexts finds the default execution context of each frame that
// shares the tab's session. Frames missing from the result have no such
// context within contextDiscoveryTimeout.
func (h *Host) defaultContexts(ctx context.Context, page *rod.Page, frames []proto.PageFrameID) map[proto.PageFrameID]proto.RuntimeExecutionContextID {
	want := make(map[proto.PageFrameID]bool, len(frames))
	for _, fid := range frames {
		want[fid] = true
	}
	found := make(map[proto.PageFrameID]proto.RuntimeExecutionContextID, len(frames))

	dctx, cancel := context.WithTimeout(ctx, contextDiscoveryTimeout)
	defer cancel()
	p := page.Context(dctx)

	wait := p.EachEvent(func(ev *proto.RuntimeExecutionContextCreated) bool {
		if fid, ok := defaultContextFrame(ev.Context); ok && want[fid] {
			found[fid] = ev.Context.ID
		}
		return len(found) == len(want)
	})
	// Enabling the runtime domain replays a creation event for every live
	// context; the subscription above must exist first.
	_ = proto.RuntimeDisable{}.Call(p)
	if err := (proto.RuntimeEnable{}).Call(p); err != nil {
		h.logger.Debug("runtime domain unavailable", "error", err)
		cancel()
	}
	wait()

	if len(found) < len(want) {
		h.logger.Debug("frames without a visible default context", "frames", len(want)-len(found))
	}
	return found
}

// defaultContextFrame returns the frame of a default (main world) context.
func defaultContextFrame(desc *proto.RuntimeExecutionContextDescription) (proto.PageFrameID, bool) {
	if desc == nil {
		return "", false
	}
	if isDefault, _ := desc.AuxData["isDefault"].Val().(bool); !isDefault {
		return "", false
	}
	fid, _ := desc.AuxData["frameId"].Val().(string)
	if fid == "" {
		return "", false
	}
	return proto.PageFrameID(fid), true
}

// flattenFrames lists frame ids depth-first, top frame first.
func flattenFrames(tree *proto.PageFrameTree) []proto.PageFrameID {
	if tree == nil || tree.Frame == nil {
		return nil
	}
	ids := []proto.PageFrameID{tree.Frame.ID}
	for _, child := range tree.ChildFrames {
		ids = append(ids, flattenFrames(child)...)
	}
	return ids
}

// Cookies returns the browser cookies that apply to url.
func (h *Host) Cookies(ctx context.Context, url string) ([]*http.Cookie, error) {
	infos, err := h.pageTargets(ctx)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, nil
	}
	b, err := h.client(ctx)
	if err != nil {
		return nil, err
	}
	page, err := b.PageFromTarget(infos[0].TargetID)
	if err != nil {
		return nil, fmt.Errorf("attaching for cookies: %w", err)
	}
	cookies, err := page.Context(ctx).Cookies([]string{url})
	if err != nil {
		return nil, fmt.Errorf("reading cookies: %w", err)
	}
	return toHTTPCookies(cookies), nil
}

func toHTTPCookies(in []*proto.NetworkCookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(in))
	for _, c := range in {
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// Notify dispatches msg as a CustomEvent named after its action in the
// tab's page. A closed tab yields ErrTabGone.
func (h *Host) Notify(ctx context.Context, tabID int, msg types.PDFDetected) error {
	page, err := h.page(ctx, tabID)
	if err != nil {
		return err
	}
	if _, err := page.Context(ctx).Evaluate(rod.Eval(locator.ScriptNotify, msg.Action, msg)); err != nil {
		return fmt.Errorf("notifying tab %d: %w", tabID, err)
	}
	return nil
}
