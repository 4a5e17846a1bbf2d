package cdp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/dgnsrekt/devlog_agent/internal/capture"
)

// Client attaches to browser tabs over CDP and feeds their WebSocket events to
// a capture.WebSocketTap.
type Client struct {
	cdpURL         string
	tabURLFilter   string
	reloadOnAttach bool

	wsTap       *capture.WebSocketTap
	tabRegistry *TabRegistry

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	tabs          map[target.ID]*TabContext
	tabsMu        sync.RWMutex
}

type TabContext struct {
	ID     target.ID
	URL    string
	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(cdpURL, tabURLFilter string, reloadOnAttach bool, wsTap *capture.WebSocketTap, tabRegistry *TabRegistry) *Client {
	return &Client{
		cdpURL:         cdpURL,
		tabURLFilter:   tabURLFilter,
		reloadOnAttach: reloadOnAttach,
		wsTap:          wsTap,
		tabRegistry:    tabRegistry,
		tabs:           make(map[target.ID]*TabContext),
	}
}

// Connect attaches to every page target that matches the tab URL filter.
func (c *Client) Connect(ctx context.Context) error {
	slog.Info("Connecting to browser", "url", c.cdpURL)

	c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), c.cdpURL)

	c.browserCtx, c.browserCancel = chromedp.NewContext(c.allocCtx)
	if err := chromedp.Run(c.browserCtx); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	targets, err := chromedp.Targets(c.browserCtx)
	if err != nil {
		return fmt.Errorf("failed to enumerate targets: %w", err)
	}

	attached := 0
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if t.Type != "page" || c.isOwnTarget(t.TargetID) {
			continue
		}
		if !c.matchesTabURL(t.URL) {
			slog.Debug("Skipping tab (url filter)", "url", t.URL)
			continue
		}
		if err := c.attachToTab(t.TargetID, t.URL); err != nil {
			slog.Error("Failed to attach to tab", "target_id", t.TargetID, "url", truncateURL(t.URL), "error", err)
			continue
		}
		attached++
	}

	if attached == 0 {
		return fmt.Errorf("no tabs found matching DEVLOG_TAB_URL_FILTER=%q", c.tabURLFilter)
	}

	slog.Info("Attached to tabs", "count", attached, "tab_url_filter", c.tabURLFilter)
	return nil
}

func (c *Client) attachToTab(targetID target.ID, url string) error {
	info, err := c.tabRegistry.Register(targetID, url)
	if err != nil {
		return fmt.Errorf("failed to register tab: %w", err)
	}

	tabCtx, tabCancel := chromedp.NewContext(c.allocCtx, chromedp.WithTargetID(targetID))

	if err := chromedp.Run(tabCtx, network.Enable(), page.Enable()); err != nil {
		tabCancel()
		c.tabRegistry.Remove(targetID)
		return fmt.Errorf("failed to enable network/page domains: %w", err)
	}

	c.tabsMu.Lock()
	c.tabs[targetID] = &TabContext{ID: targetID, URL: url, ctx: tabCtx, cancel: tabCancel}
	c.tabsMu.Unlock()

	slog.Info("Attached to tab", "target_id", targetID, "path_segment", info.PathSegment, "browser_id", info.BrowserID, "url", truncateURL(url))
	chromedp.ListenTarget(tabCtx, c.createEventHandler(string(targetID)))

	// Reloading makes the page reopen its sockets so their creation is observed.
	if c.reloadOnAttach {
		reloadCtx, reloadCancel := context.WithTimeout(tabCtx, 30*time.Second)
		defer reloadCancel()
		if err := chromedp.Run(reloadCtx, chromedp.Reload()); err != nil {
			slog.Warn("Failed to reload tab (continuing)", "target_id", targetID, "error", err)
		}
	}

	return nil
}

func (c *Client) createEventHandler(tabID string) func(ev interface{}) {
	return func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventFrameNavigated:
			if e.Frame.ParentID == "" {
				if info, err := c.tabRegistry.Register(target.ID(tabID), e.Frame.URL); err == nil {
					slog.Debug("Tab navigated", "tab_id", tabID, "path_segment", info.PathSegment, "url", truncateURL(e.Frame.URL))
				}
			}
		case *network.EventWebSocketCreated:
			c.wsTap.OnWebSocketCreated(tabID, e)
		case *network.EventWebSocketFrameReceived:
			c.wsTap.OnWebSocketFrameReceived(tabID, e)
		case *network.EventWebSocketClosed:
			c.wsTap.OnWebSocketClosed(tabID, e)
		}
	}
}

// Watch polls the browser's targets until ctx is done, attaching to matching
// tabs opened after Connect and forgetting tabs that were closed.
func (c *Client) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.syncTargets()
		}
	}
}

func (c *Client) syncTargets() {
	targets, err := chromedp.Targets(c.browserCtx)
	if err != nil {
		slog.Warn("Failed to list browser targets", "error", err)
		return
	}

	open := make(map[target.ID]bool, len(targets))
	for _, t := range targets {
		if t.Type != "page" || c.isOwnTarget(t.TargetID) {
			continue
		}
		open[t.TargetID] = true
		if c.hasTab(t.TargetID) || !c.matchesTabURL(t.URL) {
			continue
		}
		if err := c.attachToTab(t.TargetID, t.URL); err != nil {
			slog.Error("Failed to attach to new tab", "target_id", t.TargetID, "url", truncateURL(t.URL), "error", err)
		}
	}

	c.tabsMu.Lock()
	defer c.tabsMu.Unlock()
	for id, tab := range c.tabs {
		if open[id] {
			continue
		}
		tab.cancel()
		delete(c.tabs, id)
		c.tabRegistry.Remove(id)
		slog.Info("Tab closed", "target_id", id, "url", truncateURL(tab.URL))
	}
}

// isOwnTarget reports whether id is the blank page chromedp opened for the
// browser-level context.
func (c *Client) isOwnTarget(id target.ID) bool {
	if cc := chromedp.FromContext(c.browserCtx); cc != nil && cc.Target != nil {
		return cc.Target.TargetID == id
	}
	return false
}

func (c *Client) hasTab(id target.ID) bool {
	c.tabsMu.RLock()
	defer c.tabsMu.RUnlock()
	_, ok := c.tabs[id]
	return ok
}

func (c *Client) Close() error {
	c.tabsMu.Lock()
	c.tabs = make(map[target.ID]*TabContext)
	c.tabsMu.Unlock()

	if c.browserCancel != nil {
		c.browserCancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}

	slog.Info("CDP client closed")
	return nil
}

// TabCount returns the number of attached tabs.
func (c *Client) TabCount() int {
	c.tabsMu.RLock()
	defer c.tabsMu.RUnlock()
	return len(c.tabs)
}

func (c *Client) matchesTabURL(url string) bool {
	if c.tabURLFilter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(url), strings.ToLower(c.tabURLFilter))
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}
