package cdp

import (
	"sort"
	"sync"

	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/devlog_agent/internal/storage"
	"github.com/dgnsrekt/devlog_agent/internal/types"
)

// TabRegistry tracks attached tabs so archives can be routed per page.
type TabRegistry struct {
	mu   sync.RWMutex
	tabs map[target.ID]*types.TabInfo
}

func NewTabRegistry() *TabRegistry {
	return &TabRegistry{tabs: make(map[target.ID]*types.TabInfo)}
}

// Register records (or refreshes after navigation) the tab at url.
func (r *TabRegistry) Register(targetID target.ID, url string) (*types.TabInfo, error) {
	pathSegment, err := storage.TransformURLToPathSegment(url)
	if err != nil {
		return nil, err
	}

	info := &types.TabInfo{
		TargetID:    string(targetID),
		URL:         url,
		PathSegment: pathSegment,
		BrowserID:   storage.BrowserIDFromTargetID(string(targetID)),
	}

	r.mu.Lock()
	r.tabs[targetID] = info
	r.mu.Unlock()
	return info, nil
}

func (r *TabRegistry) GetByStringID(tabID string) (*types.TabInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.tabs[target.ID(tabID)]
	return info, ok
}

func (r *TabRegistry) Remove(targetID target.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tabs, targetID)
}

// List returns copies of all registered tabs ordered by target ID.
func (r *TabRegistry) List() []types.TabInfo {
	r.mu.RLock()
	out := make([]types.TabInfo, 0, len(r.tabs))
	for _, info := range r.tabs {
		out = append(out, *info)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out
}
