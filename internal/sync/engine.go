// Package sync implements the sync engine (spec.md §4.4): pull, push,
// full-sync orchestration, and last-write-wins merge against a named
// remote "profile." It depends on storage.Store and the small
// Requester interface in this package, never on net/http directly, so
// it can be tested against a fake transport.
package sync

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/autonome/peek/internal/engine"
	"github.com/autonome/peek/internal/models"
	"github.com/autonome/peek/internal/storage"
)

// Engine is the sync engine.
type Engine struct {
	store  storage.Store
	de     *engine.Engine
	req    Requester
	config Config
	now    func() time.Time
}

// New creates a sync Engine. de and store should be backed by the
// same underlying database; de handles tag/frecency bookkeeping while
// store is used directly for sync-metadata-only mutations (spec.md
// §4.4: "SE may mutate only sync-metadata fields... plus call DE for
// higher-level operations during pull").
func New(store storage.Store, de *engine.Engine, req Requester, config Config) *Engine {
	return &Engine{store: store, de: de, req: req, config: config, now: time.Now}
}

// Configure replaces the engine's server configuration.
func (e *Engine) Configure(config Config) {
	e.config = config
}

func (e *Engine) nowMillis() int64 {
	return e.now().UnixMilli()
}

func (e *Engine) configured() bool {
	return e.config.ServerURL != "" && e.config.APIKey != ""
}

func (e *Engine) lastSyncTime() (int64, error) {
	v, ok, err := e.store.GetSetting(models.SettingLastSyncTime)
	if err != nil {
		return 0, fmt.Errorf("sync: read lastSyncTime: %w", err)
	}
	if !ok || v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("sync: parse lastSyncTime %q: %w", v, err)
	}
	return n, nil
}

func (e *Engine) setLastSyncTime(ms int64) error {
	if err := e.store.SetSetting(models.SettingLastSyncTime, strconv.FormatInt(ms, 10)); err != nil {
		return fmt.Errorf("sync: write lastSyncTime: %w", err)
	}
	return nil
}

// PullFromServer pulls items updated since the given cursor (or the
// persisted lastSyncTime if since is nil) and merges them
// (spec.md §4.4.1).
func (e *Engine) PullFromServer(since *int64) (*PullResult, error) {
	if !e.configured() {
		return &PullResult{}, nil
	}

	cursor := since
	if cursor == nil {
		t, err := e.lastSyncTime()
		if err != nil {
			return nil, err
		}
		cursor = &t
	}

	var items []ServerItem
	var err error
	if *cursor > 0 {
		items, err = e.req.GetItemsSince(time.UnixMilli(*cursor), e.config.ServerProfileID)
	} else {
		items, err = e.req.GetItems(e.config.ServerProfileID)
	}
	if err != nil {
		return nil, fmt.Errorf("sync: pull: %w", err)
	}

	result := &PullResult{}
	for _, si := range items {
		pulled, conflict, err := e.mergeServerItem(si)
		if err != nil {
			return nil, fmt.Errorf("sync: pull: merge %s: %w", si.ID, err)
		}
		if conflict {
			result.Conflicts++
		} else if pulled {
			result.Pulled++
		}
	}
	return result, nil
}

// mergeServerItem applies spec.md §4.4.1's merge rules for a single
// server item, returning (pulled, conflict).
func (e *Engine) mergeServerItem(si ServerItem) (bool, bool, error) {
	serverUpdated, err := parseISO(si.UpdatedAt)
	if err != nil {
		return false, false, fmt.Errorf("parse updated_at: %w", err)
	}

	existing, err := e.store.FindItemBySyncID(si.ID)
	if err != nil {
		return false, false, err
	}

	content, hasContent := "", false
	if si.Content != nil {
		content, hasContent = *si.Content, true
	}
	metadata, hasMetadata := "", false
	if si.Metadata != nil {
		metadata, hasMetadata = *si.Metadata, true
	}

	nowMs := e.nowMillis()
	serverUpdatedMs := serverUpdated.UnixMilli()

	if existing == nil {
		createdAt, err := parseISO(si.CreatedAt)
		if err != nil {
			return false, false, fmt.Errorf("parse created_at: %w", err)
		}
		item := &models.Item{
			ID: engine.NewID(), Type: models.ItemType(si.Type),
			Content: content, HasContent: hasContent,
			Metadata: metadata, HasMetadata: hasMetadata,
			SyncID: si.ID, SyncSource: "server",
			CreatedAt: createdAt.UnixMilli(), UpdatedAt: serverUpdatedMs, SyncedAt: nowMs,
		}
		if err := e.store.InsertItem(item); err != nil {
			return false, false, err
		}
		if err := e.replaceTags(item.ID, si.Tags); err != nil {
			return false, false, err
		}
		return true, false, nil
	}

	if serverUpdatedMs > existing.UpdatedAt {
		partial := storage.ItemPartial{
			Content: &content, HasContent: &hasContent,
			Metadata: &metadata, HasMetadata: &hasMetadata,
			UpdatedAt: &serverUpdatedMs, SyncedAt: &nowMs,
		}
		if err := e.store.UpdateItem(existing.ID, partial); err != nil {
			return false, false, err
		}
		if err := e.replaceTags(existing.ID, si.Tags); err != nil {
			return false, false, err
		}
		return true, false, nil
	}

	if existing.UpdatedAt > serverUpdatedMs {
		return false, true, nil
	}

	return false, false, nil
}

func (e *Engine) replaceTags(itemID string, names []string) error {
	if err := e.store.ClearItemTags(itemID); err != nil {
		return err
	}
	for _, name := range names {
		result, err := e.de.GetOrCreateTag(name)
		if err != nil {
			return err
		}
		if err := e.store.TagItem(itemID, result.Tag.ID); err != nil {
			return err
		}
	}
	return nil
}

// PushToServer pushes every eligible local item (spec.md §4.4.2).
func (e *Engine) PushToServer() (*PushSummary, error) {
	if !e.configured() {
		return &PushSummary{}, nil
	}

	candidates, err := e.pushCandidates()
	if err != nil {
		return nil, fmt.Errorf("sync: push: %w", err)
	}

	summary := &PushSummary{}
	for _, it := range candidates {
		if err := e.pushOne(it); err != nil {
			summary.Failed++
			continue
		}
		summary.Pushed++
	}
	return summary, nil
}

// pushCandidates selects items per spec.md §4.4.2's rule:
// if lastSyncTime > 0, syncSource=="" or (syncedAt>0 and updatedAt>syncedAt);
// else syncSource=="".
func (e *Engine) pushCandidates() ([]models.Item, error) {
	items, err := e.store.GetItems(storage.ItemFilter{})
	if err != nil {
		return nil, err
	}
	lastSync, err := e.lastSyncTime()
	if err != nil {
		return nil, err
	}

	var out []models.Item
	for _, it := range items {
		if isPushCandidate(it, lastSync) {
			out = append(out, it)
		}
	}
	return out, nil
}

func isPushCandidate(it models.Item, lastSyncTime int64) bool {
	if lastSyncTime > 0 {
		return it.SyncSource == "" || (it.SyncedAt > 0 && it.UpdatedAt > it.SyncedAt)
	}
	return it.SyncSource == ""
}

func (e *Engine) pushOne(it models.Item) error {
	tags, err := e.store.GetItemTags(it.ID)
	if err != nil {
		return err
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}

	var metadataPtr *string
	if it.HasMetadata && json.Valid([]byte(it.Metadata)) {
		metadataPtr = &it.Metadata
	}

	syncID := it.SyncID
	if syncID == "" {
		syncID = it.ID
	}

	resp, err := e.req.PushItem(ClientItem{
		Type: string(it.Type), Content: it.Content, Tags: names,
		Metadata: metadataPtr, SyncID: syncID,
	}, e.config.ServerProfileID)
	if err != nil {
		return err
	}

	nowMs := e.nowMillis()
	serverSource := "server"
	partial := storage.ItemPartial{SyncID: &resp.ID, SyncSource: &serverSource, SyncedAt: &nowMs}
	return e.store.UpdateItem(it.ID, partial)
}

// SyncAll runs a full pull-then-push cycle (spec.md §4.4.3). The
// cursor is captured before pull and committed after push, so items
// touched mid-cycle are re-examined next time.
func (e *Engine) SyncAll() (*SyncAllResult, error) {
	if e.config.ServerURL == "" {
		return &SyncAllResult{}, nil
	}

	startTime := e.nowMillis()

	if _, err := e.ResetSyncStateIfServerChanged(e.config.ServerURL); err != nil {
		return nil, err
	}

	pullResult, err := e.PullFromServer(nil)
	if err != nil {
		return nil, err
	}

	if err := e.saveSyncServerConfig(); err != nil {
		return nil, err
	}

	pushResult, err := e.PushToServer()
	if err != nil {
		return nil, err
	}

	if err := e.setLastSyncTime(startTime); err != nil {
		return nil, err
	}

	return &SyncAllResult{
		Pulled: pullResult.Pulled, Pushed: pushResult.Pushed,
		Conflicts: pullResult.Conflicts, Failed: pushResult.Failed,
		LastSyncTime: startTime,
	}, nil
}

func (e *Engine) saveSyncServerConfig() error {
	if err := e.store.SetSetting(models.SettingLastSyncServerURL, e.config.ServerURL); err != nil {
		return fmt.Errorf("sync: save server config: %w", err)
	}
	if err := e.store.SetSetting(models.SettingLastSyncProfileID, e.config.ServerProfileID); err != nil {
		return fmt.Errorf("sync: save server config: %w", err)
	}
	return nil
}

// GetSyncStatus reports configuration state, cursor, and pending push
// count (spec.md §4.4.4).
func (e *Engine) GetSyncStatus() (*Status, error) {
	lastSync, err := e.lastSyncTime()
	if err != nil {
		return nil, err
	}
	candidates, err := e.pushCandidates()
	if err != nil {
		return nil, fmt.Errorf("sync: status: %w", err)
	}
	return &Status{
		Configured:   e.configured(),
		LastSyncTime: lastSync,
		PendingCount: len(candidates),
	}, nil
}

// ResetSyncStateIfServerChanged detects a new server identity (spec.md
// §4.4.5). If both sync_lastSyncServerUrl and sync_lastSyncProfileId
// are unset, this is treated as first sync and nothing is reset. If
// either differs from the current config, every live item's sync
// metadata is cleared and the cursor is zeroed.
func (e *Engine) ResetSyncStateIfServerChanged(serverURL string) (bool, error) {
	storedURL, urlOK, err := e.store.GetSetting(models.SettingLastSyncServerURL)
	if err != nil {
		return false, fmt.Errorf("sync: read server config: %w", err)
	}
	storedProfile, profileOK, err := e.store.GetSetting(models.SettingLastSyncProfileID)
	if err != nil {
		return false, fmt.Errorf("sync: read server config: %w", err)
	}

	if !urlOK && !profileOK {
		return false, nil
	}

	if storedURL == serverURL && storedProfile == e.config.ServerProfileID {
		return false, nil
	}

	items, err := e.store.GetItems(storage.ItemFilter{})
	if err != nil {
		return false, fmt.Errorf("sync: reset: %w", err)
	}
	empty := ""
	var zero int64
	for _, it := range items {
		partial := storage.ItemPartial{SyncSource: &empty, SyncedAt: &zero, SyncID: &empty}
		if err := e.store.UpdateItem(it.ID, partial); err != nil {
			return false, fmt.Errorf("sync: reset item %s: %w", it.ID, err)
		}
	}
	if err := e.setLastSyncTime(0); err != nil {
		return false, err
	}
	return true, nil
}

func parseISO(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
