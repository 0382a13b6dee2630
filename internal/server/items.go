package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/autonome/peek/internal/engine"
	"github.com/autonome/peek/internal/models"
	"github.com/autonome/peek/internal/storage"
)

// ServerItem is the wire shape for GET /items and GET /items/since/{ts}
// (spec.md §6.1) — field-for-field what internal/syncclient.ServerItem
// expects to unmarshal.
type ServerItem struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Content   *string  `json:"content,omitempty"`
	Metadata  *string  `json:"metadata,omitempty"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// ClientItem is the wire shape accepted by POST /items.
type ClientItem struct {
	Type     string   `json:"type"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
	Metadata *string  `json:"metadata,omitempty"`
	SyncID   string   `json:"sync_id"`
}

type itemsResponse struct {
	Items []ServerItem `json:"items"`
}

type pushResponse struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
}

func toServerItem(it models.Item, tagNames []string) ServerItem {
	si := ServerItem{
		ID:        it.ID,
		Type:      string(it.Type),
		Tags:      tagNames,
		CreatedAt: time.UnixMilli(it.CreatedAt).UTC().Format(time.RFC3339Nano),
		UpdatedAt: time.UnixMilli(it.UpdatedAt).UTC().Format(time.RFC3339Nano),
	}
	if it.HasContent {
		content := it.Content
		si.Content = &content
	}
	if it.HasMetadata {
		metadata := it.Metadata
		si.Metadata = &metadata
	}
	if si.Tags == nil {
		si.Tags = []string{}
	}
	return si
}

func (s *Server) itemsForProfile(r *http.Request) (storage.Store, string, error) {
	profile := r.URL.Query().Get("profile")
	store, err := s.pool.Get(profile)
	if err != nil {
		return nil, "", err
	}
	if profile == "" {
		profile = "default"
	}
	return store, profile, nil
}

func (s *Server) handleGetItems(w http.ResponseWriter, r *http.Request) {
	store, _, err := s.itemsForProfile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	items, err := store.GetItems(storage.ItemFilter{})
	if err != nil {
		logFor(r.Context()).Error("get items", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read items")
		return
	}

	out, err := s.withTags(store, items)
	if err != nil {
		logFor(r.Context()).Error("get item tags", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read tags")
		return
	}
	writeJSON(w, http.StatusOK, itemsResponse{Items: out})
}

func (s *Server) handleGetItemsSince(w http.ResponseWriter, r *http.Request) {
	sinceStr := r.PathValue("since")
	since, err := time.Parse(time.RFC3339, sinceStr)
	if err != nil {
		since, err = time.Parse(time.RFC3339Nano, sinceStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid timestamp, expected ISO 8601")
			return
		}
	}

	store, _, err := s.itemsForProfile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	sinceMs := since.UnixMilli()
	items, err := store.GetItems(storage.ItemFilter{Since: &sinceMs})
	if err != nil {
		logFor(r.Context()).Error("get items since", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read items")
		return
	}

	out, err := s.withTags(store, items)
	if err != nil {
		logFor(r.Context()).Error("get item tags", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read tags")
		return
	}
	writeJSON(w, http.StatusOK, itemsResponse{Items: out})
}

func (s *Server) withTags(store storage.Store, items []models.Item) ([]ServerItem, error) {
	out := make([]ServerItem, len(items))
	for i, it := range items {
		tags, err := store.GetItemTags(it.ID)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(tags))
		for j, t := range tags {
			names[j] = t.Name
		}
		out[i] = toServerItem(it, names)
	}
	return out, nil
}

// handlePushItem handles POST /items. If sync_id matches an existing
// live item (by id or prior sync_id, per FindItemBySyncID), it's
// overwritten in place; otherwise a new item is created and its
// server-assigned id returned for the client to remember.
func (s *Server) handlePushItem(w http.ResponseWriter, r *http.Request) {
	var in ClientItem
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}
	if !models.IsValidItemType(models.ItemType(in.Type)) {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid item type")
		return
	}
	if in.Metadata != nil && !json.Valid([]byte(*in.Metadata)) {
		writeError(w, http.StatusBadRequest, "bad_request", "metadata must be valid json")
		return
	}

	store, _, err := s.itemsForProfile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	id, created, err := pushItem(store, in)
	if err != nil {
		logFor(r.Context()).Error("push item", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to store item")
		return
	}
	writeJSON(w, http.StatusOK, pushResponse{ID: id, Created: created})
}

func pushItem(store storage.Store, in ClientItem) (id string, created bool, err error) {
	itemType := models.ItemType(in.Type)
	content := in.Content
	if itemType == models.ItemTypeTagset {
		content = ""
	}
	hasContent := content != ""
	metadata := ""
	hasMetadata := in.Metadata != nil
	if hasMetadata {
		metadata = *in.Metadata
	}

	var existing *models.Item
	if in.SyncID != "" {
		existing, err = store.FindItemBySyncID(in.SyncID)
		if err != nil {
			return "", false, err
		}
	}

	now := time.Now().UnixMilli()

	if existing != nil {
		partial := storage.ItemPartial{
			Type: &itemType, Content: &content, HasContent: &hasContent,
			Metadata: &metadata, HasMetadata: &hasMetadata, UpdatedAt: &now,
		}
		if err := store.UpdateItem(existing.ID, partial); err != nil {
			return "", false, err
		}
		if err := replaceTags(store, existing.ID, in.Tags); err != nil {
			return "", false, err
		}
		return existing.ID, false, nil
	}

	item := &models.Item{
		ID: engine.NewID(), Type: itemType, Content: content, HasContent: hasContent,
		Metadata: metadata, HasMetadata: hasMetadata, SyncID: in.SyncID,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := store.InsertItem(item); err != nil {
		return "", false, err
	}
	if err := replaceTags(store, item.ID, in.Tags); err != nil {
		return "", false, err
	}
	return item.ID, true, nil
}

func replaceTags(store storage.Store, itemID string, names []string) error {
	if err := store.ClearItemTags(itemID); err != nil {
		return err
	}
	for _, name := range names {
		normalized := models.NormalizeTagName(name)
		if normalized == "" {
			continue
		}
		tag, err := store.GetTagByName(normalized)
		if err != nil {
			return err
		}
		if tag == nil {
			now := time.Now().UnixMilli()
			tag = &models.Tag{
				ID: engine.NewID(), Name: normalized, Frequency: 1,
				LastUsedAt: now, CreatedAt: now, UpdatedAt: now,
			}
			if err := store.InsertTag(tag); err != nil {
				return err
			}
		}
		if err := store.TagItem(itemID, tag.ID); err != nil {
			return err
		}
	}
	return nil
}
