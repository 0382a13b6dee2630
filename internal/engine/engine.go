// Package engine implements the data engine (spec.md §4.3): the layer
// that owns every item/tag mutation decision above the storage
// adapter. It knows nothing about the network; sync-aware fields
// (SyncID, SyncSource, SyncedAt) are plumbed through but never
// interpreted here.
package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/autonome/peek/internal/frecency"
	"github.com/autonome/peek/internal/models"
	"github.com/autonome/peek/internal/storage"
)

// Engine is the data engine. It is safe to share across goroutines
// only to the extent the underlying storage.Store is; per spec.md §5
// callers are expected to be single-threaded against one instance.
type Engine struct {
	store storage.Store
	now   func() time.Time
}

// New creates an Engine backed by store. store must already be Open.
func New(store storage.Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// NewID returns a fresh collision-resistant opaque identifier
// (spec.md §4.3: "128-bit opaque strings... collision-resistant
// across devices"), a UUID v4.
func NewID() string {
	return uuid.New().String()
}

func (e *Engine) nowMillis() int64 {
	return e.now().UnixMilli()
}

// AddItemInput carries the optional fields for AddItem.
type AddItemInput struct {
	Content    string
	HasContent bool
	Metadata   string
	SyncID     string
	SyncSource string
}

// AddItem creates a new item with the current timestamp and
// deletedAt=0 (spec.md §4.3 addItem).
func (e *Engine) AddItem(itemType models.ItemType, in AddItemInput) (*models.Item, error) {
	if !models.IsValidItemType(itemType) {
		return nil, fmt.Errorf("engine: AddItem: invalid item type %q", itemType)
	}
	if itemType == models.ItemTypeTagset {
		in.Content = ""
		in.HasContent = false
	}
	now := e.nowMillis()
	item := &models.Item{
		ID:          NewID(),
		Type:        itemType,
		Content:     in.Content,
		HasContent:  in.HasContent,
		Metadata:    in.Metadata,
		HasMetadata: in.Metadata != "",
		SyncID:      in.SyncID,
		SyncSource:  in.SyncSource,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.InsertItem(item); err != nil {
		return nil, fmt.Errorf("engine: AddItem: %w", err)
	}
	return item, nil
}

// GetItem delegates to the adapter.
func (e *Engine) GetItem(id string) (*models.Item, error) {
	it, err := e.store.GetItem(id)
	if err != nil {
		return nil, fmt.Errorf("engine: GetItem: %w", err)
	}
	return it, nil
}

// QueryItems delegates to the adapter, imposing no defaults beyond
// what storage.ItemFilter's zero value already means (live items
// only, no type/since restriction).
func (e *Engine) QueryItems(filter storage.ItemFilter) ([]models.Item, error) {
	items, err := e.store.GetItems(filter)
	if err != nil {
		return nil, fmt.Errorf("engine: QueryItems: %w", err)
	}
	return items, nil
}

// UpdateItemInput carries the fields UpdateItem may change.
type UpdateItemInput struct {
	Content    *string
	HasContent *bool
	Metadata   *string
	HasMetadata *bool
}

// UpdateItem bumps updatedAt to now (spec.md §4.3 updateItem).
func (e *Engine) UpdateItem(id string, in UpdateItemInput) error {
	now := e.nowMillis()
	partial := storage.ItemPartial{
		Content:     in.Content,
		HasContent:  in.HasContent,
		Metadata:    in.Metadata,
		HasMetadata: in.HasMetadata,
		UpdatedAt:   &now,
	}
	if err := e.store.UpdateItem(id, partial); err != nil {
		return fmt.Errorf("engine: UpdateItem: %w", err)
	}
	return nil
}

// DeleteItem soft-deletes (spec.md §4.3 deleteItem / testable property 1).
func (e *Engine) DeleteItem(id string) error {
	if err := e.store.DeleteItem(id); err != nil {
		return fmt.Errorf("engine: DeleteItem: %w", err)
	}
	return nil
}

// HardDeleteItem permanently removes an item and its tag links
// (spec.md §4.3). DeduplicateItems hard-deletes through the adapter
// directly, not through this method.
func (e *Engine) HardDeleteItem(id string) error {
	if err := e.store.HardDeleteItem(id); err != nil {
		return fmt.Errorf("engine: HardDeleteItem: %w", err)
	}
	return nil
}

// GetOrCreateTagResult is the result of GetOrCreateTag.
type GetOrCreateTagResult struct {
	Tag     models.Tag
	Created bool
}

// GetOrCreateTag normalizes name (trim), compares case-insensitively,
// and either bumps an existing tag's frequency/lastUsedAt/frecencyScore
// or inserts a new one with frequency=1, preserving the first
// insertion's original casing (spec.md §4.3 getOrCreateTag).
func (e *Engine) GetOrCreateTag(name string) (*GetOrCreateTagResult, error) {
	normalized := models.NormalizeTagName(name)
	if normalized == "" {
		return nil, fmt.Errorf("engine: GetOrCreateTag: empty tag name")
	}

	existing, err := e.store.GetTagByName(normalized)
	if err != nil {
		return nil, fmt.Errorf("engine: GetOrCreateTag: %w", err)
	}

	now := e.now()
	nowMs := now.UnixMilli()

	if existing != nil {
		newFreq := existing.Frequency + 1
		score := frecency.Score(newFreq, time.UnixMilli(nowMs), now)
		partial := storage.TagPartial{
			Frequency:     &newFreq,
			LastUsedAt:    &nowMs,
			FrecencyScore: &score,
			UpdatedAt:     &nowMs,
		}
		if err := e.store.UpdateTag(existing.ID, partial); err != nil {
			return nil, fmt.Errorf("engine: GetOrCreateTag: %w", err)
		}
		existing.Frequency = newFreq
		existing.LastUsedAt = nowMs
		existing.FrecencyScore = score
		existing.UpdatedAt = nowMs
		return &GetOrCreateTagResult{Tag: *existing, Created: false}, nil
	}

	score := frecency.Score(1, now, now)
	tag := &models.Tag{
		ID:            NewID(),
		Name:          normalized,
		Frequency:     1,
		LastUsedAt:    nowMs,
		FrecencyScore: score,
		CreatedAt:     nowMs,
		UpdatedAt:     nowMs,
	}
	if err := e.store.InsertTag(tag); err != nil {
		return nil, fmt.Errorf("engine: GetOrCreateTag: %w", err)
	}
	return &GetOrCreateTagResult{Tag: *tag, Created: true}, nil
}

// TagItem delegates to the adapter (idempotent per spec.md §6.2).
func (e *Engine) TagItem(itemID, tagID string) error {
	if err := e.store.TagItem(itemID, tagID); err != nil {
		return fmt.Errorf("engine: TagItem: %w", err)
	}
	return nil
}

// UntagItem delegates to the adapter.
func (e *Engine) UntagItem(itemID, tagID string) error {
	if err := e.store.UntagItem(itemID, tagID); err != nil {
		return fmt.Errorf("engine: UntagItem: %w", err)
	}
	return nil
}

// GetItemTags delegates to the adapter.
func (e *Engine) GetItemTags(itemID string) ([]models.Tag, error) {
	tags, err := e.store.GetItemTags(itemID)
	if err != nil {
		return nil, fmt.Errorf("engine: GetItemTags: %w", err)
	}
	return tags, nil
}

// GetTagsByFrecency returns all tags sorted by frecencyScore
// descending (spec.md §4.3 getTagsByFrecency).
func (e *Engine) GetTagsByFrecency() ([]models.Tag, error) {
	tags, err := e.store.GetAllTags()
	if err != nil {
		return nil, fmt.Errorf("engine: GetTagsByFrecency: %w", err)
	}
	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].FrecencyScore > tags[j].FrecencyScore
	})
	return tags, nil
}

// tagItemByNames resolves each name via GetOrCreateTag and links it to
// itemID, in order.
func (e *Engine) tagItemByNames(itemID string, tagNames []string) error {
	for _, name := range tagNames {
		result, err := e.GetOrCreateTag(name)
		if err != nil {
			return err
		}
		if err := e.store.TagItem(itemID, result.Tag.ID); err != nil {
			return fmt.Errorf("engine: tagItemByNames: %w", err)
		}
	}
	return nil
}

// SaveItemResult is the result of SaveItem.
type SaveItemResult struct {
	ID      string
	Created bool
}

// SaveItem is the primary capture entry point (spec.md §4.3 saveItem).
// When syncID is non-empty it takes the sync path: look up by sync ID,
// overwrite in place if found, otherwise create a syncID-stamped item.
// When syncID is empty it always creates a new item.
func (e *Engine) SaveItem(itemType models.ItemType, content string, tagNames []string, metadata, syncID string) (*SaveItemResult, error) {
	if !models.IsValidItemType(itemType) {
		return nil, fmt.Errorf("engine: SaveItem: invalid item type %q", itemType)
	}
	if itemType == models.ItemTypeTagset {
		content = ""
	}
	now := e.nowMillis()
	hasContent := content != ""
	hasMetadata := metadata != ""

	if syncID != "" {
		existing, err := e.store.FindItemBySyncID(syncID)
		if err != nil {
			return nil, fmt.Errorf("engine: SaveItem: %w", err)
		}
		if existing != nil {
			partial := storage.ItemPartial{
				Type:        &itemType,
				Content:     &content,
				HasContent:  &hasContent,
				Metadata:    &metadata,
				HasMetadata: &hasMetadata,
				UpdatedAt:   &now,
			}
			if err := e.store.UpdateItem(existing.ID, partial); err != nil {
				return nil, fmt.Errorf("engine: SaveItem: %w", err)
			}
			if err := e.store.ClearItemTags(existing.ID); err != nil {
				return nil, fmt.Errorf("engine: SaveItem: %w", err)
			}
			if err := e.tagItemByNames(existing.ID, tagNames); err != nil {
				return nil, err
			}
			return &SaveItemResult{ID: existing.ID, Created: false}, nil
		}

		item := &models.Item{
			ID: NewID(), Type: itemType, Content: content, HasContent: hasContent,
			Metadata: metadata, HasMetadata: hasMetadata, SyncID: syncID,
			CreatedAt: now, UpdatedAt: now,
		}
		if err := e.store.InsertItem(item); err != nil {
			return nil, fmt.Errorf("engine: SaveItem: %w", err)
		}
		if err := e.tagItemByNames(item.ID, tagNames); err != nil {
			return nil, err
		}
		return &SaveItemResult{ID: item.ID, Created: true}, nil
	}

	item := &models.Item{
		ID: NewID(), Type: itemType, Content: content, HasContent: hasContent,
		Metadata: metadata, HasMetadata: hasMetadata,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := e.store.InsertItem(item); err != nil {
		return nil, fmt.Errorf("engine: SaveItem: %w", err)
	}
	if err := e.tagItemByNames(item.ID, tagNames); err != nil {
		return nil, err
	}
	return &SaveItemResult{ID: item.ID, Created: true}, nil
}

// DeduplicateResult is the result of DeduplicateItems.
type DeduplicateResult struct {
	RemovedContent  int
	RemovedTagsets  int
}

// DeduplicateItems is a batch garbage collector (spec.md §4.3), run
// off the hot path. It groups non-tagset items by (type, content) and
// tagsets by their sorted tab-joined tag-name key, keeping the
// earliest createdAt in each group (ties broken by id ascending) and
// hard-deleting the rest. Idempotent: a second call removes nothing.
func (e *Engine) DeduplicateItems() (*DeduplicateResult, error) {
	items, err := e.store.GetItems(storage.ItemFilter{})
	if err != nil {
		return nil, fmt.Errorf("engine: DeduplicateItems: %w", err)
	}

	contentGroups := make(map[string][]models.Item)
	var tagsets []models.Item

	for _, it := range items {
		if it.Type == models.ItemTypeTagset {
			tagsets = append(tagsets, it)
			continue
		}
		if !it.HasContent {
			continue
		}
		key := string(it.Type) + "\x00" + it.Content
		contentGroups[key] = append(contentGroups[key], it)
	}

	removedContent := 0
	for _, group := range contentGroups {
		if len(group) < 2 {
			continue
		}
		keep := pickEarliest(group)
		for _, it := range group {
			if it.ID == keep.ID {
				continue
			}
			if err := e.store.HardDeleteItem(it.ID); err != nil {
				return nil, fmt.Errorf("engine: DeduplicateItems: %w", err)
			}
			removedContent++
		}
	}

	tagsetGroups := make(map[string][]models.Item)
	for _, it := range tagsets {
		tags, err := e.store.GetItemTags(it.ID)
		if err != nil {
			return nil, fmt.Errorf("engine: DeduplicateItems: %w", err)
		}
		names := make([]string, len(tags))
		for i, t := range tags {
			names[i] = t.Name
		}
		sort.Strings(names)
		key := strings.Join(names, "\t")
		tagsetGroups[key] = append(tagsetGroups[key], it)
	}

	removedTagsets := 0
	for _, group := range tagsetGroups {
		if len(group) < 2 {
			continue
		}
		keep := pickEarliest(group)
		for _, it := range group {
			if it.ID == keep.ID {
				continue
			}
			if err := e.store.HardDeleteItem(it.ID); err != nil {
				return nil, fmt.Errorf("engine: DeduplicateItems: %w", err)
			}
			removedTagsets++
		}
	}

	return &DeduplicateResult{RemovedContent: removedContent, RemovedTagsets: removedTagsets}, nil
}

// pickEarliest returns the item with smallest CreatedAt, breaking ties
// by id ascending (spec.md §4.3).
func pickEarliest(items []models.Item) models.Item {
	best := items[0]
	for _, it := range items[1:] {
		if it.CreatedAt < best.CreatedAt || (it.CreatedAt == best.CreatedAt && it.ID < best.ID) {
			best = it
		}
	}
	return best
}

// GetSetting delegates to the adapter.
func (e *Engine) GetSetting(key string) (string, bool, error) {
	v, ok, err := e.store.GetSetting(key)
	if err != nil {
		return "", false, fmt.Errorf("engine: GetSetting: %w", err)
	}
	return v, ok, nil
}

// SetSetting delegates to the adapter.
func (e *Engine) SetSetting(key, value string) error {
	if err := e.store.SetSetting(key, value); err != nil {
		return fmt.Errorf("engine: SetSetting: %w", err)
	}
	return nil
}

// Stats is the result of GetStats.
type Stats struct {
	TotalItems   int
	DeletedItems int
	TotalTags    int
	ItemsByType  map[models.ItemType]int
}

// GetStats computes aggregate counts over all items and tags (spec.md
// §4.3 getStats).
func (e *Engine) GetStats() (*Stats, error) {
	all, err := e.store.GetItems(storage.ItemFilter{IncludeDeleted: true})
	if err != nil {
		return nil, fmt.Errorf("engine: GetStats: %w", err)
	}
	tags, err := e.store.GetAllTags()
	if err != nil {
		return nil, fmt.Errorf("engine: GetStats: %w", err)
	}

	stats := &Stats{
		TotalTags: len(tags),
		ItemsByType: map[models.ItemType]int{
			models.ItemTypeURL:    0,
			models.ItemTypeText:   0,
			models.ItemTypeTagset: 0,
			models.ItemTypeImage:  0,
		},
	}
	for _, it := range all {
		stats.TotalItems++
		if !it.IsAlive() {
			stats.DeletedItems++
			continue
		}
		stats.ItemsByType[it.Type]++
	}
	return stats, nil
}
