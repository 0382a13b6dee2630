// Package memory provides an in-process, map-backed storage.Store
// implementation for tests and short-lived embeddings of peek. It has
// no on-disk footprint and is safe under spec.md §5's single-threaded
// assumption, guarded by a mutex purely as a defensive measure.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/autonome/peek/internal/models"
	"github.com/autonome/peek/internal/storage"
)

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu       sync.Mutex
	items    map[string]models.Item
	tags     map[string]models.Tag
	itemTags map[string]map[string]models.ItemTag // itemID -> tagID -> link
	settings map[string]string
}

// New creates an empty in-memory store. Open/Close are no-ops.
func New() *Store {
	return &Store{
		items:    make(map[string]models.Item),
		tags:     make(map[string]models.Tag),
		itemTags: make(map[string]map[string]models.ItemTag),
		settings: make(map[string]string),
	}
}

func (s *Store) Open() error  { return nil }
func (s *Store) Close() error { return nil }

func (s *Store) GetItem(id string) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok || !it.IsAlive() {
		return nil, nil
	}
	cp := it
	return &cp, nil
}

func (s *Store) GetItems(filter storage.ItemFilter) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Item
	for _, it := range s.items {
		if !filter.IncludeDeleted && !it.IsAlive() {
			continue
		}
		if filter.Type != nil && it.Type != *filter.Type {
			continue
		}
		if filter.Since != nil && it.UpdatedAt <= *filter.Since {
			continue
		}
		out = append(out, it)
	}

	if filter.Since != nil {
		sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt < out[j].UpdatedAt })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	}
	return out, nil
}

func (s *Store) InsertItem(item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = *item
	return nil
}

func (s *Store) UpdateItem(id string, p storage.ItemPartial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return storage.Wrap("UpdateItem", storage.ErrNotFound)
	}
	applyItemPartial(&it, p)
	s.items[id] = it
	return nil
}

func applyItemPartial(it *models.Item, p storage.ItemPartial) {
	if p.Type != nil {
		it.Type = *p.Type
	}
	if p.Content != nil {
		it.Content = *p.Content
	}
	if p.HasContent != nil {
		it.HasContent = *p.HasContent
	}
	if p.Metadata != nil {
		it.Metadata = *p.Metadata
	}
	if p.HasMetadata != nil {
		it.HasMetadata = *p.HasMetadata
	}
	if p.SyncID != nil {
		it.SyncID = *p.SyncID
	}
	if p.SyncSource != nil {
		it.SyncSource = *p.SyncSource
	}
	if p.SyncedAt != nil {
		it.SyncedAt = *p.SyncedAt
	}
	if p.UpdatedAt != nil {
		it.UpdatedAt = *p.UpdatedAt
	}
	if p.CreatedAt != nil {
		it.CreatedAt = *p.CreatedAt
	}
	if p.DeletedAt != nil {
		it.DeletedAt = *p.DeletedAt
	}
}

func (s *Store) DeleteItem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return storage.Wrap("DeleteItem", storage.ErrNotFound)
	}
	if it.DeletedAt != 0 {
		return nil // already deleted, no-op
	}
	now := time.Now().UnixMilli()
	it.DeletedAt = now
	it.UpdatedAt = now
	s.items[id] = it
	return nil
}

func (s *Store) HardDeleteItem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	delete(s.itemTags, id)
	return nil
}

func (s *Store) GetTag(id string) (*models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tags[id]
	if !ok {
		return nil, nil
	}
	cp := t
	return &cp, nil
}

func (s *Store) GetTagByName(name string) (*models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(name)
	for _, t := range s.tags {
		if strings.ToLower(t.Name) == lower {
			cp := t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) InsertTag(tag *models.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[tag.ID] = *tag
	return nil
}

func (s *Store) UpdateTag(id string, p storage.TagPartial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tags[id]
	if !ok {
		return storage.Wrap("UpdateTag", storage.ErrNotFound)
	}
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Frequency != nil {
		t.Frequency = *p.Frequency
	}
	if p.LastUsedAt != nil {
		t.LastUsedAt = *p.LastUsedAt
	}
	if p.FrecencyScore != nil {
		t.FrecencyScore = *p.FrecencyScore
	}
	if p.UpdatedAt != nil {
		t.UpdatedAt = *p.UpdatedAt
	}
	s.tags[id] = t
	return nil
}

func (s *Store) GetAllTags() ([]models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FrecencyScore > out[j].FrecencyScore })
	return out, nil
}

func (s *Store) GetItemTags(itemID string) ([]models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	links := s.itemTags[itemID]
	out := make([]models.Tag, 0, len(links))
	for tagID := range links {
		if t, ok := s.tags[tagID]; ok {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetItemsByTag(tagID string) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Item
	for itemID, links := range s.itemTags {
		if _, ok := links[tagID]; !ok {
			continue
		}
		if it, ok := s.items[itemID]; ok && it.IsAlive() {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

func (s *Store) TagItem(itemID, tagID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	links, ok := s.itemTags[itemID]
	if !ok {
		links = make(map[string]models.ItemTag)
		s.itemTags[itemID] = links
	}
	if _, exists := links[tagID]; exists {
		return nil // idempotent
	}
	links[tagID] = models.ItemTag{ItemID: itemID, TagID: tagID}
	return nil
}

func (s *Store) UntagItem(itemID, tagID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if links, ok := s.itemTags[itemID]; ok {
		delete(links, tagID)
	}
	return nil
}

func (s *Store) ClearItemTags(itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.itemTags, itemID)
	return nil
}

func (s *Store) GetSetting(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *Store) SetSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *Store) FindItemBySyncID(idOrSyncID string) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if it, ok := s.items[idOrSyncID]; ok && it.IsAlive() {
		cp := it
		return &cp, nil
	}
	for _, it := range s.items {
		if it.SyncID == idOrSyncID && it.IsAlive() {
			cp := it
			return &cp, nil
		}
	}
	return nil, nil
}

var _ storage.Store = (*Store)(nil)
