// Package storagetest holds a conformance suite exercised against
// every storage.Store implementation, mirroring the way the teacher's
// internal/db package tests its SQLite adapter directly but shared
// here so the memory and sqlite adapters are held to the identical
// contract.
package storagetest

import (
	"testing"
	"time"

	"github.com/autonome/peek/internal/models"
	"github.com/autonome/peek/internal/storage"
)

// Run exercises the full storage.Store contract against store, which
// must be freshly opened and empty. Callers are responsible for
// calling store.Close() themselves.
func Run(t *testing.T, store storage.Store) {
	t.Helper()
	t.Run("ItemCRUD", func(t *testing.T) { testItemCRUD(t, store) })
	t.Run("GetItemsFilters", func(t *testing.T) { testGetItemsFilters(t, store) })
	t.Run("SoftDelete", func(t *testing.T) { testSoftDelete(t, store) })
	t.Run("HardDelete", func(t *testing.T) { testHardDelete(t, store) })
	t.Run("TagCRUD", func(t *testing.T) { testTagCRUD(t, store) })
	t.Run("ItemTagLinks", func(t *testing.T) { testItemTagLinks(t, store) })
	t.Run("Settings", func(t *testing.T) { testSettings(t, store) })
	t.Run("FindItemBySyncID", func(t *testing.T) { testFindItemBySyncID(t, store) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, store) })
}

func mkItem(id string, now int64) *models.Item {
	return &models.Item{
		ID:         id,
		Type:       models.ItemTypeText,
		Content:    "hello " + id,
		HasContent: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func testItemCRUD(t *testing.T, s storage.Store) {
	it := mkItem("item-crud-1", 1000)
	if err := s.InsertItem(it); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}

	got, err := s.GetItem(it.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got == nil {
		t.Fatal("GetItem returned nil for existing item")
	}
	if got.Content != it.Content {
		t.Errorf("Content = %q, want %q", got.Content, it.Content)
	}

	newContent := "updated content"
	if err := s.UpdateItem(it.ID, storage.ItemPartial{Content: &newContent}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	got, err = s.GetItem(it.ID)
	if err != nil {
		t.Fatalf("GetItem after update: %v", err)
	}
	if got.Content != newContent {
		t.Errorf("Content after update = %q, want %q", got.Content, newContent)
	}

	if _, err := s.GetItem("does-not-exist"); err != nil {
		t.Fatalf("GetItem for missing id returned error instead of nil item: %v", err)
	}
	missing, _ := s.GetItem("does-not-exist")
	if missing != nil {
		t.Error("GetItem for missing id should return nil, nil")
	}
}

func testGetItemsFilters(t *testing.T, s storage.Store) {
	base := int64(10_000)
	url := models.ItemTypeURL
	text := models.ItemTypeText

	items := []*models.Item{
		{ID: "f1", Type: url, Content: "https://a", HasContent: true, CreatedAt: base, UpdatedAt: base},
		{ID: "f2", Type: text, Content: "note", HasContent: true, CreatedAt: base + 1, UpdatedAt: base + 1},
		{ID: "f3", Type: text, Content: "note2", HasContent: true, CreatedAt: base + 2, UpdatedAt: base + 2},
	}
	for _, it := range items {
		if err := s.InsertItem(it); err != nil {
			t.Fatalf("InsertItem(%s): %v", it.ID, err)
		}
	}

	all, err := s.GetItems(storage.ItemFilter{})
	if err != nil {
		t.Fatalf("GetItems: %v", err)
	}
	if len(all) < 3 {
		t.Fatalf("GetItems returned %d items, want at least 3", len(all))
	}

	byType, err := s.GetItems(storage.ItemFilter{Type: &text})
	if err != nil {
		t.Fatalf("GetItems by type: %v", err)
	}
	for _, it := range byType {
		if it.Type != text {
			t.Errorf("GetItems filtered by type returned item of type %s", it.Type)
		}
	}

	since := base
	newer, err := s.GetItems(storage.ItemFilter{Since: &since})
	if err != nil {
		t.Fatalf("GetItems by since: %v", err)
	}
	for _, it := range newer {
		if it.UpdatedAt <= since {
			t.Errorf("GetItems(Since=%d) returned item with UpdatedAt=%d", since, it.UpdatedAt)
		}
	}
	for i := 1; i < len(newer); i++ {
		if newer[i-1].UpdatedAt > newer[i].UpdatedAt {
			t.Error("GetItems(Since=...) results not ascending by UpdatedAt")
		}
	}
}

func testSoftDelete(t *testing.T, s storage.Store) {
	it := mkItem("soft-del-1", 2000)
	if err := s.InsertItem(it); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
	beforeDelete := time.Now().UnixMilli()
	if err := s.DeleteItem(it.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	got, err := s.GetItem(it.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got != nil {
		t.Error("GetItem returned a soft-deleted item")
	}

	all, err := s.GetItems(storage.ItemFilter{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("GetItems IncludeDeleted: %v", err)
	}
	found := false
	for _, cand := range all {
		if cand.ID == it.ID {
			found = true
			if cand.DeletedAt == 0 {
				t.Error("soft-deleted item has DeletedAt == 0")
			}
			// DeletedAt and UpdatedAt must reflect the wall-clock moment
			// of the DeleteItem call, not a stale field carried over from
			// the item as it stood before deletion (it was inserted with
			// CreatedAt/UpdatedAt == 2000).
			if cand.DeletedAt < beforeDelete {
				t.Errorf("DeletedAt = %d, want >= %d (wall time at delete, not the item's prior UpdatedAt)", cand.DeletedAt, beforeDelete)
			}
			if cand.UpdatedAt < beforeDelete {
				t.Errorf("UpdatedAt = %d, want >= %d (wall time at delete)", cand.UpdatedAt, beforeDelete)
			}
			if cand.UpdatedAt != cand.DeletedAt {
				t.Errorf("UpdatedAt = %d, DeletedAt = %d, want equal per spec.md §4.1 soft delete", cand.UpdatedAt, cand.DeletedAt)
			}
		}
	}
	if !found {
		t.Error("GetItems(IncludeDeleted: true) did not return the soft-deleted item")
	}

	if err := s.DeleteItem(it.ID); err != nil {
		t.Errorf("DeleteItem on already-deleted item should be a no-op, got error: %v", err)
	}

	if err := s.DeleteItem("missing-item"); err == nil {
		t.Error("DeleteItem on missing item should return an error")
	}
}

func testHardDelete(t *testing.T, s storage.Store) {
	it := mkItem("hard-del-1", 3000)
	if err := s.InsertItem(it); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
	tag := &models.Tag{ID: "hard-del-tag", Name: "hdtag", Frequency: 1, LastUsedAt: 3000, CreatedAt: 3000, UpdatedAt: 3000}
	if err := s.InsertTag(tag); err != nil {
		t.Fatalf("InsertTag: %v", err)
	}
	if err := s.TagItem(it.ID, tag.ID); err != nil {
		t.Fatalf("TagItem: %v", err)
	}

	if err := s.HardDeleteItem(it.ID); err != nil {
		t.Fatalf("HardDeleteItem: %v", err)
	}

	all, _ := s.GetItems(storage.ItemFilter{IncludeDeleted: true})
	for _, cand := range all {
		if cand.ID == it.ID {
			t.Error("item still present after HardDeleteItem")
		}
	}

	links, err := s.GetItemTags(it.ID)
	if err != nil {
		t.Fatalf("GetItemTags after hard delete: %v", err)
	}
	if len(links) != 0 {
		t.Error("item_tags link survived HardDeleteItem")
	}
}

func testTagCRUD(t *testing.T, s storage.Store) {
	tag := &models.Tag{ID: "tag-crud-1", Name: "golang", Frequency: 1, LastUsedAt: 4000, CreatedAt: 4000, UpdatedAt: 4000}
	if err := s.InsertTag(tag); err != nil {
		t.Fatalf("InsertTag: %v", err)
	}

	got, err := s.GetTag(tag.ID)
	if err != nil {
		t.Fatalf("GetTag: %v", err)
	}
	if got == nil || got.Name != "golang" {
		t.Fatalf("GetTag = %+v, want Name=golang", got)
	}

	byName, err := s.GetTagByName("GoLang")
	if err != nil {
		t.Fatalf("GetTagByName: %v", err)
	}
	if byName == nil || byName.ID != tag.ID {
		t.Error("GetTagByName should be case-insensitive")
	}

	freq := 5
	if err := s.UpdateTag(tag.ID, storage.TagPartial{Frequency: &freq}); err != nil {
		t.Fatalf("UpdateTag: %v", err)
	}
	got, _ = s.GetTag(tag.ID)
	if got.Frequency != 5 {
		t.Errorf("Frequency after update = %d, want 5", got.Frequency)
	}

	if err := s.UpdateTag("missing-tag", storage.TagPartial{Frequency: &freq}); err == nil {
		t.Error("UpdateTag on missing tag should return an error")
	}

	all, err := s.GetAllTags()
	if err != nil {
		t.Fatalf("GetAllTags: %v", err)
	}
	found := false
	for _, cand := range all {
		if cand.ID == tag.ID {
			found = true
		}
	}
	if !found {
		t.Error("GetAllTags did not include inserted tag")
	}
}

func testItemTagLinks(t *testing.T, s storage.Store) {
	it := mkItem("link-item-1", 5000)
	if err := s.InsertItem(it); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
	t1 := &models.Tag{ID: "link-tag-1", Name: "alpha", Frequency: 1, LastUsedAt: 5000, CreatedAt: 5000, UpdatedAt: 5000}
	t2 := &models.Tag{ID: "link-tag-2", Name: "beta", Frequency: 1, LastUsedAt: 5000, CreatedAt: 5000, UpdatedAt: 5000}
	for _, tag := range []*models.Tag{t1, t2} {
		if err := s.InsertTag(tag); err != nil {
			t.Fatalf("InsertTag(%s): %v", tag.ID, err)
		}
	}

	if err := s.TagItem(it.ID, t1.ID); err != nil {
		t.Fatalf("TagItem: %v", err)
	}
	if err := s.TagItem(it.ID, t1.ID); err != nil {
		t.Fatalf("TagItem idempotent call: %v", err)
	}
	if err := s.TagItem(it.ID, t2.ID); err != nil {
		t.Fatalf("TagItem: %v", err)
	}

	tags, err := s.GetItemTags(it.ID)
	if err != nil {
		t.Fatalf("GetItemTags: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("GetItemTags returned %d tags, want 2", len(tags))
	}

	items, err := s.GetItemsByTag(t1.ID)
	if err != nil {
		t.Fatalf("GetItemsByTag: %v", err)
	}
	if len(items) != 1 || items[0].ID != it.ID {
		t.Errorf("GetItemsByTag(%s) = %+v, want [%s]", t1.ID, items, it.ID)
	}

	if err := s.UntagItem(it.ID, t1.ID); err != nil {
		t.Fatalf("UntagItem: %v", err)
	}
	tags, _ = s.GetItemTags(it.ID)
	if len(tags) != 1 {
		t.Fatalf("GetItemTags after UntagItem = %d, want 1", len(tags))
	}

	if err := s.ClearItemTags(it.ID); err != nil {
		t.Fatalf("ClearItemTags: %v", err)
	}
	tags, _ = s.GetItemTags(it.ID)
	if len(tags) != 0 {
		t.Errorf("GetItemTags after ClearItemTags = %d, want 0", len(tags))
	}
}

func testSettings(t *testing.T, s storage.Store) {
	if _, ok, err := s.GetSetting("missing-key"); err != nil || ok {
		t.Fatalf("GetSetting(missing) = (_, %v, %v), want (_, false, nil)", ok, err)
	}

	if err := s.SetSetting("k1", "v1"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	v, ok, err := s.GetSetting("k1")
	if err != nil || !ok || v != "v1" {
		t.Fatalf("GetSetting(k1) = (%q, %v, %v), want (v1, true, nil)", v, ok, err)
	}

	if err := s.SetSetting("k1", "v2"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}
	v, _, _ = s.GetSetting("k1")
	if v != "v2" {
		t.Errorf("GetSetting(k1) after overwrite = %q, want v2", v)
	}
}

func testFindItemBySyncID(t *testing.T, s storage.Store) {
	it := &models.Item{
		ID: "find-item-1", Type: models.ItemTypeText, Content: "c", HasContent: true,
		SyncID: "remote-sync-id-1", CreatedAt: 6000, UpdatedAt: 6000,
	}
	if err := s.InsertItem(it); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}

	byID, err := s.FindItemBySyncID(it.ID)
	if err != nil || byID == nil || byID.ID != it.ID {
		t.Fatalf("FindItemBySyncID(local id) = %+v, %v", byID, err)
	}

	bySync, err := s.FindItemBySyncID(it.SyncID)
	if err != nil || bySync == nil || bySync.ID != it.ID {
		t.Fatalf("FindItemBySyncID(sync id) = %+v, %v", bySync, err)
	}

	none, err := s.FindItemBySyncID("nonexistent")
	if err != nil || none != nil {
		t.Fatalf("FindItemBySyncID(nonexistent) = %+v, %v, want nil, nil", none, err)
	}
}

func testUpdateMissing(t *testing.T, s storage.Store) {
	newContent := "x"
	if err := s.UpdateItem("no-such-item", storage.ItemPartial{Content: &newContent}); err == nil {
		t.Error("UpdateItem on missing item should return an error")
	}
}
