package engine

import (
	"testing"
	"time"

	"github.com/autonome/peek/internal/frecency"
	"github.com/autonome/peek/internal/models"
	"github.com/autonome/peek/internal/storage/memory"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	store := memory.New()
	if err := store.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store)
}

func withClock(e *Engine, at time.Time) {
	e.now = func() time.Time { return at }
}

// property 1: getItem after deleteItem returns nil.
func TestDeleteItemThenGetReturnsNil(t *testing.T) {
	e := newTestEngine(t)
	item, err := e.AddItem(models.ItemTypeText, AddItemInput{Content: "hi", HasContent: true})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := e.DeleteItem(item.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	got, err := e.GetItem(item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got != nil {
		t.Errorf("GetItem after delete = %+v, want nil", got)
	}
}

// property 2: repeated getOrCreateTag(N) returns same id, strictly
// increasing frequency.
func TestGetOrCreateTagSameIDIncreasingFrequency(t *testing.T) {
	e := newTestEngine(t)
	withClock(e, time.UnixMilli(1_000_000))

	r1, err := e.GetOrCreateTag("golang")
	if err != nil {
		t.Fatalf("GetOrCreateTag: %v", err)
	}
	if !r1.Created {
		t.Fatal("first GetOrCreateTag should report Created=true")
	}

	withClock(e, time.UnixMilli(2_000_000))
	r2, err := e.GetOrCreateTag("GoLang")
	if err != nil {
		t.Fatalf("GetOrCreateTag: %v", err)
	}
	if r2.Created {
		t.Error("second GetOrCreateTag should report Created=false")
	}
	if r2.Tag.ID != r1.Tag.ID {
		t.Errorf("tag id changed: %s -> %s", r1.Tag.ID, r2.Tag.ID)
	}
	if r2.Tag.Frequency <= r1.Tag.Frequency {
		t.Errorf("frequency did not increase: %d -> %d", r1.Tag.Frequency, r2.Tag.Frequency)
	}
	if r2.Tag.Name != "golang" {
		t.Errorf("Name = %q, want original casing %q preserved", r2.Tag.Name, "golang")
	}
}

// property 3: equal lastUsedAt, higher frequency implies higher score.
func TestFrecencyOrderingByFrequency(t *testing.T) {
	e := newTestEngine(t)
	now := time.UnixMilli(5_000_000)
	withClock(e, now)

	for i := 0; i < 5; i++ {
		if _, err := e.GetOrCreateTag("popular"); err != nil {
			t.Fatalf("GetOrCreateTag: %v", err)
		}
	}
	if _, err := e.GetOrCreateTag("rare"); err != nil {
		t.Fatalf("GetOrCreateTag: %v", err)
	}

	tags, err := e.GetTagsByFrecency()
	if err != nil {
		t.Fatalf("GetTagsByFrecency: %v", err)
	}
	var popular, rare *models.Tag
	for i := range tags {
		switch tags[i].Name {
		case "popular":
			popular = &tags[i]
		case "rare":
			rare = &tags[i]
		}
	}
	if popular == nil || rare == nil {
		t.Fatal("expected both tags to exist")
	}
	if !(popular.FrecencyScore > rare.FrecencyScore) {
		t.Errorf("popular.FrecencyScore=%v should exceed rare.FrecencyScore=%v", popular.FrecencyScore, rare.FrecencyScore)
	}
}

// property 4: frecencyScore decreases monotonically as time advances
// without use.
func TestFrecencyDecaysOverTime(t *testing.T) {
	e := newTestEngine(t)
	t0 := time.UnixMilli(10_000_000)
	withClock(e, t0)

	r, err := e.GetOrCreateTag("decaying")
	if err != nil {
		t.Fatalf("GetOrCreateTag: %v", err)
	}
	initial := r.Tag.FrecencyScore

	tag, err := e.store.GetTag(r.Tag.ID)
	if err != nil {
		t.Fatalf("GetTag: %v", err)
	}

	prev := initial
	for _, days := range []int{1, 3, 7, 14} {
		later := t0.Add(time.Duration(days) * 24 * time.Hour)
		score := scoreAt(tag, later)
		if score > prev {
			t.Errorf("score at day %d (%v) increased from previous %v", days, score, prev)
		}
		prev = score
	}
}

func scoreAt(tag *models.Tag, at time.Time) float64 {
	lastUsed := time.UnixMilli(tag.LastUsedAt)
	return frecency.Score(tag.Frequency, lastUsed, at)
}

// property 7: deduplicateItems is idempotent.
func TestDeduplicateItemsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	withClock(e, time.UnixMilli(1000))

	if _, err := e.SaveItem(models.ItemTypeURL, "https://dup.test", nil, "", ""); err != nil {
		t.Fatalf("SaveItem 1: %v", err)
	}
	withClock(e, time.UnixMilli(2000))
	if _, err := e.SaveItem(models.ItemTypeURL, "https://dup.test", nil, "", ""); err != nil {
		t.Fatalf("SaveItem 2: %v", err)
	}
	withClock(e, time.UnixMilli(3000))
	if _, err := e.SaveItem(models.ItemTypeURL, "https://unique.test", nil, "", ""); err != nil {
		t.Fatalf("SaveItem 3: %v", err)
	}

	first, err := e.DeduplicateItems()
	if err != nil {
		t.Fatalf("DeduplicateItems (first): %v", err)
	}
	if first.RemovedContent != 1 {
		t.Errorf("first DeduplicateItems RemovedContent = %d, want 1", first.RemovedContent)
	}

	second, err := e.DeduplicateItems()
	if err != nil {
		t.Fatalf("DeduplicateItems (second): %v", err)
	}
	if second.RemovedContent != 0 || second.RemovedTagsets != 0 {
		t.Errorf("second DeduplicateItems = %+v, want all zero", second)
	}
}

func TestDeduplicateItemsKeepsEarliest(t *testing.T) {
	e := newTestEngine(t)
	withClock(e, time.UnixMilli(5000))
	first, err := e.SaveItem(models.ItemTypeText, "same text", nil, "", "")
	if err != nil {
		t.Fatalf("SaveItem 1: %v", err)
	}
	withClock(e, time.UnixMilli(6000))
	if _, err := e.SaveItem(models.ItemTypeText, "same text", nil, "", ""); err != nil {
		t.Fatalf("SaveItem 2: %v", err)
	}

	if _, err := e.DeduplicateItems(); err != nil {
		t.Fatalf("DeduplicateItems: %v", err)
	}

	got, err := e.GetItem(first.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got == nil {
		t.Fatal("earliest item was removed, want it kept")
	}
}

func TestSaveItemSyncPathOverwritesExisting(t *testing.T) {
	e := newTestEngine(t)
	withClock(e, time.UnixMilli(1000))
	result, err := e.SaveItem(models.ItemTypeText, "original", []string{"a"}, "", "sync-abc")
	if err != nil {
		t.Fatalf("SaveItem create: %v", err)
	}
	if !result.Created {
		t.Fatal("first sync-path SaveItem should create")
	}

	withClock(e, time.UnixMilli(2000))
	result2, err := e.SaveItem(models.ItemTypeText, "updated", []string{"b"}, "", "sync-abc")
	if err != nil {
		t.Fatalf("SaveItem update: %v", err)
	}
	if result2.Created {
		t.Error("second sync-path SaveItem with same syncID should update, not create")
	}
	if result2.ID != result.ID {
		t.Errorf("sync-path update created a new item: %s != %s", result2.ID, result.ID)
	}

	got, err := e.GetItem(result.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Content != "updated" {
		t.Errorf("Content = %q, want %q", got.Content, "updated")
	}

	tags, err := e.GetItemTags(result.ID)
	if err != nil {
		t.Fatalf("GetItemTags: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "b" {
		t.Errorf("tags after sync overwrite = %+v, want [b]", tags)
	}
}

func TestSaveItemNonSyncPathAlwaysCreates(t *testing.T) {
	e := newTestEngine(t)
	withClock(e, time.UnixMilli(1000))
	r1, err := e.SaveItem(models.ItemTypeURL, "https://x.test", nil, "", "")
	if err != nil {
		t.Fatalf("SaveItem 1: %v", err)
	}
	r2, err := e.SaveItem(models.ItemTypeURL, "https://x.test", nil, "", "")
	if err != nil {
		t.Fatalf("SaveItem 2: %v", err)
	}
	if r1.ID == r2.ID {
		t.Error("non-sync SaveItem calls with identical content should create distinct items")
	}
}

// invariant 1: tagsets always have content absent.
func TestAddItemDropsContentForTagset(t *testing.T) {
	e := newTestEngine(t)
	item, err := e.AddItem(models.ItemTypeTagset, AddItemInput{Content: "oops", HasContent: true})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if item.HasContent || item.Content != "" {
		t.Errorf("tagset item = %+v, want content absent", item)
	}
}

// invariant 1: tagsets always have content absent.
func TestSaveItemDropsContentForTagset(t *testing.T) {
	e := newTestEngine(t)
	result, err := e.SaveItem(models.ItemTypeTagset, "oops", []string{"inbox"}, "", "")
	if err != nil {
		t.Fatalf("SaveItem: %v", err)
	}
	got, err := e.GetItem(result.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.HasContent || got.Content != "" {
		t.Errorf("tagset item = %+v, want content absent", got)
	}
}

func TestGetStats(t *testing.T) {
	e := newTestEngine(t)
	withClock(e, time.UnixMilli(1000))

	if _, err := e.SaveItem(models.ItemTypeURL, "https://a.test", nil, "", ""); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}
	deleted, err := e.SaveItem(models.ItemTypeText, "gone", nil, "", "")
	if err != nil {
		t.Fatalf("SaveItem: %v", err)
	}
	if err := e.DeleteItem(deleted.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}

	stats, err := e.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalItems != 2 {
		t.Errorf("TotalItems = %d, want 2", stats.TotalItems)
	}
	if stats.DeletedItems != 1 {
		t.Errorf("DeletedItems = %d, want 1", stats.DeletedItems)
	}
	if stats.ItemsByType[models.ItemTypeURL] != 1 {
		t.Errorf("ItemsByType[url] = %d, want 1", stats.ItemsByType[models.ItemTypeURL])
	}
	if stats.ItemsByType[models.ItemTypeText] != 0 {
		t.Errorf("ItemsByType[text] = %d, want 0 (the text item was deleted)", stats.ItemsByType[models.ItemTypeText])
	}
}
