package sync

import (
	"fmt"
	"testing"
	"time"

	"github.com/autonome/peek/internal/engine"
	"github.com/autonome/peek/internal/frecency"
	"github.com/autonome/peek/internal/models"
	"github.com/autonome/peek/internal/storage"
	"github.com/autonome/peek/internal/storage/memory"
)

// fakeRequester is a scripted, in-memory Requester for testing the
// merge/push logic without a real HTTP server.
type fakeRequester struct {
	items         []ServerItem
	pushResponses map[string]PushResult // keyed by sync_id
	pushErr       error
	nextServerID  int
	pushed        []ClientItem
}

func newFakeRequester() *fakeRequester {
	return &fakeRequester{pushResponses: make(map[string]PushResult)}
}

func (f *fakeRequester) GetItems(profile string) ([]ServerItem, error) {
	return f.items, nil
}

func (f *fakeRequester) GetItemsSince(since time.Time, profile string) ([]ServerItem, error) {
	var out []ServerItem
	for _, it := range f.items {
		updated, _ := parseISO(it.UpdatedAt)
		if updated.After(since) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeRequester) PushItem(item ClientItem, profile string) (*PushResult, error) {
	f.pushed = append(f.pushed, item)
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	if resp, ok := f.pushResponses[item.SyncID]; ok {
		return &resp, nil
	}
	f.nextServerID++
	id := fmt.Sprintf("srv-auto-%d", f.nextServerID)
	f.pushResponses[item.SyncID] = PushResult{ID: id, Created: true}
	return &PushResult{ID: id, Created: true}, nil
}

func newTestSetup(t *testing.T) (*Engine, *engine.Engine, *fakeRequester) {
	t.Helper()
	store := memory.New()
	if err := store.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	de := engine.New(store)
	req := newFakeRequester()
	cfg := Config{ServerURL: "https://sync.test", APIKey: "test-key"}
	se := New(store, de, req, cfg)
	return se, de, req
}

func strPtr(s string) *string { return &s }

// S1: pull new server item.
func TestPullNewServerItem(t *testing.T) {
	se, _, req := newTestSetup(t)
	req.items = []ServerItem{{
		ID: "srv-1", Type: "url", Content: strPtr("https://a.test"),
		Tags: []string{"x"}, CreatedAt: "1970-01-01T00:00:01Z", UpdatedAt: "1970-01-01T00:00:02Z",
	}}

	result, err := se.PullFromServer(nil)
	if err != nil {
		t.Fatalf("PullFromServer: %v", err)
	}
	if result.Pulled != 1 || result.Conflicts != 0 {
		t.Fatalf("PullFromServer = %+v, want {Pulled:1, Conflicts:0}", result)
	}

	items, err := se.store.GetItems(storage.ItemFilter{})
	if err != nil {
		t.Fatalf("GetItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	it := items[0]
	if it.SyncID != "srv-1" || it.SyncSource != "server" {
		t.Errorf("item = %+v, want SyncID=srv-1 SyncSource=server", it)
	}
	tags, err := se.store.GetItemTags(it.ID)
	if err != nil {
		t.Fatalf("GetItemTags: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "x" {
		t.Errorf("tags = %+v, want [x]", tags)
	}
}

// S1 repeated: pulling the same server state twice creates no
// duplicate (testable property 5).
func TestPullTwiceNoDuplicate(t *testing.T) {
	se, _, req := newTestSetup(t)
	req.items = []ServerItem{{
		ID: "srv-1", Type: "url", Content: strPtr("https://a.test"),
		Tags: []string{"x"}, CreatedAt: "1970-01-01T00:00:01Z", UpdatedAt: "1970-01-01T00:00:02Z",
	}}

	if _, err := se.PullFromServer(nil); err != nil {
		t.Fatalf("PullFromServer (first): %v", err)
	}
	second, err := se.PullFromServer(intPtr(0))
	if err != nil {
		t.Fatalf("PullFromServer (second): %v", err)
	}
	if second.Pulled != 0 {
		t.Errorf("second pull Pulled = %d, want 0 (no-op on equal timestamps)", second.Pulled)
	}

	items, err := se.store.GetItems(storage.ItemFilter{})
	if err != nil {
		t.Fatalf("GetItems: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("got %d items after two pulls, want 1 (no duplicate)", len(items))
	}
}

func intPtr(n int64) *int64 { return &n }

// S2: push local item.
func TestPushLocalItem(t *testing.T) {
	se, de, req := newTestSetup(t)
	saveResult, err := de.SaveItem(models.ItemTypeText, "hello", []string{"n"}, "", "")
	if err != nil {
		t.Fatalf("SaveItem: %v", err)
	}
	req.pushResponses[saveResult.ID] = PushResult{ID: "srv-push-1", Created: true}

	summary, err := se.PushToServer()
	if err != nil {
		t.Fatalf("PushToServer: %v", err)
	}
	if summary.Pushed != 1 || summary.Failed != 0 {
		t.Fatalf("PushToServer = %+v, want {Pushed:1, Failed:0}", summary)
	}

	it, err := de.GetItem(saveResult.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if it.SyncID != "srv-push-1" || it.SyncSource != "server" || it.SyncedAt == 0 {
		t.Errorf("item after push = %+v, want SyncID=srv-push-1 SyncSource=server SyncedAt>0", it)
	}
}

// S3: conflict, local wins.
func TestPullConflictLocalWins(t *testing.T) {
	se, _, req := newTestSetup(t)
	local := &models.Item{
		ID: "L", Type: models.ItemTypeText, Content: "local content", HasContent: true,
		SyncID: "S", CreatedAt: 1000, UpdatedAt: 5000,
	}
	if err := se.store.InsertItem(local); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}

	req.items = []ServerItem{{
		ID: "S", Type: "text", Content: strPtr("server content"),
		CreatedAt: "1970-01-01T00:00:00Z", UpdatedAt: "1970-01-01T00:00:01Z",
	}}

	result, err := se.PullFromServer(nil)
	if err != nil {
		t.Fatalf("PullFromServer: %v", err)
	}
	if result.Pulled != 0 || result.Conflicts != 1 {
		t.Fatalf("PullFromServer = %+v, want {Pulled:0, Conflicts:1}", result)
	}

	got, err := se.store.GetItem("L")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Content != "local content" {
		t.Errorf("Content = %q, want unchanged local content", got.Content)
	}
}

// S4: re-pushing an already-synced item reuses the server-assigned
// sync_id, so the server recognizes it as the same row on update.
func TestRepushReusesServerAssignedSyncID(t *testing.T) {
	se, de, req := newTestSetup(t)
	item, err := de.AddItem(models.ItemTypeURL, engine.AddItemInput{Content: "https://x.test", HasContent: true})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	req.pushResponses[item.ID] = PushResult{ID: "s1", Created: true}

	if _, err := se.PushToServer(); err != nil {
		t.Fatalf("PushToServer (first): %v", err)
	}
	if len(req.pushed) != 1 || req.pushed[0].SyncID != item.ID {
		t.Fatalf("first push = %+v, want SyncID=%s", req.pushed, item.ID)
	}

	newContent := "https://x.test/updated"
	if err := de.UpdateItem(item.ID, engine.UpdateItemInput{Content: &newContent}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	// Force a deterministic updatedAt > syncedAt regardless of wall-clock
	// granularity between the two calls above.
	synced, err := se.store.GetItem(item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	bumped := synced.UpdatedAt + 1000
	if err := se.store.UpdateItem(item.ID, storage.ItemPartial{UpdatedAt: &bumped}); err != nil {
		t.Fatalf("UpdateItem (bump): %v", err)
	}
	if err := se.store.SetSetting(models.SettingLastSyncTime, "1"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}

	if _, err := se.PushToServer(); err != nil {
		t.Fatalf("PushToServer (second): %v", err)
	}
	if len(req.pushed) != 2 {
		t.Fatalf("expected two pushes, got %d", len(req.pushed))
	}
	if req.pushed[1].SyncID != "s1" {
		t.Errorf("second push SyncID = %q, want s1 (server-assigned id from first push)", req.pushed[1].SyncID)
	}
}

// S6: frecency decay, literal values from spec.md §8.
func TestFrecencyDecayLiteral(t *testing.T) {
	now := time.UnixMilli(0)
	if score := frecency.Score(5, now, now); score != 50 {
		t.Fatalf("score at t=now = %v, want 50", score)
	}
	later := now.Add(7 * 24 * time.Hour)
	if score := frecency.Score(5, now, later); score != 25 {
		t.Fatalf("score after 7 days = %v, want 25", score)
	}
}
