package sync

import "time"

// Requester is the transport contract the sync engine needs (spec.md
// §4.4); ClientAdapter, wrapping *syncclient.Client, satisfies it. Keeping this as an
// interface defined here, not in syncclient, means the merge policy
// in this package never imports net/http directly — mirroring how the
// teacher's internal/sync package is decoupled from internal/syncclient.
type Requester interface {
	GetItems(profile string) ([]ServerItem, error)
	GetItemsSince(since time.Time, profile string) ([]ServerItem, error)
	PushItem(item ClientItem, profile string) (*PushResult, error)
}

// ServerItem mirrors syncclient.ServerItem; kept as a distinct type so
// this package's merge logic has no compile-time dependency on the
// transport package's wire-shape details beyond what Requester exposes.
type ServerItem struct {
	ID        string
	Type      string
	Content   *string
	Metadata  *string
	Tags      []string
	CreatedAt string
	UpdatedAt string
}

// ClientItem mirrors syncclient.ClientItem.
type ClientItem struct {
	Type     string
	Content  string
	Tags     []string
	Metadata *string
	SyncID   string
}

// PushResult mirrors syncclient.PushResponse.
type PushResult struct {
	ID      string
	Created bool
}

// Config carries the sync engine's runtime configuration (spec.md
// §4.4: "provided by callbacks so the host chooses storage"). Config
// is a plain value here; the host supplies it to New (or later via
// Engine.Configure) and
// persists it (e.g. through internal/syncconfig) however it likes.
type Config struct {
	ServerURL       string
	APIKey          string
	ServerProfileID string
}

// PullResult is the result of PullFromServer.
type PullResult struct {
	Pulled    int
	Conflicts int
}

// PushSummary is the result of PushToServer.
type PushSummary struct {
	Pushed int
	Failed int
}

// SyncAllResult is the result of SyncAll.
type SyncAllResult struct {
	Pulled        int
	Pushed        int
	Conflicts     int
	Failed        int
	LastSyncTime  int64
}

// Status is the result of GetSyncStatus.
type Status struct {
	Configured   bool
	LastSyncTime int64
	PendingCount int
}
