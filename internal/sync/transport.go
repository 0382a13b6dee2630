package sync

import (
	"time"

	"github.com/autonome/peek/internal/syncclient"
)

// ClientAdapter adapts a *syncclient.Client to the Requester
// interface, translating between the transport package's wire types
// and this package's merge-policy types.
type ClientAdapter struct {
	Client *syncclient.Client
}

// NewClientAdapter wraps client for use as a Requester.
func NewClientAdapter(client *syncclient.Client) *ClientAdapter {
	return &ClientAdapter{Client: client}
}

func (a *ClientAdapter) GetItems(profile string) ([]ServerItem, error) {
	items, err := a.Client.GetItems(profile)
	if err != nil {
		return nil, err
	}
	return convertServerItems(items), nil
}

func (a *ClientAdapter) GetItemsSince(since time.Time, profile string) ([]ServerItem, error) {
	items, err := a.Client.GetItemsSince(since, profile)
	if err != nil {
		return nil, err
	}
	return convertServerItems(items), nil
}

func (a *ClientAdapter) PushItem(item ClientItem, profile string) (*PushResult, error) {
	resp, err := a.Client.PushItem(syncclient.ClientItem{
		Type: item.Type, Content: item.Content, Tags: item.Tags,
		Metadata: item.Metadata, SyncID: item.SyncID,
	}, profile)
	if err != nil {
		return nil, err
	}
	return &PushResult{ID: resp.ID, Created: resp.Created}, nil
}

func convertServerItems(items []syncclient.ServerItem) []ServerItem {
	out := make([]ServerItem, len(items))
	for i, it := range items {
		out[i] = ServerItem{
			ID: it.ID, Type: it.Type, Content: it.Content, Metadata: it.Metadata,
			Tags: it.Tags, CreatedAt: it.CreatedAt, UpdatedAt: it.UpdatedAt,
		}
	}
	return out
}

var _ Requester = (*ClientAdapter)(nil)
