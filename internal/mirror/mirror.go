// Package mirror keeps household devices in sync by exchanging whole
// collection snapshots over websockets. Conflicts resolve last-write-wins.
package mirror

import (
	"context"
	"encoding/json"
)

const (
	CollectionHistory     = "history"
	CollectionMembers     = "members"
	CollectionAssignments = "assignments"
)

// Mirror is a remote copy of the household's collections.
type Mirror interface {
	// PushSnapshot replaces the remote copy of collection with v.
	PushSnapshot(ctx context.Context, collection string, v any) error
	// OnRemoteUpdate registers fn for snapshots of collection pushed by
	// other devices. The returned func unregisters it.
	OnRemoteUpdate(collection string, fn func(data json.RawMessage)) func()
}

const typeSnapshot = "snapshot"

// Message is the wire format in both directions.
type Message struct {
	Type       string          `json:"type"`
	Collection string          `json:"collection"`
	Data       json.RawMessage `json:"data"`
}
