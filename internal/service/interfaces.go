package service

import (
	"context"

	"github.com/pesio-ai/be-prepress-worklist/internal/client"
	"github.com/pesio-ai/be-prepress-worklist/internal/repository"
	"github.com/pesio-ai/be-prepress-worklist/internal/workitem"
)

// WorkItemStore is the load/persist capability every store adapter
// offers. One adapter exists per provenance.
type WorkItemStore interface {
	Load(ctx context.Context, key workitem.Key) (*workitem.WorkItem, error)
	Persist(ctx context.Context, current, derived workitem.WorkItem, actingUser string) (*repository.WriteResult, error)
}

// ShardWorklist runs a shard's pending worklist.
type ShardWorklist interface {
	Shard() workitem.Provenance
	PendingWorklist(ctx context.Context) ([]repository.WorklistRow, error)
}

// DocumentWorklist finds documents pending for a user key.
type DocumentWorklist interface {
	PendingForUser(ctx context.Context, userKey string) ([]workitem.WorkItem, error)
}

// LedgerUsers looks up shard ledger ids.
type LedgerUsers interface {
	LedgerIDByName(ctx context.Context, shard workitem.Provenance, displayName string) (*int64, error)
	LedgerIDByKey(ctx context.Context, shard workitem.Provenance, userKey string) (*int64, error)
}

// DocumentUsers looks up document store user keys.
type DocumentUsers interface {
	UserKeyByName(ctx context.Context, displayName string) (*string, error)
}

// EventPublisher receives update events. Implementations must not block
// or fail the caller.
type EventPublisher interface {
	PublishWorkItemUpdated(event client.WorkItemEvent)
}
