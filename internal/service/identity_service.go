package service

import (
	"context"
	"strings"

	"github.com/pesio-ai/be-prepress-worklist/internal/platform/errors"
	"github.com/pesio-ai/be-prepress-worklist/internal/platform/logger"
	"github.com/pesio-ai/be-prepress-worklist/internal/workitem"
)

// IdentityService resolves display names to store-specific identities.
// Each lookup is scoped to one store; a miss is nil, not an error.
type IdentityService struct {
	ledger LedgerUsers
	docs   DocumentUsers
	log    *logger.Logger
}

// NewIdentityService creates a new IdentityService
func NewIdentityService(ledger LedgerUsers, docs DocumentUsers, log *logger.Logger) *IdentityService {
	return &IdentityService{ledger: ledger, docs: docs, log: log}
}

// ResolveLedgerID returns the ledger id of displayName in one shard.
func (s *IdentityService) ResolveLedgerID(ctx context.Context, shard workitem.Provenance, displayName string) (*int64, error) {
	if !shard.IsShard() {
		return nil, errors.InvalidInput("provenance", shard.String()+" has no ledger ids")
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, nil
	}
	id, err := s.ledger.LedgerIDByName(ctx, shard, name)
	if err == nil && id == nil {
		s.log.Debug().Str("shard", shard.String()).Str("name", name).Msg("No active ledger user")
	}
	return id, err
}

// ResolveLedgerIDByKey returns the ledger id carrying userKey in one
// shard.
func (s *IdentityService) ResolveLedgerIDByKey(ctx context.Context, shard workitem.Provenance, userKey string) (*int64, error) {
	if !shard.IsShard() {
		return nil, errors.InvalidInput("provenance", shard.String()+" has no ledger ids")
	}
	key := strings.TrimSpace(userKey)
	if key == "" {
		return nil, nil
	}
	return s.ledger.LedgerIDByKey(ctx, shard, key)
}

// ResolveUserKey returns the document store key of displayName, lower
// cased.
func (s *IdentityService) ResolveUserKey(ctx context.Context, displayName string) (*string, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, nil
	}
	key, err := s.docs.UserKeyByName(ctx, name)
	if err != nil || key == nil {
		return nil, err
	}
	lower := strings.ToLower(*key)
	return &lower, nil
}
