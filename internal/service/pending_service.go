package service

import (
	"context"
	"strings"

	"github.com/pesio-ai/be-prepress-worklist/internal/platform/errors"
	"github.com/pesio-ai/be-prepress-worklist/internal/platform/logger"
	"github.com/pesio-ai/be-prepress-worklist/internal/workitem"
)

// SourceStats describes what one store contributed to a pending query.
type SourceStats struct {
	Source   string `json:"source"`
	Identity string `json:"identity,omitempty"`
	Total    int    `json:"total"`
	Matched  int    `json:"matched"`
	Error    string `json:"error,omitempty"`
}

// PendingResult is the aggregated worklist for one user.
type PendingResult struct {
	Username string                `json:"username"`
	Rows     []workitem.PendingRow `json:"rows"`
	Sources  []SourceStats         `json:"sources"`
}

// PendingService aggregates outstanding work from every store.
type PendingService struct {
	identity *IdentityService
	shards   []ShardWorklist
	docs     DocumentWorklist
	log      *logger.Logger
}

// NewPendingService creates a new PendingService. Shards are queried in
// the order given.
func NewPendingService(identity *IdentityService, shards []ShardWorklist, docs DocumentWorklist, log *logger.Logger) *PendingService {
	return &PendingService{identity: identity, shards: shards, docs: docs, log: log}
}

// FetchPendingForUser returns shard rows followed by fanned-out document
// rows. A failing store contributes no rows and is reported in Sources.
func (s *PendingService) FetchPendingForUser(ctx context.Context, username string) (*PendingResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.InvalidInput("username", "username is required")
	}

	result := &PendingResult{Username: username, Rows: make([]workitem.PendingRow, 0)}

	for _, shard := range s.shards {
		rows, stats := s.fetchShard(ctx, shard, username)
		result.Rows = append(result.Rows, rows...)
		result.Sources = append(result.Sources, stats)
	}

	rows, stats := s.fetchDocuments(ctx, username)
	result.Rows = append(result.Rows, rows...)
	result.Sources = append(result.Sources, stats)

	s.log.Info().
		Str("username", username).
		Int("rows", len(result.Rows)).
		Msg("Pending worklist aggregated")

	return result, nil
}

func (s *PendingService) fetchShard(ctx context.Context, shard ShardWorklist, username string) ([]workitem.PendingRow, SourceStats) {
	source := shard.Shard()
	stats := SourceStats{Source: source.String()}

	ledgerID, idErr := s.identity.ResolveLedgerID(ctx, source, username)
	if idErr != nil {
		s.log.Warn().Err(idErr).Str("source", source.String()).Msg("Ledger id lookup failed")
	}
	if ledgerID != nil {
		stats.Identity = formatLedgerID(*ledgerID)
	}

	worklist, err := shard.PendingWorklist(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("source", source.String()).Msg("Shard worklist unavailable, skipping")
		stats.Error = err.Error()
		return nil, stats
	}
	stats.Total = len(worklist)

	if idErr != nil {
		stats.Error = idErr.Error()
		return nil, stats
	}
	if ledgerID == nil {
		return nil, stats
	}

	var rows []workitem.PendingRow
	for _, row := range worklist {
		if row.LedgerID != nil && *row.LedgerID == *ledgerID {
			rows = append(rows, row.PendingRow)
		}
	}
	stats.Matched = len(rows)
	return rows, stats
}

func (s *PendingService) fetchDocuments(ctx context.Context, username string) ([]workitem.PendingRow, SourceStats) {
	stats := SourceStats{Source: workitem.Document.String()}

	key, err := s.identity.ResolveUserKey(ctx, username)
	if err != nil {
		s.log.Warn().Err(err).Msg("User key lookup failed, skipping documents")
		stats.Error = err.Error()
		return nil, stats
	}
	if key == nil {
		return nil, stats
	}
	stats.Identity = *key

	docs, err := s.docs.PendingForUser(ctx, *key)
	if err != nil {
		s.log.Warn().Err(err).Msg("Document store unavailable, skipping")
		stats.Error = err.Error()
		return nil, stats
	}
	stats.Total = len(docs)

	var rows []workitem.PendingRow
	for _, doc := range docs {
		fanned := workitem.FanOut(doc)
		if len(fanned) > 0 {
			stats.Matched++
		}
		rows = append(rows, fanned...)
	}
	return rows, stats
}
