package repository

import (
	"strconv"

	"github.com/pesio-ai/be-prepress-worklist/internal/workitem"
)

// WriteResult is what an adapter reports after a write and re-read.
type WriteResult struct {
	// Fields are the wire fields the write changed.
	Fields []string
	// Persisted is the record as re-read after the write.
	Persisted workitem.WorkItem
	// Mismatches lists fields whose persisted value differs from the
	// written value. Empty means verified.
	Mismatches []string
}

// WorklistRow is a shard worklist row plus the ledger id used to filter
// it per user.
type WorklistRow struct {
	workitem.PendingRow
	LedgerID *int64
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Stored values are normalised on read so the rules engine only ever sees
// canonical spellings.

func normalizeRequired(raw string) workitem.YesNo {
	v, _ := workitem.NormalizeYesNo(raw)
	return v
}

func normalizeStatus(raw string) workitem.ApprovalStatus {
	v, _ := workitem.NormalizeApprovalStatus(raw)
	return v
}

func normalizeFileStatus(raw string) workitem.FileStatus {
	v, _ := workitem.NormalizeFileStatus(raw)
	return v
}
