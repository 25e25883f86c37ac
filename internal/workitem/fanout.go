package workitem

import (
	"sort"
	"strings"
	"time"
)

// Operation labels for fanned-out rows.
const (
	OperationPlateOutput    = "Plate Output"
	OperationToolingDie     = "Tooling Die"
	OperationToolingBlock   = "Tooling Block"
	OperationToolingBlanket = "Tooling Blanket"
)

// resolvedToolingTokens are readiness values that need no further work.
// An empty token means the dimension is not tracked for the job.
var resolvedToolingTokens = map[string]bool{
	"":             true,
	"ready":        true,
	"not required": true,
	"notrequired":  true,
	"na":           true,
	"n/a":          true,
	"no":           true,
}

// ResolvedToolingTokens lists the non-empty tokens treated as resolved,
// lower-cased.
func ResolvedToolingTokens() []string {
	out := make([]string, 0, len(resolvedToolingTokens))
	for token := range resolvedToolingTokens {
		if token != "" {
			out = append(out, token)
		}
	}
	sort.Strings(out)
	return out
}

// ToolingOutstanding reports whether a die, block or blanket token still
// needs work.
func ToolingOutstanding(token string) bool {
	return !resolvedToolingTokens[strings.ToLower(strings.TrimSpace(token))]
}

// PlateOutstanding reports whether plate output still needs work.
func PlateOutstanding(output string) bool {
	v := strings.TrimSpace(output)
	return v != "" && !tokenIs(v, PlateDone)
}

// ApprovalOutstanding reports whether a required approval is not yet
// approved.
func ApprovalOutstanding(a Approval) bool {
	return a.Required == Yes && a.Status != StatusApproved
}

// FanOut expands a document record into one row per outstanding
// dimension: plate output, die, block, blanket, then soft, hard and
// machine-proof approval. Approval rows are skipped once the record is
// finally approved. A fully resolved record yields no rows.
func FanOut(w WorkItem) []PendingRow {
	var rows []PendingRow
	emit := func(operation string, plan *time.Time) {
		rows = append(rows, PendingRow{
			Provenance: w.Key.Provenance,
			StoreID:    w.Key.ID,
			JobNumber:  w.JobNumber,
			ClientName: w.ClientName,
			Reference:  w.Reference,
			Remarks:    w.Remarks,
			FileStatus: w.FileStatus,
			Operation:  operation,
			PlanDate:   plan,
		})
	}

	if PlateOutstanding(w.Plate.Output) {
		emit(OperationPlateOutput, w.Plate.PlanDate)
	}
	if ToolingOutstanding(w.Tooling.Die) {
		emit(OperationToolingDie, nil)
	}
	if ToolingOutstanding(w.Tooling.Block) {
		emit(OperationToolingBlock, nil)
	}
	if ToolingOutstanding(w.Tooling.Blanket) {
		emit(OperationToolingBlanket, w.Tooling.BlanketPlanDate)
	}
	if w.Final.Approved {
		return rows
	}
	for _, kind := range ApprovalKinds() {
		a := *w.Approval(kind)
		if ApprovalOutstanding(a) {
			emit(kind.Label(), a.PlanDate)
		}
	}
	return rows
}
