// Package rules derives the dependent approval, plate and tooling fields of
// a work item from a partial update.
//
// Merge is pure: it performs no I/O, never fails, and re-applying the same
// update to its own output with the same clock yields the same record.
package rules

import (
	"strings"
	"time"

	"github.com/pesio-ai/be-prepress-worklist/internal/workitem"
)

// Clock supplies "now" for date stamping.
type Clock func() time.Time

// Engine applies the approval rules.
type Engine struct {
	now Clock
}

// New creates an engine. A nil clock uses time.Now.
func New(now Clock) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// Merge applies update over current and derives every dependent field.
// The steps run in a fixed order; later steps read the results of
// earlier ones.
func (e *Engine) Merge(current workitem.WorkItem, update workitem.Update) workitem.WorkItem {
	now := e.now().UTC()

	out := update.ApplyTo(current)
	deriveFileStatus(&out, now)
	derivePlanDates(&out)
	for _, kind := range workitem.ApprovalKinds() {
		reconcile(*current.Approval(kind), out.Approval(kind), *update.Approval(kind), now)
	}
	deriveFinalApproval(&out, now)
	derivePlate(&out, now)
	deriveTooling(&out, now)
	return out
}

func deriveFileStatus(w *workitem.WorkItem, now time.Time) {
	switch w.FileStatus {
	case workitem.FileReceived, workitem.FileOld:
		backfill(&w.FileReceivedDate, now)
	case workitem.FilePending:
		w.FileReceivedDate = nil
	}
}

func derivePlanDates(w *workitem.WorkItem) {
	if w.FileReceivedDate == nil {
		return
	}
	for _, kind := range workitem.ApprovalKinds() {
		a := w.Approval(kind)
		if a.Required == workitem.Yes && a.PlanDate == nil {
			plan := w.FileReceivedDate.Add(kind.PlanOffset())
			a.PlanDate = &plan
		}
	}
}

// reconcile runs only for a dimension whose required or status field was
// supplied.
func reconcile(prev workitem.Approval, a *workitem.Approval, u workitem.ApprovalUpdate, now time.Time) {
	if !u.Touched() {
		return
	}
	if !u.Required.Present() {
		stampStatus(a, now)
		return
	}

	if prev.Required == workitem.No && a.Required == workitem.Yes &&
		a.Status == workitem.StatusApproved && !u.Status.Present() {
		a.Status = workitem.StatusPending
	}

	switch a.Required {
	case workitem.No:
		a.Status = workitem.StatusApproved
		backfill(&a.ActualDate, now)
		backfill(&a.PlanDate, now)
	case workitem.Yes:
		if a.Status == "" {
			a.Status = workitem.StatusPending
		}
		stampStatus(a, now)
	default:
		if u.Status.Present() {
			stampStatus(a, now)
		}
	}
}

func stampStatus(a *workitem.Approval, now time.Time) {
	switch a.Status {
	case workitem.StatusSent:
		backfill(&a.ActualDate, now)
	case workitem.StatusRedo:
		a.ActualDate = nil
	}
}

// deriveFinalApproval stamps the approved date once and clears it on any
// revert. While approved, a missing blanket plan date is seeded from the
// approved date.
func deriveFinalApproval(w *workitem.WorkItem, now time.Time) {
	w.Final.Approved = w.AllApproved()
	if !w.Final.Approved {
		w.Final.ApprovedDate = nil
		return
	}
	backfill(&w.Final.ApprovedDate, now)
	if w.Tooling.BlanketPlanDate == nil {
		seed := *w.Final.ApprovedDate
		w.Tooling.BlanketPlanDate = &seed
	}
}

func derivePlate(w *workitem.WorkItem, now time.Time) {
	output := strings.TrimSpace(w.Plate.Output)
	switch {
	case strings.EqualFold(output, workitem.PlatePending):
		if w.Plate.PlanDate == nil && w.Final.ApprovedDate != nil {
			plan := w.Final.ApprovedDate.Add(24 * time.Hour)
			w.Plate.PlanDate = &plan
		}
	case strings.EqualFold(output, workitem.PlateDone):
		backfill(&w.Plate.ActualDate, now)
	}
}

func deriveTooling(w *workitem.WorkItem, now time.Time) {
	t := &w.Tooling
	if strings.EqualFold(strings.TrimSpace(t.Die), workitem.TokenReady) &&
		strings.EqualFold(strings.TrimSpace(t.Blanket), workitem.TokenReady) &&
		!strings.EqualFold(strings.TrimSpace(t.Block), workitem.TokenRequired) {
		backfill(&t.BlanketActualDate, now)
	}
}

// backfill sets *dst to now only when it is absent.
func backfill(dst **time.Time, now time.Time) {
	if *dst == nil {
		t := now
		*dst = &t
	}
}
