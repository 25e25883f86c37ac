package workitem

import "time"

// ApprovalUpdate carries the supplied fields of one approval dimension.
type ApprovalUpdate struct {
	Required   Optional[YesNo]
	Status     Optional[ApprovalStatus]
	PlanDate   Optional[time.Time]
	ActualDate Optional[time.Time]
}

// Touched reports whether required or status was supplied.
func (u ApprovalUpdate) Touched() bool {
	return u.Required.Present() || u.Status.Present()
}

func (u ApprovalUpdate) applyTo(a *Approval) {
	applyValue(&a.Required, u.Required)
	applyValue(&a.Status, u.Status)
	applyPtr(&a.PlanDate, u.PlanDate)
	applyPtr(&a.ActualDate, u.ActualDate)
}

// Update is a normalised partial update. Absent fields are left untouched.
type Update struct {
	FileStatus       Optional[FileStatus]
	FileReceivedDate Optional[time.Time]

	Soft         ApprovalUpdate
	Hard         ApprovalUpdate
	MachineProof ApprovalUpdate

	Die               Optional[string]
	Block             Optional[string]
	Blanket           Optional[string]
	BlanketPlanDate   Optional[time.Time]
	BlanketActualDate Optional[time.Time]
	ToolingRemark     Optional[string]

	PlateOutput     Optional[string]
	PlatePlanDate   Optional[time.Time]
	PlateActualDate Optional[time.Time]
	PlateRemark     Optional[string]

	Remarks Optional[string]

	Prepress      Optional[Assignee]
	ToolingPerson Optional[Assignee]
	PlatePerson   Optional[Assignee]
}

// Approval returns the dimension update for kind.
func (u *Update) Approval(kind ApprovalKind) *ApprovalUpdate {
	switch kind {
	case SoftApproval:
		return &u.Soft
	case HardApproval:
		return &u.Hard
	default:
		return &u.MachineProof
	}
}

// Assignee returns the slot update for a role.
func (u *Update) Assignee(r Role) *Optional[Assignee] {
	switch r {
	case RolePrepress:
		return &u.Prepress
	case RoleTooling:
		return &u.ToolingPerson
	default:
		return &u.PlatePerson
	}
}

// ApplyTo shallow-merges u over a copy of w and returns the copy.
func (u Update) ApplyTo(w WorkItem) WorkItem {
	out := w

	applyValue(&out.FileStatus, u.FileStatus)
	applyPtr(&out.FileReceivedDate, u.FileReceivedDate)

	for _, kind := range ApprovalKinds() {
		u.Approval(kind).applyTo(out.Approval(kind))
	}

	applyValue(&out.Tooling.Die, u.Die)
	applyValue(&out.Tooling.Block, u.Block)
	applyValue(&out.Tooling.Blanket, u.Blanket)
	applyPtr(&out.Tooling.BlanketPlanDate, u.BlanketPlanDate)
	applyPtr(&out.Tooling.BlanketActualDate, u.BlanketActualDate)
	applyValue(&out.Tooling.Remark, u.ToolingRemark)

	applyValue(&out.Plate.Output, u.PlateOutput)
	applyPtr(&out.Plate.PlanDate, u.PlatePlanDate)
	applyPtr(&out.Plate.ActualDate, u.PlateActualDate)
	applyValue(&out.Plate.Remark, u.PlateRemark)

	applyValue(&out.Remarks, u.Remarks)

	for _, role := range Roles() {
		applyValue(out.Assigned.Slot(role), *u.Assignee(role))
	}
	return out
}
