package workitem

import (
	"strings"
	"time"
)

// YesNo is a tri-state requirement flag.
type YesNo string

const (
	Unset YesNo = ""
	Yes   YesNo = "Yes"
	No    YesNo = "No"
)

// FileStatus tracks artwork file receipt.
type FileStatus string

const (
	FilePending  FileStatus = "Pending"
	FileReceived FileStatus = "Received"
	FileOld      FileStatus = "Old"
)

// ApprovalStatus is the state of one approval dimension.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "Pending"
	StatusSent     ApprovalStatus = "Sent"
	StatusApproved ApprovalStatus = "Approved"
	StatusRejected ApprovalStatus = "Rejected"
	StatusRedo     ApprovalStatus = "Redo"
)

// ApprovalKind names the three approval dimensions.
type ApprovalKind int

const (
	SoftApproval ApprovalKind = iota
	HardApproval
	MachineProofApproval
)

// ApprovalKinds lists the approval dimensions in evaluation order.
func ApprovalKinds() []ApprovalKind {
	return []ApprovalKind{SoftApproval, HardApproval, MachineProofApproval}
}

func (k ApprovalKind) Label() string {
	switch k {
	case SoftApproval:
		return "Soft Approval"
	case HardApproval:
		return "Hard Approval"
	default:
		return "Machine Proof Approval"
	}
}

// PlanOffset is the lead time from file receipt to the planned send date.
func (k ApprovalKind) PlanOffset() time.Duration {
	if k == SoftApproval {
		return 2 * 24 * time.Hour
	}
	return 4 * 24 * time.Hour
}

// Approval is one approval dimension.
type Approval struct {
	Required   YesNo          `json:"required"`
	Status     ApprovalStatus `json:"status"`
	PlanDate   *time.Time     `json:"planDate"`
	ActualDate *time.Time     `json:"actualDate"`
}

// Tooling readiness tokens that the rules engine recognises.
const (
	TokenReady    = "Ready"
	TokenRequired = "Required"
	PlateDone     = "done"
	PlatePending  = "pending"
)

// Tooling tracks die, block and blanket readiness.
type Tooling struct {
	Die               string     `json:"die"`
	Block             string     `json:"block"`
	Blanket           string     `json:"blanket"`
	BlanketPlanDate   *time.Time `json:"blanketPlanDate"`
	BlanketActualDate *time.Time `json:"blanketActualDate"`
	Remark            string     `json:"remark"`
}

// Plate tracks plate output.
type Plate struct {
	Output     string     `json:"output"`
	PlanDate   *time.Time `json:"planDate"`
	ActualDate *time.Time `json:"actualDate"`
	Remark     string     `json:"remark"`
}

// FinalApproval is derived from the three approval statuses.
type FinalApproval struct {
	Approved     bool       `json:"approved"`
	ApprovedDate *time.Time `json:"approvedDate"`
}

// Role is one of the three assignment slots.
type Role int

const (
	RolePrepress Role = iota
	RoleTooling
	RolePlate
)

// Roles lists the assignment slots.
func Roles() []Role {
	return []Role{RolePrepress, RoleTooling, RolePlate}
}

func (r Role) String() string {
	switch r {
	case RolePrepress:
		return "prepress"
	case RoleTooling:
		return "tooling"
	default:
		return "plate"
	}
}

// Assignee references a person in the owning store's terms: a ledger id
// in a shard, a user key in the document store.
type Assignee struct {
	LedgerID *int64 `json:"ledgerId,omitempty"`
	UserKey  string `json:"userKey,omitempty"`
}

// IsZero reports an unassigned slot.
func (a Assignee) IsZero() bool {
	return a.LedgerID == nil && a.UserKey == ""
}

// Assignment holds the three role slots.
type Assignment struct {
	Prepress Assignee `json:"prepress"`
	Tooling  Assignee `json:"tooling"`
	Plate    Assignee `json:"plate"`
}

// Slot returns the assignee for a role.
func (a *Assignment) Slot(r Role) *Assignee {
	switch r {
	case RolePrepress:
		return &a.Prepress
	case RoleTooling:
		return &a.Tooling
	default:
		return &a.Plate
	}
}

// WorkItem is the full approval state of one job in one store.
type WorkItem struct {
	Key              Key           `json:"key"`
	JobNumber        string        `json:"jobNumber"`
	ClientName       string        `json:"clientName"`
	Reference        string        `json:"reference"`
	Remarks          string        `json:"remarks"`
	FileStatus       FileStatus    `json:"fileStatus"`
	FileReceivedDate *time.Time    `json:"fileReceivedDate"`
	Soft             Approval      `json:"soft"`
	Hard             Approval      `json:"hard"`
	MachineProof     Approval      `json:"machineProof"`
	Tooling          Tooling       `json:"tooling"`
	Plate            Plate         `json:"plate"`
	Final            FinalApproval `json:"finalApproval"`
	Assigned         Assignment    `json:"assignedTo"`
}

// Approval returns the dimension record for kind.
func (w *WorkItem) Approval(kind ApprovalKind) *Approval {
	switch kind {
	case SoftApproval:
		return &w.Soft
	case HardApproval:
		return &w.Hard
	default:
		return &w.MachineProof
	}
}

// AllApproved reports whether every approval dimension is Approved.
func (w *WorkItem) AllApproved() bool {
	for _, kind := range ApprovalKinds() {
		if w.Approval(kind).Status != StatusApproved {
			return false
		}
	}
	return true
}

// PendingRow is one outstanding operation on one job, in a shape shared by
// every store.
type PendingRow struct {
	Provenance Provenance `json:"provenance"`
	StoreID    string     `json:"storeId"`
	JobNumber  string     `json:"jobNumber"`
	ClientName string     `json:"clientName"`
	Reference  string     `json:"reference"`
	Remarks    string     `json:"remarks"`
	FileStatus FileStatus `json:"fileStatus"`
	Operation  string     `json:"operation"`
	PlanDate   *time.Time `json:"planDate"`
}

func tokenIs(value, token string) bool {
	return strings.EqualFold(strings.TrimSpace(value), token)
}
