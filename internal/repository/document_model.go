package repository

import (
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pesio-ai/be-prepress-worklist/internal/workitem"
)

// jobDocument is the jobs collection shape.
type jobDocument struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	JobNumber        string             `bson:"jobNumber"`
	ClientName       string             `bson:"clientName"`
	Reference        string             `bson:"reference"`
	ArtworkRemark    string             `bson:"artworkRemark"`
	FileStatus       string             `bson:"fileStatus"`
	FileReceivedDate *time.Time         `bson:"fileReceivedDate"`
	SoftApproval     approvalDocument   `bson:"softApproval"`
	HardApproval     approvalDocument   `bson:"hardApproval"`
	MPApproval       approvalDocument   `bson:"mpApproval"`
	Tooling          toolingDocument    `bson:"tooling"`
	Plate            plateDocument      `bson:"plate"`
	FinalApproval    finalDocument      `bson:"finalApproval"`
	AssignedTo       assignedDocument   `bson:"assignedTo"`
	IsDeleted        bool               `bson:"isDeleted"`
	UpdatedAt        *time.Time         `bson:"updatedAt,omitempty"`
	UpdatedBy        string             `bson:"updatedBy,omitempty"`
}

type approvalDocument struct {
	Required   string     `bson:"required"`
	Status     string     `bson:"status"`
	PlanDate   *time.Time `bson:"planDate"`
	ActualDate *time.Time `bson:"actualDate"`
}

type toolingDocument struct {
	Die               string     `bson:"die"`
	Block             string     `bson:"block"`
	Blanket           string     `bson:"blanket"`
	BlanketPlanDate   *time.Time `bson:"blanketPlanDate"`
	BlanketActualDate *time.Time `bson:"blanketActualDate"`
	Remark            string     `bson:"remark"`
}

type plateDocument struct {
	Output     string     `bson:"output"`
	PlanDate   *time.Time `bson:"planDate"`
	ActualDate *time.Time `bson:"actualDate"`
	Remark     string     `bson:"remark"`
}

type finalDocument struct {
	Approved     bool       `bson:"approved"`
	ApprovedDate *time.Time `bson:"approvedDate"`
}

type assignedDocument struct {
	Prepress string `bson:"prepress"`
	Tooling  string `bson:"tooling"`
	Plate    string `bson:"plate"`
}

func (d approvalDocument) toApproval() workitem.Approval {
	return workitem.Approval{
		Required:   normalizeRequired(d.Required),
		Status:     normalizeStatus(d.Status),
		PlanDate:   d.PlanDate,
		ActualDate: d.ActualDate,
	}
}

// toWorkItem converts a stored document, normalising enum spellings.
func (d jobDocument) toWorkItem() workitem.WorkItem {
	return workitem.WorkItem{
		Key:              workitem.Key{Provenance: workitem.Document, ID: d.ID.Hex()},
		JobNumber:        d.JobNumber,
		ClientName:       d.ClientName,
		Reference:        d.Reference,
		Remarks:          d.ArtworkRemark,
		FileStatus:       normalizeFileStatus(d.FileStatus),
		FileReceivedDate: d.FileReceivedDate,
		Soft:             d.SoftApproval.toApproval(),
		Hard:             d.HardApproval.toApproval(),
		MachineProof:     d.MPApproval.toApproval(),
		Tooling: workitem.Tooling{
			Die:               d.Tooling.Die,
			Block:             d.Tooling.Block,
			Blanket:           d.Tooling.Blanket,
			BlanketPlanDate:   d.Tooling.BlanketPlanDate,
			BlanketActualDate: d.Tooling.BlanketActualDate,
			Remark:            d.Tooling.Remark,
		},
		Plate: workitem.Plate{
			Output:     d.Plate.Output,
			PlanDate:   d.Plate.PlanDate,
			ActualDate: d.Plate.ActualDate,
			Remark:     d.Plate.Remark,
		},
		Final: workitem.FinalApproval{
			Approved:     d.FinalApproval.Approved,
			ApprovedDate: d.FinalApproval.ApprovedDate,
		},
		Assigned: workitem.Assignment{
			Prepress: workitem.Assignee{UserKey: strings.ToLower(d.AssignedTo.Prepress)},
			Tooling:  workitem.Assignee{UserKey: strings.ToLower(d.AssignedTo.Tooling)},
			Plate:    workitem.Assignee{UserKey: strings.ToLower(d.AssignedTo.Plate)},
		},
	}
}

// documentFieldPaths maps wire field names to bson paths.
var documentFieldPaths = func() map[string]string {
	paths := map[string]string{
		workitem.FieldFileStatus:        "fileStatus",
		workitem.FieldFileReceivedDate:  "fileReceivedDate",
		workitem.FieldToolingDie:        "tooling.die",
		workitem.FieldToolingBlock:      "tooling.block",
		workitem.FieldToolingBlanket:    "tooling.blanket",
		workitem.FieldBlanketPlanDate:   "tooling.blanketPlanDate",
		workitem.FieldBlanketActdate:    "tooling.blanketActualDate",
		workitem.FieldToolingRemark:     "tooling.remark",
		workitem.FieldPlateOutput:       "plate.output",
		workitem.FieldPlatePlanDate:     "plate.planDate",
		workitem.FieldPlateActdate:      "plate.actualDate",
		workitem.FieldPlateRemark:       "plate.remark",
		workitem.FieldFinalApproval:     "finalApproval.approved",
		workitem.FieldFinalApprovalDate: "finalApproval.approvedDate",
		workitem.FieldArtworkRemark:     "artworkRemark",
	}
	prefixes := map[workitem.ApprovalKind]string{
		workitem.SoftApproval:         "softApproval",
		workitem.HardApproval:         "hardApproval",
		workitem.MachineProofApproval: "mpApproval",
	}
	for kind, prefix := range prefixes {
		paths[kind.RequiredField()] = prefix + ".required"
		paths[kind.StatusField()] = prefix + ".status"
		paths[kind.PlanDateField()] = prefix + ".planDate"
		paths[kind.ActdateField()] = prefix + ".actualDate"
	}
	for _, role := range workitem.Roles() {
		paths[role.PersonField()] = "assignedTo." + role.String()
	}
	return paths
}()

// documentValues returns the typed bson value of every wire field of w.
func documentValues(w workitem.WorkItem) map[string]any {
	out := map[string]any{
		workitem.FieldFileStatus:        string(w.FileStatus),
		workitem.FieldFileReceivedDate:  w.FileReceivedDate,
		workitem.FieldToolingDie:        w.Tooling.Die,
		workitem.FieldToolingBlock:      w.Tooling.Block,
		workitem.FieldToolingBlanket:    w.Tooling.Blanket,
		workitem.FieldBlanketPlanDate:   w.Tooling.BlanketPlanDate,
		workitem.FieldBlanketActdate:    w.Tooling.BlanketActualDate,
		workitem.FieldToolingRemark:     w.Tooling.Remark,
		workitem.FieldPlateOutput:       w.Plate.Output,
		workitem.FieldPlatePlanDate:     w.Plate.PlanDate,
		workitem.FieldPlateActdate:      w.Plate.ActualDate,
		workitem.FieldPlateRemark:       w.Plate.Remark,
		workitem.FieldFinalApproval:     w.Final.Approved,
		workitem.FieldFinalApprovalDate: w.Final.ApprovedDate,
		workitem.FieldArtworkRemark:     w.Remarks,
	}
	for _, kind := range workitem.ApprovalKinds() {
		a := w.Approval(kind)
		out[kind.RequiredField()] = string(a.Required)
		out[kind.StatusField()] = string(a.Status)
		out[kind.PlanDateField()] = a.PlanDate
		out[kind.ActdateField()] = a.ActualDate
	}
	for _, role := range workitem.Roles() {
		out[role.PersonField()] = w.Assigned.Slot(role).UserKey
	}
	return out
}

// setDocument builds the $set body for the named fields only.
func setDocument(w workitem.WorkItem, fields []string) bson.M {
	values := documentValues(w)
	set := bson.M{}
	for _, name := range fields {
		path, ok := documentFieldPaths[name]
		if !ok {
			continue
		}
		set[path] = values[name]
	}
	return set
}

func notDeleted() bson.M {
	return bson.M{"$ne": true}
}

// resolvedToolingPattern matches a blank or resolved readiness token.
func resolvedToolingPattern() primitive.Regex {
	tokens := workitem.ResolvedToolingTokens()
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return primitive.Regex{
		Pattern: `^\s*(` + strings.Join(quoted, "|") + `)?\s*$`,
		Options: "i",
	}
}

// pendingFilter selects live documents that still need work and are
// assigned to userKey in any role slot.
func pendingFilter(userKey string) bson.M {
	resolved := resolvedToolingPattern()
	toolingOutstanding := func(path string) bson.M {
		return bson.M{path: bson.M{"$nin": bson.A{nil}, "$not": resolved}}
	}

	assigned := bson.A{}
	for _, role := range workitem.Roles() {
		assigned = append(assigned, bson.M{"assignedTo." + role.String(): userKey})
	}

	return bson.M{
		"isDeleted": notDeleted(),
		"$and": bson.A{
			bson.M{"$or": bson.A{
				bson.M{"finalApproval.approved": bson.M{"$ne": true}},
				bson.M{"plate.output": bson.M{
					"$nin": bson.A{nil, ""},
					"$not": primitive.Regex{Pattern: `^\s*` + workitem.PlateDone + `\s*$`, Options: "i"},
				}},
				toolingOutstanding("tooling.die"),
				toolingOutstanding("tooling.block"),
				toolingOutstanding("tooling.blanket"),
			}},
			bson.M{"$or": assigned},
		},
	}
}
