package workitem

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pesio-ai/be-prepress-worklist/internal/platform/errors"
)

// Wire names of the update map and of the verified field subset.
const (
	FieldFileStatus        = "FileStatus"
	FieldFileReceivedDate  = "FileReceivedDate"
	FieldToolingDie        = "ToolingDie"
	FieldToolingBlock      = "ToolingBlock"
	FieldToolingBlanket    = "ToolingBlanket"
	FieldBlanketPlanDate   = "BlanketPlanDate"
	FieldBlanketActdate    = "BlanketActdate"
	FieldToolingRemark     = "ToolingRemark"
	FieldPlateOutput       = "PlateOutput"
	FieldPlatePlanDate     = "PlatePlanDate"
	FieldPlateActdate      = "PlateActdate"
	FieldPlateRemark       = "PlateRemark"
	FieldFinalApproval     = "FinalApproval"
	FieldFinalApprovalDate = "FinalApprovalDate"
	FieldArtworkRemark     = "ArtworkRemark"
)

// FieldPrefix is the wire prefix for the dimension's fields.
func (k ApprovalKind) FieldPrefix() string {
	switch k {
	case SoftApproval:
		return "SoftApproval"
	case HardApproval:
		return "HardApproval"
	default:
		return "MPApproval"
	}
}

func (k ApprovalKind) RequiredField() string { return k.FieldPrefix() + "Reqd" }
func (k ApprovalKind) StatusField() string   { return k.FieldPrefix() + "Status" }
func (k ApprovalKind) PlanDateField() string { return k.FieldPrefix() + "SentPlanDate" }
func (k ApprovalKind) ActdateField() string  { return k.FieldPrefix() + "SentActdate" }

// PersonField is the wire name of a role's stored assignee. The same name
// suffixed with Id or Key carries an explicit ledger id or user key.
func (r Role) PersonField() string {
	switch r {
	case RolePrepress:
		return "PrepressPerson"
	case RoleTooling:
		return "ToolingPerson"
	default:
		return "PlatePerson"
	}
}

// AssigneeInput is what a caller supplied for one role slot before
// identity resolution.
type AssigneeInput struct {
	ID    *int64
	Name  string
	Key   string
	Clear bool
}

// Empty reports that nothing usable was supplied.
func (a AssigneeInput) Empty() bool {
	return a.ID == nil && a.Name == "" && a.Key == "" && !a.Clear
}

// ParseUpdate normalises a raw wire map. Unknown fields are ignored;
// malformed dates and attempts to set derived fields are rejected.
func ParseUpdate(raw map[string]any) (Update, map[Role]AssigneeInput, error) {
	var u Update
	people := make(map[Role]AssigneeInput)

	for name, value := range raw {
		var err error
		switch name {
		case FieldFinalApproval, FieldFinalApprovalDate:
			err = errors.InvalidInput(name, "final approval is derived and cannot be set")
		case FieldFileStatus:
			u.FileStatus = parseEnum(value, NormalizeFileStatus)
		case FieldFileReceivedDate:
			u.FileReceivedDate, err = parseDate(name, value)
		case FieldToolingDie:
			u.Die = parseString(value)
		case FieldToolingBlock:
			u.Block = parseString(value)
		case FieldToolingBlanket:
			u.Blanket = parseString(value)
		case FieldBlanketPlanDate:
			u.BlanketPlanDate, err = parseDate(name, value)
		case FieldBlanketActdate:
			u.BlanketActualDate, err = parseDate(name, value)
		case FieldToolingRemark:
			u.ToolingRemark = parseString(value)
		case FieldPlateOutput:
			u.PlateOutput = parseString(value)
		case FieldPlatePlanDate:
			u.PlatePlanDate, err = parseDate(name, value)
		case FieldPlateActdate:
			u.PlateActualDate, err = parseDate(name, value)
		case FieldPlateRemark:
			u.PlateRemark = parseString(value)
		case FieldArtworkRemark:
			u.Remarks = parseString(value)
		default:
			var handled bool
			if handled, err = parseApprovalField(&u, name, value); !handled {
				err = parsePersonField(people, name, value)
			}
		}
		if err != nil {
			return Update{}, nil, err
		}
	}
	return u, people, nil
}

func parseApprovalField(u *Update, name string, value any) (bool, error) {
	for _, kind := range ApprovalKinds() {
		au := u.Approval(kind)
		var err error
		switch name {
		case kind.RequiredField():
			au.Required = parseEnum(value, NormalizeYesNo)
		case kind.StatusField():
			au.Status = parseEnum(value, NormalizeApprovalStatus)
		case kind.PlanDateField():
			au.PlanDate, err = parseDate(name, value)
		case kind.ActdateField():
			au.ActualDate, err = parseDate(name, value)
		default:
			continue
		}
		return true, err
	}
	return false, nil
}

func parsePersonField(people map[Role]AssigneeInput, name string, value any) error {
	for _, role := range Roles() {
		base := role.PersonField()
		suffix, ok := strings.CutPrefix(name, base)
		if !ok || (suffix != "" && suffix != "Id" && suffix != "Key") {
			continue
		}

		in := people[role]
		if value == nil {
			in.Clear = true
			people[role] = in
			return nil
		}
		s, ok := asString(value)
		if !ok {
			return errors.InvalidInput(name, "expected a string or number")
		}
		s = strings.TrimSpace(s)

		switch suffix {
		case "Id":
			if s != "" {
				id, err := strconv.ParseInt(s, 10, 64)
				if err != nil || id <= 0 {
					return errors.InvalidInput(name, "expected a positive integer")
				}
				in.ID = &id
			}
		case "Key":
			in.Key = strings.ToLower(s)
		default:
			in.Name = s
		}
		people[role] = in
		return nil
	}
	return nil
}

func parseEnum[T any](value any, normalize func(string) (T, bool)) Optional[T] {
	if value == nil {
		return Null[T]()
	}
	s, ok := asString(value)
	if !ok {
		return Optional[T]{}
	}
	v, ok := normalize(s)
	if !ok {
		return Optional[T]{}
	}
	return Some(v)
}

func parseString(value any) Optional[string] {
	if value == nil {
		return Null[string]()
	}
	s, ok := asString(value)
	if !ok {
		return Optional[string]{}
	}
	return Some(strings.TrimSpace(s))
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

func parseDate(field string, value any) (Optional[time.Time], error) {
	if value == nil {
		return Null[time.Time](), nil
	}
	s, ok := value.(string)
	if !ok {
		return Optional[time.Time]{}, errors.InvalidInput(field, "expected a date string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return Null[time.Time](), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Some(t.UTC()), nil
		}
	}
	return Optional[time.Time]{}, errors.InvalidInput(field, fmt.Sprintf("unrecognised date %q", s))
}

func asString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}

// FieldValues renders every wire field of w. Times are UTC RFC 3339 at
// millisecond precision so values compare equal across stores.
func FieldValues(w WorkItem) map[string]any {
	out := map[string]any{
		FieldFileStatus:        string(w.FileStatus),
		FieldFileReceivedDate:  timeValue(w.FileReceivedDate),
		FieldToolingDie:        w.Tooling.Die,
		FieldToolingBlock:      w.Tooling.Block,
		FieldToolingBlanket:    w.Tooling.Blanket,
		FieldBlanketPlanDate:   timeValue(w.Tooling.BlanketPlanDate),
		FieldBlanketActdate:    timeValue(w.Tooling.BlanketActualDate),
		FieldToolingRemark:     w.Tooling.Remark,
		FieldPlateOutput:       w.Plate.Output,
		FieldPlatePlanDate:     timeValue(w.Plate.PlanDate),
		FieldPlateActdate:      timeValue(w.Plate.ActualDate),
		FieldPlateRemark:       w.Plate.Remark,
		FieldFinalApproval:     w.Final.Approved,
		FieldFinalApprovalDate: timeValue(w.Final.ApprovedDate),
		FieldArtworkRemark:     w.Remarks,
	}
	for _, kind := range ApprovalKinds() {
		a := w.Approval(kind)
		out[kind.RequiredField()] = string(a.Required)
		out[kind.StatusField()] = string(a.Status)
		out[kind.PlanDateField()] = timeValue(a.PlanDate)
		out[kind.ActdateField()] = timeValue(a.ActualDate)
	}
	for _, role := range Roles() {
		out[role.PersonField()] = assigneeValue(*w.Assigned.Slot(role))
	}
	return out
}

// FieldNames lists every wire field in sorted order.
func FieldNames() []string {
	values := FieldValues(WorkItem{})
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Diff lists, in sorted order, the wire fields whose values differ.
func Diff(before, after WorkItem) []string {
	a, b := FieldValues(before), FieldValues(after)
	var changed []string
	for name, v := range b {
		if a[name] != v {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}

// Subset picks the named fields from FieldValues(w).
func Subset(w WorkItem, names []string) map[string]any {
	all := FieldValues(w)
	out := make(map[string]any, len(names))
	for _, name := range names {
		if v, ok := all[name]; ok {
			out[name] = v
		}
	}
	return out
}

// Mismatches lists the named fields whose values differ between the
// written and the persisted record.
func Mismatches(written, persisted WorkItem, names []string) []string {
	w, p := FieldValues(written), FieldValues(persisted)
	var out []string
	for _, name := range names {
		if w[name] != p[name] {
			out = append(out, name)
		}
	}
	return out
}

func timeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Truncate(time.Millisecond).Format(time.RFC3339Nano)
}

func assigneeValue(a Assignee) any {
	switch {
	case a.LedgerID != nil:
		return *a.LedgerID
	case a.UserKey != "":
		return a.UserKey
	}
	return nil
}
