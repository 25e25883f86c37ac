package workitem

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvenance(t *testing.T) {
	tests := []struct {
		in   string
		want Provenance
	}{
		{"shard_a", ShardA},
		{"ShardA", ShardA},
		{"site-b", ShardB},
		{"B", ShardB},
		{"document", Document},
		{"Docs", ProvenanceUnknown},
		{"", ProvenanceUnknown},
	}
	for _, tt := range tests {
		got, err := ParseProvenance(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.want == ProvenanceUnknown, err != nil, tt.in)
	}
}

func TestProvenance_JSON(t *testing.T) {
	var key Key
	require.NoError(t, json.Unmarshal([]byte(`{"provenance":"ShardB","id":"12"}`), &key))
	assert.Equal(t, Key{Provenance: ShardB, ID: "12"}, key)

	out, err := json.Marshal(key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"provenance":"shard_b","id":"12"}`, string(out))
}

func TestKey_Validate(t *testing.T) {
	assert.NoError(t, Key{Provenance: ShardA, ID: "981"}.Validate())
	assert.NoError(t, Key{Provenance: Document, ID: "65f1c0ffee"}.Validate())
	assert.Error(t, Key{Provenance: ShardA, ID: "65f1c0ffee"}.Validate())
	assert.Error(t, Key{Provenance: ShardB, ID: "-3"}.Validate())
	assert.Error(t, Key{Provenance: Document, ID: " "}.Validate())
	assert.Error(t, Key{ID: "1"}.Validate())
}

func TestOptional(t *testing.T) {
	var absent Optional[string]
	assert.False(t, absent.Present())

	null := Null[string]()
	assert.True(t, null.Present())
	assert.True(t, null.IsNull())
	_, ok := null.Get()
	assert.False(t, ok)

	v, ok := Some("x").Get()
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestUpdate_ApplyTo(t *testing.T) {
	plan := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	id := int64(7)
	current := WorkItem{
		Remarks: "keep",
		Plate:   Plate{Output: "pending", PlanDate: &plan, Remark: "old"},
		Assigned: Assignment{
			Tooling: Assignee{LedgerID: &id},
		},
	}

	out := Update{
		PlatePlanDate: Null[time.Time](),
		PlateRemark:   Some("new"),
		Prepress:      Some(Assignee{UserKey: "asha.rao"}),
	}.ApplyTo(current)

	assert.Equal(t, "keep", out.Remarks)
	assert.Nil(t, out.Plate.PlanDate)
	assert.Equal(t, "new", out.Plate.Remark)
	assert.Equal(t, "asha.rao", out.Assigned.Prepress.UserKey)
	assert.Equal(t, &id, out.Assigned.Tooling.LedgerID)
	require.NotNil(t, current.Plate.PlanDate, "input untouched")
}

func TestNormalizeApprovalStatus(t *testing.T) {
	tests := map[string]ApprovalStatus{
		"sent":     StatusSent,
		"APPROVED": StatusApproved,
		"redo":     StatusRedo,
		"Rejected": StatusRejected,
		"hold":     StatusPending,
	}
	for in, want := range tests {
		got, ok := NormalizeApprovalStatus(in)
		assert.True(t, ok)
		assert.Equal(t, want, got, in)
	}
	_, ok := NormalizeApprovalStatus("  ")
	assert.False(t, ok)
}
