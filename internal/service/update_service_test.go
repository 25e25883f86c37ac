package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-prepress-worklist/internal/platform/errors"
	"github.com/pesio-ai/be-prepress-worklist/internal/platform/logger"
	"github.com/pesio-ai/be-prepress-worklist/internal/rules"
	"github.com/pesio-ai/be-prepress-worklist/internal/workitem"
)

var fixedNow = time.Date(2026, 5, 11, 10, 30, 0, 0, time.UTC)

const docID = "65f1c0ffee0000000000abcd"

type updateFixture struct {
	shardA    *fakeStore
	docs      *fakeStore
	ledger    *fakeLedger
	users     *fakeDocUsers
	publisher *fakePublisher
	svc       *UpdateService
}

func newUpdateFixture() *updateFixture {
	f := &updateFixture{
		shardA: newFakeStore(workitem.WorkItem{
			Key:       workitem.Key{Provenance: workitem.ShardA, ID: "42"},
			JobNumber: "J-42",
			Assigned: workitem.Assignment{
				Prepress: workitem.Assignee{LedgerID: int64Ptr(5)},
			},
		}),
		docs: newFakeStore(workitem.WorkItem{
			Key:      workitem.Key{Provenance: workitem.Document, ID: docID},
			Assigned: workitem.Assignment{Plate: workitem.Assignee{UserKey: "old"}},
		}),
		ledger: &fakeLedger{
			byName: map[workitem.Provenance]map[string]int64{workitem.ShardA: {"jane doe": 7}},
			byKey:  map[workitem.Provenance]map[string]int64{workitem.ShardA: {"jdoe": 9}},
		},
		users:     &fakeDocUsers{keys: map[string]string{"jane doe": "jdoe"}},
		publisher: &fakePublisher{},
	}
	identity := NewIdentityService(f.ledger, f.users, logger.Nop())
	stores := map[workitem.Provenance]WorkItemStore{
		workitem.ShardA:   f.shardA,
		workitem.Document: f.docs,
	}
	engine := rules.New(func() time.Time { return fixedNow })
	f.svc = NewUpdateService(stores, identity, engine, f.publisher, logger.Nop())
	return f
}

func TestApplyUpdate_DerivesAndVerifies(t *testing.T) {
	f := newUpdateFixture()

	res, err := f.svc.ApplyUpdate(context.Background(), Envelope{
		Provenance: "ShardA",
		ID:         "42",
		Update:     map[string]any{"FileStatus": "received", "SoftApprovalReqd": "Yes"},
		ActingUser: "jane",
	})
	require.NoError(t, err)

	assert.Equal(t, workitem.Key{Provenance: workitem.ShardA, ID: "42"}, res.Key)
	assert.Equal(t, "Received", res.Fields["FileStatus"])
	assert.Equal(t, "Yes", res.Fields["SoftApprovalReqd"])
	assert.Equal(t, "2026-05-13T10:30:00Z", res.Fields["SoftApprovalSentPlanDate"])
	assert.Contains(t, res.Changed, "FileReceivedDate")
	assert.Empty(t, res.Mismatches)

	stored := f.shardA.records["42"]
	assert.Equal(t, workitem.StatusPending, stored.Soft.Status)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, "shard_a", f.publisher.events[0].Provenance)
	assert.Equal(t, "jane", f.publisher.events[0].ActorID)
}

func TestApplyUpdate_Validation(t *testing.T) {
	f := newUpdateFixture()
	ctx := context.Background()

	tests := []struct {
		name string
		env  Envelope
		code errors.Code
	}{
		{"unknown provenance", Envelope{Provenance: "tape", ID: "1"}, errors.ErrCodeInvalidInput},
		{"missing id", Envelope{Provenance: "shard_a"}, errors.ErrCodeInvalidInput},
		{"non numeric shard id", Envelope{Provenance: "shard_a", ID: "abc"}, errors.ErrCodeInvalidInput},
		{"final approval is derived", Envelope{Provenance: "shard_a", ID: "42", Update: map[string]any{"FinalApproval": true}}, errors.ErrCodeInvalidInput},
		{"bad date", Envelope{Provenance: "shard_a", ID: "42", Update: map[string]any{"PlatePlanDate": "soon"}}, errors.ErrCodeInvalidInput},
		{"absent record", Envelope{Provenance: "shard_a", ID: "99"}, errors.ErrCodeNotFound},
		{"unconfigured store", Envelope{Provenance: "shard_b", ID: "1"}, errors.ErrCodeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ApplyUpdate(ctx, tt.env)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
	assert.Zero(t, f.shardA.persists)
}

func TestApplyUpdate_AssigneePrecedence(t *testing.T) {
	tests := []struct {
		name   string
		update map[string]any
		want   *int64
	}{
		{"explicit id wins", map[string]any{"PrepressPersonId": 3, "PrepressPerson": "Jane Doe", "PrepressPersonKey": "jdoe"}, int64Ptr(3)},
		{"name beats key", map[string]any{"PrepressPerson": "jane doe", "PrepressPersonKey": "jdoe"}, int64Ptr(7)},
		{"key when name misses", map[string]any{"PrepressPerson": "Nobody", "PrepressPersonKey": "JDOE"}, int64Ptr(9)},
		{"stored when nothing resolves", map[string]any{"PrepressPerson": "Nobody"}, int64Ptr(5)},
		{"null clears", map[string]any{"PrepressPersonId": nil}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newUpdateFixture()

			_, err := f.svc.ApplyUpdate(context.Background(), Envelope{Provenance: "shard_a", ID: "42", Update: tt.update})
			require.NoError(t, err)

			assert.Equal(t, tt.want, f.shardA.records["42"].Assigned.Prepress.LedgerID)
		})
	}
}

func TestApplyUpdate_FailedLookupKeepsStoredAssignee(t *testing.T) {
	f := newUpdateFixture()
	f.ledger.err = map[workitem.Provenance]error{workitem.ShardA: fmt.Errorf("ledger offline")}

	_, err := f.svc.ApplyUpdate(context.Background(), Envelope{
		Provenance: "shard_a",
		ID:         "42",
		Update:     map[string]any{"PrepressPerson": "Jane Doe"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64Ptr(5), f.shardA.records["42"].Assigned.Prepress.LedgerID)
}

func TestApplyUpdate_DocumentAssigneeUsesUserKey(t *testing.T) {
	f := newUpdateFixture()

	res, err := f.svc.ApplyUpdate(context.Background(), Envelope{
		Provenance: "document",
		DocumentID: docID,
		Update:     map[string]any{"PlatePerson": "Jane Doe", "ToolingPersonKey": "Bob"},
	})
	require.NoError(t, err)

	stored := f.docs.records[docID]
	assert.Equal(t, "jdoe", stored.Assigned.Plate.UserKey)
	assert.Equal(t, "bob", stored.Assigned.Tooling.UserKey)
	assert.Equal(t, "jdoe", res.Fields["PlatePerson"])
	assert.Equal(t, "bob", res.Fields["ToolingPerson"])
}

func TestApplyUpdate_VerificationMismatch(t *testing.T) {
	f := newUpdateFixture()
	f.shardA.tamper = func(w *workitem.WorkItem) { w.Plate.Remark = "trigger rewrote this" }

	res, err := f.svc.ApplyUpdate(context.Background(), Envelope{
		Provenance: "shard_a",
		ID:         "42",
		Update:     map[string]any{"PlateRemark": "ctp 2"},
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeVerificationMismatch, errors.CodeOf(err))

	require.NotNil(t, res)
	assert.Equal(t, []string{"PlateRemark"}, res.Mismatches)
	assert.Equal(t, "trigger rewrote this", res.Fields["PlateRemark"])
}

func TestApplyBatch_IsolatesFailures(t *testing.T) {
	f := newUpdateFixture()

	results := f.svc.ApplyBatch(context.Background(), []Envelope{
		{Provenance: "shard_a", ID: "42", Update: map[string]any{"PlateOutput": "pending"}},
		{Provenance: "shard_a", ID: "404", Update: map[string]any{"PlateOutput": "done"}},
		{Provenance: "doc", ID: docID, Update: map[string]any{"ArtworkRemark": "new art"}},
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].OK)
	assert.Equal(t, "pending", results[0].Fields["PlateOutput"])

	assert.False(t, results[1].OK)
	assert.Equal(t, "NOT_FOUND", results[1].Code)
	assert.Equal(t, 1, results[1].Index)

	assert.True(t, results[2].OK)
	assert.Equal(t, "document", results[2].Provenance)
	assert.Equal(t, "new art", f.docs.records[docID].Remarks)
}

func TestApplyUpdate_IdempotentReapply(t *testing.T) {
	f := newUpdateFixture()
	env := Envelope{
		Provenance: "shard_a",
		ID:         "42",
		Update:     map[string]any{"SoftApprovalReqd": "No", "PlateOutput": "done"},
	}

	_, err := f.svc.ApplyUpdate(context.Background(), env)
	require.NoError(t, err)
	first := f.shardA.records["42"]

	res, err := f.svc.ApplyUpdate(context.Background(), env)
	require.NoError(t, err)

	assert.Equal(t, first, f.shardA.records["42"])
	assert.Empty(t, res.Changed)
}

func TestEnvelope_RecordIDAcceptsNumbers(t *testing.T) {
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"provenance":"shard_b","storeId":1234,"update":{}}`), &env))
	assert.Equal(t, "1234", env.RecordID())

	var doc Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"provenance":"doc","documentId":"`+docID+`"}`), &doc))
	assert.Equal(t, docID, doc.RecordID())
}

func TestUpdateService_Load(t *testing.T) {
	f := newUpdateFixture()

	w, err := f.svc.Load(context.Background(), "site-a", "42")
	require.NoError(t, err)
	assert.Equal(t, "J-42", w.JobNumber)

	_, err = f.svc.Load(context.Background(), "document", "ffffffffffffffffffffffff")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}
