package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-prepress-worklist/internal/platform/errors"
	"github.com/pesio-ai/be-prepress-worklist/internal/platform/logger"
	"github.com/pesio-ai/be-prepress-worklist/internal/service"
	"github.com/pesio-ai/be-prepress-worklist/internal/workitem"
)

type stubPending struct {
	gotUser string
	res     *service.PendingResult
	err     error
	block   bool
	panics  bool
}

func (s *stubPending) FetchPendingForUser(ctx context.Context, username string) (*service.PendingResult, error) {
	s.gotUser = username
	if s.panics {
		panic("pending exploded")
	}
	if s.block {
		<-ctx.Done()
		return nil, errors.Unavailable("shard_a", ctx.Err())
	}
	return s.res, s.err
}

type stubUpdater struct {
	item      *workitem.WorkItem
	loadErr   error
	gotEnv    service.Envelope
	result    *service.UpdateResult
	updateErr error
	batch     []service.BatchItemResult
	gotBatch  []service.Envelope
}

func (s *stubUpdater) Load(_ context.Context, provenance, id string) (*workitem.WorkItem, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.item, nil
}

func (s *stubUpdater) ApplyUpdate(_ context.Context, env service.Envelope) (*service.UpdateResult, error) {
	s.gotEnv = env
	return s.result, s.updateErr
}

func (s *stubUpdater) ApplyBatch(_ context.Context, envs []service.Envelope) []service.BatchItemResult {
	s.gotBatch = envs
	return s.batch
}

func serve(h *HTTPHandler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes(0).ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	h := NewHTTPHandler(&stubPending{}, &stubUpdater{}, logger.Nop())

	rec := serve(h, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestGetPending(t *testing.T) {
	pending := &stubPending{res: &service.PendingResult{
		Username: "jane",
		Rows: []workitem.PendingRow{
			{Provenance: workitem.ShardA, StoreID: "1", Operation: "Plate Output"},
		},
	}}
	h := NewHTTPHandler(pending, &stubUpdater{}, logger.Nop())

	rec := serve(h, http.MethodGet, "/api/v1/pending?username=Jane%20Doe", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Jane Doe", pending.gotUser)
	rows := decodeBody(t, rec)["rows"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "shard_a", rows[0].(map[string]any)["provenance"])
}

func TestGetPending_ValidationError(t *testing.T) {
	pending := &stubPending{err: errors.InvalidInput("username", "username is required")}
	h := NewHTTPHandler(pending, &stubUpdater{}, logger.Nop())

	rec := serve(h, http.MethodGet, "/api/v1/pending", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)["error"].(map[string]any)
	assert.Equal(t, "INVALID_INPUT", body["code"])
	assert.Equal(t, "username", body["field"])
}

func TestGetWorkItem(t *testing.T) {
	updates := &stubUpdater{item: &workitem.WorkItem{
		Key:   workitem.Key{Provenance: workitem.ShardB, ID: "9"},
		Plate: workitem.Plate{Output: "pending"},
	}}
	h := NewHTTPHandler(&stubPending{}, updates, logger.Nop())

	rec := serve(h, http.MethodGet, "/api/v1/workitems/shard_b/9", "")

	require.Equal(t, http.StatusOK, rec.Code)
	fields := decodeBody(t, rec)["fields"].(map[string]any)
	assert.Equal(t, "pending", fields["PlateOutput"])
}

func TestGetWorkItem_NotFound(t *testing.T) {
	updates := &stubUpdater{loadErr: errors.NotFound("document", "abc")}
	h := NewHTTPHandler(&stubPending{}, updates, logger.Nop())

	rec := serve(h, http.MethodGet, "/api/v1/workitems/document/abc", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateWorkItem(t *testing.T) {
	updates := &stubUpdater{result: &service.UpdateResult{
		Key:    workitem.Key{Provenance: workitem.ShardA, ID: "42"},
		Fields: map[string]any{"PlateOutput": "done"},
	}}
	h := NewHTTPHandler(&stubPending{}, updates, logger.Nop())

	rec := serve(h, http.MethodPost, "/api/v1/workitems/update",
		`{"provenance":"shard_a","storeId":42,"update":{"PlateOutput":"done","PrepressPersonId":17},"actingUser":"jane"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", updates.gotEnv.RecordID())
	assert.Equal(t, "jane", updates.gotEnv.ActingUser)
	assert.Equal(t, json.Number("17"), updates.gotEnv.Update["PrepressPersonId"])
}

func TestUpdateWorkItem_MalformedBody(t *testing.T) {
	h := NewHTTPHandler(&stubPending{}, &stubUpdater{}, logger.Nop())

	rec := serve(h, http.MethodPost, "/api/v1/workitems/update", `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateWorkItem_MismatchReturnsResult(t *testing.T) {
	updates := &stubUpdater{
		result: &service.UpdateResult{
			Key:        workitem.Key{Provenance: workitem.ShardA, ID: "42"},
			Mismatches: []string{"PlateRemark"},
		},
		updateErr: errors.VerificationMismatch("shard_a", "42", []string{"PlateRemark"}),
	}
	h := NewHTTPHandler(&stubPending{}, updates, logger.Nop())

	rec := serve(h, http.MethodPost, "/api/v1/workitems/update", `{"provenance":"shard_a","id":"42","update":{}}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "VERIFICATION_MISMATCH", body["error"].(map[string]any)["code"])
	assert.NotNil(t, body["result"])
}

func TestUpdateWorkItem_Unavailable(t *testing.T) {
	updates := &stubUpdater{updateErr: errors.Unavailable("shard_b", nil)}
	h := NewHTTPHandler(&stubPending{}, updates, logger.Nop())

	rec := serve(h, http.MethodPost, "/api/v1/workitems/update", `{"provenance":"shard_b","id":"1","update":{}}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUpdateBatch(t *testing.T) {
	updates := &stubUpdater{batch: []service.BatchItemResult{
		{Index: 0, OK: true},
		{Index: 1, OK: false, Code: "NOT_FOUND"},
	}}
	h := NewHTTPHandler(&stubPending{}, updates, logger.Nop())

	rec := serve(h, http.MethodPost, "/api/v1/workitems/update/batch",
		`{"items":[{"provenance":"a","id":"1","update":{}},{"provenance":"doc","id":"x","update":{}}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, updates.gotBatch, 2)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["succeeded"])
	assert.Equal(t, float64(1), body["failed"])
}

func TestUpdateBatch_Empty(t *testing.T) {
	h := NewHTTPHandler(&stubPending{}, &stubUpdater{}, logger.Nop())

	rec := serve(h, http.MethodPost, "/api/v1/workitems/update/batch", `{"items":[]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutes_RecoversPanic(t *testing.T) {
	h := NewHTTPHandler(&stubPending{panics: true}, &stubUpdater{}, logger.Nop())

	rec := serve(h, http.MethodGet, "/api/v1/pending?username=jane", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRoutes_TimeoutReturns504(t *testing.T) {
	h := NewHTTPHandler(&stubPending{block: true}, &stubUpdater{}, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pending?username=jane", nil)
	rec := httptest.NewRecorder()
	h.Routes(20*time.Millisecond).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}
