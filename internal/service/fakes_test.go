package service

import (
	"context"
	"strings"

	"github.com/pesio-ai/be-prepress-worklist/internal/client"
	"github.com/pesio-ai/be-prepress-worklist/internal/platform/errors"
	"github.com/pesio-ai/be-prepress-worklist/internal/repository"
	"github.com/pesio-ai/be-prepress-worklist/internal/workitem"
)

type fakeStore struct {
	records  map[string]workitem.WorkItem
	persists int
	// tamper alters the record between write and re-read.
	tamper func(*workitem.WorkItem)
}

func newFakeStore(items ...workitem.WorkItem) *fakeStore {
	s := &fakeStore{records: make(map[string]workitem.WorkItem)}
	for _, w := range items {
		s.records[w.Key.ID] = w
	}
	return s
}

func (s *fakeStore) Load(_ context.Context, key workitem.Key) (*workitem.WorkItem, error) {
	w, ok := s.records[key.ID]
	if !ok {
		return nil, errors.NotFound("job", key.String())
	}
	return &w, nil
}

func (s *fakeStore) Persist(_ context.Context, current, derived workitem.WorkItem, _ string) (*repository.WriteResult, error) {
	s.persists++
	stored := derived
	if s.tamper != nil {
		s.tamper(&stored)
	}
	s.records[derived.Key.ID] = stored
	return &repository.WriteResult{
		Fields:     workitem.Diff(current, derived),
		Persisted:  stored,
		Mismatches: workitem.Mismatches(derived, stored, workitem.FieldNames()),
	}, nil
}

type fakeLedger struct {
	byName map[workitem.Provenance]map[string]int64
	byKey  map[workitem.Provenance]map[string]int64
	err    map[workitem.Provenance]error
}

func (f *fakeLedger) LedgerIDByName(_ context.Context, shard workitem.Provenance, name string) (*int64, error) {
	if err := f.err[shard]; err != nil {
		return nil, err
	}
	if id, ok := f.byName[shard][strings.ToLower(name)]; ok {
		return &id, nil
	}
	return nil, nil
}

func (f *fakeLedger) LedgerIDByKey(_ context.Context, shard workitem.Provenance, key string) (*int64, error) {
	if err := f.err[shard]; err != nil {
		return nil, err
	}
	if id, ok := f.byKey[shard][strings.ToLower(key)]; ok {
		return &id, nil
	}
	return nil, nil
}

type fakeDocUsers struct {
	keys map[string]string
	err  error
}

func (f *fakeDocUsers) UserKeyByName(_ context.Context, name string) (*string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if k, ok := f.keys[strings.ToLower(name)]; ok {
		return &k, nil
	}
	return nil, nil
}

type fakeShardWorklist struct {
	shard workitem.Provenance
	rows  []repository.WorklistRow
	err   error
	calls int
}

func (f *fakeShardWorklist) Shard() workitem.Provenance { return f.shard }

func (f *fakeShardWorklist) PendingWorklist(context.Context) ([]repository.WorklistRow, error) {
	f.calls++
	return f.rows, f.err
}

type fakeDocWorklist struct {
	docs    []workitem.WorkItem
	err     error
	gotKeys []string
}

func (f *fakeDocWorklist) PendingForUser(_ context.Context, key string) ([]workitem.WorkItem, error) {
	f.gotKeys = append(f.gotKeys, key)
	return f.docs, f.err
}

type fakePublisher struct {
	events []client.WorkItemEvent
}

func (f *fakePublisher) PublishWorkItemUpdated(e client.WorkItemEvent) {
	f.events = append(f.events, e)
}

func int64Ptr(v int64) *int64 { return &v }
