package service

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/pesio-ai/be-prepress-worklist/internal/client"
	"github.com/pesio-ai/be-prepress-worklist/internal/platform/errors"
	"github.com/pesio-ai/be-prepress-worklist/internal/platform/logger"
	"github.com/pesio-ai/be-prepress-worklist/internal/rules"
	"github.com/pesio-ai/be-prepress-worklist/internal/workitem"
)

// RecordID is a record id that may be sent as a JSON string or number.
type RecordID string

func (id *RecordID) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*id = RecordID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.InvalidInput("id", "expected a string or number")
	}
	*id = RecordID(s)
	return nil
}

// Envelope is one update request. The record id may arrive as id,
// storeId or documentId.
type Envelope struct {
	Provenance string         `json:"provenance"`
	ID         RecordID       `json:"id,omitempty"`
	StoreID    RecordID       `json:"storeId,omitempty"`
	DocumentID RecordID       `json:"documentId,omitempty"`
	Update     map[string]any `json:"update"`
	ActingUser string         `json:"actingUser"`
}

// RecordID returns the first id the caller supplied.
func (e Envelope) RecordID() string {
	for _, id := range []RecordID{e.ID, e.StoreID, e.DocumentID} {
		if v := strings.TrimSpace(string(id)); v != "" {
			return v
		}
	}
	return ""
}

// UpdateResult is the verified outcome of one update.
type UpdateResult struct {
	Key        workitem.Key   `json:"key"`
	Fields     map[string]any `json:"fields"`
	Changed    []string       `json:"changed"`
	Mismatches []string       `json:"mismatches,omitempty"`
}

// BatchItemResult reports one item of a batch.
type BatchItemResult struct {
	Index      int            `json:"index"`
	Provenance string         `json:"provenance"`
	ID         string         `json:"id"`
	OK         bool           `json:"ok"`
	Code       string         `json:"code,omitempty"`
	Error      string         `json:"error,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
	Mismatches []string       `json:"mismatches,omitempty"`
}

// UpdateService loads, derives, persists and verifies work item updates.
type UpdateService struct {
	stores    map[workitem.Provenance]WorkItemStore
	identity  *IdentityService
	engine    *rules.Engine
	publisher EventPublisher
	log       *logger.Logger
}

// NewUpdateService creates a new UpdateService. publisher may be nil.
func NewUpdateService(
	stores map[workitem.Provenance]WorkItemStore,
	identity *IdentityService,
	engine *rules.Engine,
	publisher EventPublisher,
	log *logger.Logger,
) *UpdateService {
	return &UpdateService{
		stores:    stores,
		identity:  identity,
		engine:    engine,
		publisher: publisher,
		log:       log,
	}
}

func (s *UpdateService) resolveKey(provenance, id string) (workitem.Key, WorkItemStore, error) {
	p, err := workitem.ParseProvenance(provenance)
	if err != nil {
		return workitem.Key{}, nil, err
	}
	key := workitem.Key{Provenance: p, ID: strings.TrimSpace(id)}
	if err := key.Validate(); err != nil {
		return workitem.Key{}, nil, err
	}
	store, ok := s.stores[p]
	if !ok {
		return workitem.Key{}, nil, errors.Unavailable(p.String(), nil)
	}
	return key, store, nil
}

// Load returns the current state of one record.
func (s *UpdateService) Load(ctx context.Context, provenance, id string) (*workitem.WorkItem, error) {
	key, store, err := s.resolveKey(provenance, id)
	if err != nil {
		return nil, err
	}
	return store.Load(ctx, key)
}

// ApplyUpdate applies one envelope. When the re-read differs from what
// was written the result is returned alongside a VERIFICATION_MISMATCH
// error.
func (s *UpdateService) ApplyUpdate(ctx context.Context, env Envelope) (*UpdateResult, error) {
	key, store, err := s.resolveKey(env.Provenance, env.RecordID())
	if err != nil {
		return nil, err
	}

	update, people, err := workitem.ParseUpdate(env.Update)
	if err != nil {
		return nil, err
	}

	current, err := store.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	for role, in := range people {
		if v, ok := s.resolveAssignee(ctx, key.Provenance, role, in); ok {
			*update.Assignee(role) = v
		}
	}

	derived := s.engine.Merge(*current, update)

	written, err := store.Persist(ctx, *current, derived, env.ActingUser)
	if err != nil {
		s.log.Error().Err(err).Str("key", key.String()).Msg("Failed to persist update")
		return nil, err
	}

	result := &UpdateResult{
		Key:        key,
		Fields:     workitem.Subset(written.Persisted, verifiedFields(env.Update, written.Fields)),
		Changed:    written.Fields,
		Mismatches: written.Mismatches,
	}
	if result.Changed == nil {
		result.Changed = []string{}
	}

	if s.publisher != nil {
		s.publisher.PublishWorkItemUpdated(client.WorkItemEvent{
			Provenance: key.Provenance.String(),
			ResourceID: key.ID,
			ActorID:    env.ActingUser,
			Fields:     written.Fields,
			Mismatches: written.Mismatches,
		})
	}

	if len(written.Mismatches) > 0 {
		s.log.Warn().
			Str("key", key.String()).
			Strs("fields", written.Mismatches).
			Msg("Persisted values differ from written values")
		return result, errors.VerificationMismatch(key.Provenance.String(), key.ID, written.Mismatches)
	}

	s.log.Info().
		Str("key", key.String()).
		Str("acting_user", env.ActingUser).
		Int("changed", len(written.Fields)).
		Msg("Work item updated")

	return result, nil
}

// ApplyBatch applies each envelope in order. A failing item does not
// stop the rest.
func (s *UpdateService) ApplyBatch(ctx context.Context, envs []Envelope) []BatchItemResult {
	out := make([]BatchItemResult, 0, len(envs))
	for i, env := range envs {
		item := BatchItemResult{Index: i, Provenance: env.Provenance, ID: env.RecordID()}

		res, err := s.ApplyUpdate(ctx, env)
		if res != nil {
			item.Provenance = res.Key.Provenance.String()
			item.Fields = res.Fields
			item.Mismatches = res.Mismatches
		}
		if err != nil {
			item.Code = string(errors.CodeOf(err))
			item.Error = err.Error()
		} else {
			item.OK = true
		}
		out = append(out, item)
	}
	return out
}

// resolveAssignee applies the precedence explicit id, display name, key,
// then the stored value. ok=false leaves the stored assignee untouched.
func (s *UpdateService) resolveAssignee(ctx context.Context, p workitem.Provenance, role workitem.Role, in workitem.AssigneeInput) (workitem.Optional[workitem.Assignee], bool) {
	if in.Empty() {
		return workitem.Optional[workitem.Assignee]{}, false
	}

	lookupFailed := func(err error, by string) {
		s.log.Warn().Err(err).
			Str("provenance", p.String()).
			Str("role", role.String()).
			Str("by", by).
			Msg("Assignee lookup failed, falling back")
	}

	if p.IsShard() {
		if in.ID != nil {
			return workitem.Some(workitem.Assignee{LedgerID: in.ID}), true
		}
		if in.Name != "" {
			id, err := s.identity.ResolveLedgerID(ctx, p, in.Name)
			if err != nil {
				lookupFailed(err, "name")
			} else if id != nil {
				return workitem.Some(workitem.Assignee{LedgerID: id}), true
			}
		}
		if in.Key != "" {
			id, err := s.identity.ResolveLedgerIDByKey(ctx, p, in.Key)
			if err != nil {
				lookupFailed(err, "key")
			} else if id != nil {
				return workitem.Some(workitem.Assignee{LedgerID: id}), true
			}
		}
	} else {
		if in.Name != "" {
			key, err := s.identity.ResolveUserKey(ctx, in.Name)
			if err != nil {
				lookupFailed(err, "name")
			} else if key != nil {
				return workitem.Some(workitem.Assignee{UserKey: *key}), true
			}
		}
		if in.Key != "" {
			return workitem.Some(workitem.Assignee{UserKey: in.Key}), true
		}
	}

	if in.Clear && in.ID == nil && in.Name == "" && in.Key == "" {
		return workitem.Null[workitem.Assignee](), true
	}

	s.log.Debug().
		Str("provenance", p.String()).
		Str("role", role.String()).
		Msg("Assignee unresolved, keeping stored value")
	return workitem.Optional[workitem.Assignee]{}, false
}

// verifiedFields is the union of the fields the caller named and the
// fields the write changed, in sorted order.
func verifiedFields(raw map[string]any, changed []string) []string {
	known := make(map[string]bool)
	for _, name := range workitem.FieldNames() {
		known[name] = true
	}

	set := make(map[string]bool, len(changed))
	for _, name := range changed {
		set[name] = true
	}
	for name := range raw {
		if known[name] {
			set[name] = true
			continue
		}
		for _, role := range workitem.Roles() {
			if strings.HasPrefix(name, role.PersonField()) {
				set[role.PersonField()] = true
			}
		}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func formatLedgerID(id int64) string {
	return strconv.FormatInt(id, 10)
}
