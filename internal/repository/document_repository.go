package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pesio-ai/be-prepress-worklist/internal/platform/docstore"
	"github.com/pesio-ai/be-prepress-worklist/internal/platform/errors"
	"github.com/pesio-ai/be-prepress-worklist/internal/workitem"
)

// DocumentRepository reads and partially updates job documents.
type DocumentRepository struct {
	jobs *mongo.Collection
	now  func() time.Time
}

// NewDocumentRepository creates a repository over the named jobs
// collection.
func NewDocumentRepository(client *docstore.Client, collection string) *DocumentRepository {
	return &DocumentRepository{jobs: client.Collection(collection), now: time.Now}
}

func objectID(key workitem.Key) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(key.ID)
	if err != nil {
		return primitive.NilObjectID, errors.InvalidInput("id", "document id must be a 24 character hex object id")
	}
	return oid, nil
}

func liveDocument(oid primitive.ObjectID) bson.M {
	return bson.M{"_id": oid, "isDeleted": notDeleted()}
}

// Load returns a live document. Soft-deleted documents are not found.
func (r *DocumentRepository) Load(ctx context.Context, key workitem.Key) (*workitem.WorkItem, error) {
	oid, err := objectID(key)
	if err != nil {
		return nil, err
	}

	var doc jobDocument
	err = r.jobs.FindOne(ctx, liveDocument(oid)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, errors.NotFound("document", key.ID)
	}
	if err != nil {
		return nil, errors.Unavailable(workitem.Document.String(), err)
	}

	w := doc.toWorkItem()
	return &w, nil
}

// Persist sets only the fields that changed between current and derived,
// then re-reads the document and compares those fields.
func (r *DocumentRepository) Persist(ctx context.Context, current, derived workitem.WorkItem, actingUser string) (*WriteResult, error) {
	oid, err := objectID(derived.Key)
	if err != nil {
		return nil, err
	}

	changed := workitem.Diff(current, derived)
	if len(changed) > 0 {
		set := setDocument(derived, changed)
		set["updatedAt"] = r.now().UTC()
		if actingUser != "" {
			set["updatedBy"] = actingUser
		}

		res, err := r.jobs.UpdateOne(ctx, liveDocument(oid), bson.M{"$set": set})
		if err != nil {
			return nil, errors.Unavailable(workitem.Document.String(), err)
		}
		if res.MatchedCount == 0 {
			return nil, errors.NotFound("document", derived.Key.ID)
		}
	}

	persisted, err := r.Load(ctx, derived.Key)
	if err != nil {
		return nil, err
	}

	return &WriteResult{
		Fields:     changed,
		Persisted:  *persisted,
		Mismatches: workitem.Mismatches(derived, *persisted, changed),
	}, nil
}

// PendingForUser returns live documents that still need work and are
// assigned to userKey.
func (r *DocumentRepository) PendingForUser(ctx context.Context, userKey string) ([]workitem.WorkItem, error) {
	cursor, err := r.jobs.Find(ctx, pendingFilter(userKey))
	if err != nil {
		return nil, errors.Unavailable(workitem.Document.String(), err)
	}
	defer cursor.Close(ctx)

	var docs []jobDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Unavailable(workitem.Document.String(), err)
	}

	out := make([]workitem.WorkItem, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toWorkItem())
	}
	return out, nil
}
