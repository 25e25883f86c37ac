package repository

import (
	"context"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pesio-ai/be-prepress-worklist/internal/platform/database"
	"github.com/pesio-ai/be-prepress-worklist/internal/platform/docstore"
	"github.com/pesio-ai/be-prepress-worklist/internal/platform/errors"
	"github.com/pesio-ai/be-prepress-worklist/internal/workitem"
)

// LedgerUserRepository looks up active ledger users in a shard.
type LedgerUserRepository struct {
	dbs *database.Manager
}

// NewLedgerUserRepository creates a ledger user repository.
func NewLedgerUserRepository(dbs *database.Manager) *LedgerUserRepository {
	return &LedgerUserRepository{dbs: dbs}
}

// LedgerIDByName returns the ledger id of the active user whose display
// name matches, ignoring case. No match returns nil and no error.
func (r *LedgerUserRepository) LedgerIDByName(ctx context.Context, shard workitem.Provenance, displayName string) (*int64, error) {
	query := `
		SELECT ledger_id
		FROM ledger_users
		WHERE lower(display_name) = lower($1) AND is_active
		ORDER BY ledger_id
		LIMIT 1
	`
	return r.lookup(ctx, shard, query, strings.TrimSpace(displayName))
}

// LedgerIDByKey returns the ledger id of the active user with the given
// user key. No match returns nil and no error.
func (r *LedgerUserRepository) LedgerIDByKey(ctx context.Context, shard workitem.Provenance, userKey string) (*int64, error) {
	query := `
		SELECT ledger_id
		FROM ledger_users
		WHERE lower(user_key) = lower($1) AND is_active
		ORDER BY ledger_id
		LIMIT 1
	`
	return r.lookup(ctx, shard, query, strings.TrimSpace(userKey))
}

func (r *LedgerUserRepository) lookup(ctx context.Context, shard workitem.Provenance, query, arg string) (*int64, error) {
	if arg == "" {
		return nil, nil
	}
	db, err := r.dbs.Acquire(shard.String())
	if err != nil {
		return nil, err
	}

	var id int64
	err = db.QueryRow(ctx, query, arg).Scan(&id)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Unavailable(shard.String(), err)
	}
	return &id, nil
}

// userDocument is the users collection shape.
type userDocument struct {
	UserKey     string `bson:"userKey"`
	DisplayName string `bson:"displayName"`
	Active      bool   `bson:"active"`
}

// DocumentUserRepository looks up active users in the document store.
type DocumentUserRepository struct {
	users *mongo.Collection
}

// NewDocumentUserRepository creates a document user repository over the
// named users collection.
func NewDocumentUserRepository(client *docstore.Client, collection string) *DocumentUserRepository {
	return &DocumentUserRepository{users: client.Collection(collection)}
}

// UserKeyByName returns the key of the active user whose display name
// matches, ignoring case. No match returns nil and no error.
func (r *DocumentUserRepository) UserKeyByName(ctx context.Context, displayName string) (*string, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, nil
	}

	var doc userDocument
	err := r.users.FindOne(ctx, displayNameFilter(name)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Unavailable(workitem.Document.String(), err)
	}
	if doc.UserKey == "" {
		return nil, nil
	}
	key := strings.ToLower(doc.UserKey)
	return &key, nil
}

func displayNameFilter(name string) bson.M {
	return bson.M{
		"displayName": bson.M{"$regex": "^" + regexp.QuoteMeta(name) + "$", "$options": "i"},
		"active":      true,
	}
}
