package workitem

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pesio-ai/be-prepress-worklist/internal/platform/errors"
)

// Provenance identifies the store that owns a record.
type Provenance int

const (
	ProvenanceUnknown Provenance = iota
	ShardA
	ShardB
	Document
)

// Shards lists the relational shards in query order.
func Shards() []Provenance {
	return []Provenance{ShardA, ShardB}
}

func (p Provenance) String() string {
	switch p {
	case ShardA:
		return "shard_a"
	case ShardB:
		return "shard_b"
	case Document:
		return "document"
	default:
		return "unknown"
	}
}

// IsShard reports whether the record lives in a relational shard.
func (p Provenance) IsShard() bool {
	return p == ShardA || p == ShardB
}

// ParseProvenance accepts the canonical names plus the common spellings
// callers send ("ShardA", "site-a", "doc", ...).
func ParseProvenance(s string) (Provenance, error) {
	norm := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "sharda", "sitea", "a":
		return ShardA, nil
	case "shardb", "siteb", "b":
		return ShardB, nil
	case "document", "documents", "doc", "docstore":
		return Document, nil
	}
	return ProvenanceUnknown, errors.InvalidInput("provenance", fmt.Sprintf("unknown provenance %q", s))
}

func (p Provenance) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Provenance) UnmarshalText(b []byte) error {
	v, err := ParseProvenance(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Key addresses one record in one store.
type Key struct {
	Provenance Provenance `json:"provenance"`
	ID         string     `json:"id"`
}

func (k Key) String() string {
	return k.Provenance.String() + "/" + k.ID
}

// Validate rejects keys that cannot address a record.
func (k Key) Validate() error {
	if k.Provenance == ProvenanceUnknown {
		return errors.InvalidInput("provenance", "provenance is required")
	}
	if strings.TrimSpace(k.ID) == "" {
		return errors.InvalidInput("id", "id is required")
	}
	if k.Provenance.IsShard() {
		if _, err := k.ShardID(); err != nil {
			return err
		}
	}
	return nil
}

// ShardID parses the shard-native integer id.
func (k Key) ShardID() (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(k.ID), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.InvalidInput("id", fmt.Sprintf("%s id must be a positive integer", k.Provenance))
	}
	return id, nil
}
