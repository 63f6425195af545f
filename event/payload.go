package event

import (
	"errors"
	"time"
)

// Type names a kind of notification carried by the bus.
type Type string

// TypeCacheInvalidated is published after underlying data changes so that
// caches holding derived entries can drop them.
const TypeCacheInvalidated Type = "cache.invalidated"

// Operation is the closed set of mutation variants a notification can carry.
type Operation int

const (
	// OpUpdate indicates the data behind a key was modified in place.
	OpUpdate Operation = iota
	// OpDelete indicates the data behind a key was removed.
	OpDelete
	// OpRename indicates the data moved from Path to NewPath.
	OpRename
	// OpExpire indicates a derived entry aged out.
	OpExpire
	// OpClear indicates a whole category of data was dropped.
	OpClear
)

// ErrUnknownOperation indicates an Operation outside the closed set.
var ErrUnknownOperation = errors.New("event: unknown operation")

// String returns the wire name of the operation.
func (o Operation) String() string {
	switch o {
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpRename:
		return "rename"
	case OpExpire:
		return "expire"
	case OpClear:
		return "clear"
	default:
		return "unknown"
	}
}

// Valid reports whether the operation is one of the closed set.
func (o Operation) Valid() bool {
	return o >= OpUpdate && o <= OpClear
}

// Payload is one change notification. It is constructed per notification and
// must not be retained by subscribers beyond copying individual fields.
type Payload struct {
	// Key is the cache key the change concerns, when known.
	Key string

	// Path is the underlying resource path the change concerns, when known.
	Path string

	// NewPath is the destination path for OpRename.
	NewPath string

	// Operation is the mutation variant.
	Operation Operation

	// CacheType categorizes which kind of cache the event concerns.
	CacheType string

	// Timestamp is when the notification was published. Filled by the bus
	// if left zero.
	Timestamp time.Time

	// Metadata carries caller-supplied context.
	Metadata map[string]any
}

// Update builds a payload for an in-place modification.
func Update(key, path string) Payload {
	return Payload{Key: key, Path: path, Operation: OpUpdate}
}

// Delete builds a payload for a removal.
func Delete(key, path string) Payload {
	return Payload{Key: key, Path: path, Operation: OpDelete}
}

// Rename builds a payload for a move from oldPath to newPath.
func Rename(key, oldPath, newPath string) Payload {
	return Payload{Key: key, Path: oldPath, NewPath: newPath, Operation: OpRename}
}

// Expire builds a payload for an aged-out entry.
func Expire(key string) Payload {
	return Payload{Key: key, Operation: OpExpire}
}

// Clear builds a payload for dropping a whole cache category.
func Clear(cacheType string) Payload {
	return Payload{CacheType: cacheType, Operation: OpClear}
}

// WithCacheType returns a copy of the payload with the cache category set.
func (p Payload) WithCacheType(cacheType string) Payload {
	p.CacheType = cacheType
	return p
}

// WithMetadata returns a copy of the payload with metadata attached.
func (p Payload) WithMetadata(md map[string]any) Payload {
	p.Metadata = md
	return p
}
