package ir

import "time"

// Action names the kind of access a rule guards.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	ActionQuery  Action = "query"
	ActionLog    Action = "log"
)

// Audit actions recorded in log entries.
const (
	AuditCreate = "create"
	AuditUpdate = "update"
	AuditDelete = "delete"
)

// Meta carries caller metadata for a single operation.
type Meta struct {
	User  string         `json:"user,omitempty" yaml:"user,omitempty"`
	Roles []string       `json:"roles,omitempty" yaml:"roles,omitempty"`
	Extra map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// HasRole reports whether the caller carries role.
func (m Meta) HasRole(role string) bool {
	for _, r := range m.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ToObject renders Meta as a JSON-compatible map for storage.
func (m Meta) ToObject() map[string]any {
	out := map[string]any{}
	if m.User != "" {
		out["user"] = m.User
	}
	if len(m.Roles) > 0 {
		roles := make([]any, len(m.Roles))
		for i, r := range m.Roles {
			roles[i] = r
		}
		out["roles"] = roles
	}
	if len(m.Extra) > 0 {
		out["extra"] = CloneValue(m.Extra)
	}
	return out
}

// MetaFromObject is the inverse of ToObject. Unknown shapes are ignored.
func MetaFromObject(v any) Meta {
	m, ok := AsMap(v)
	if !ok {
		return Meta{}
	}
	var meta Meta
	meta.User, _ = m["user"].(string)
	if roles, ok := m["roles"].([]any); ok {
		for _, r := range roles {
			if s, ok := r.(string); ok {
				meta.Roles = append(meta.Roles, s)
			}
		}
	}
	if extra, ok := AsMap(m["extra"]); ok {
		meta.Extra, _ = CloneValue(map[string]any(extra)).(map[string]any)
	}
	return meta
}

// Operation is the per-call context of one in-flight engine operation.
// It is owned exclusively by that operation and handed to rules read-only.
type Operation struct {
	Type   string
	ID     string
	Action Action

	// Current is the stored object snapshot (or the factory default on
	// create / upsert).
	Current Object

	// Overlay is the caller-supplied partial object, if any.
	Overlay Object

	// Explicit is a caller-supplied changeset, if any.
	Explicit Changeset

	// Changes is the computed changeset.
	Changes Changeset

	// Updated is Current with Changes applied.
	Updated Object

	// Change is the single change under evaluation by a field rule.
	Change *Change

	// Query is the opaque query specification for query operations.
	Query any

	Meta Meta

	// Result accumulates the operation's output (object, objects, entries).
	Result any
}

// Field returns the field under evaluation, or "" for whole-object checks.
func (op *Operation) Field() string {
	if op.Change == nil {
		return ""
	}
	return op.Change.Field()
}

// WithChange returns a shallow copy of op bound to a single change. The copy
// shares the read-only snapshots of op.
func (op *Operation) WithChange(c Change) *Operation {
	cp := *op
	cp.Change = &c
	return &cp
}

// LogEntry is an immutable audit record of one mutation.
type LogEntry struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Action    string    `json:"action"`
	Type      string    `json:"type"`
	ObjectID  string    `json:"objectId"`
	Meta      Meta      `json:"meta"`
	CreatedAt time.Time `json:"createdAt"`

	// Error records why the primary write failed, if it did.
	Error string `json:"error,omitempty"`
}

// Event is a lifecycle notification emitted after successful persistence.
type Event struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Object Object `json:"object"`
}
