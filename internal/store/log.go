package store

import (
	"context"
	"time"

	"github.com/roach88/objgate/internal/driver"
	"github.com/roach88/objgate/internal/ir"
	"github.com/roach88/objgate/internal/queryir"
)

// logOptions are the driver options for the audit entry type. Entries are
// always keyed by "id", whatever the data id field is.
var logOptions = driver.Options{IDField: ir.DefaultIDField}

// audit writes an entry to every log driver. Failures are logged and
// dropped.
func (s *Store) audit(ctx context.Context, action, typ, id string, meta ir.Meta, cause error) {
	set := s.snapshot(true)
	if len(set) == 0 {
		return
	}
	entry := ir.LogEntry{
		ID:        s.newLogID(),
		Seq:       s.seq.Next(),
		Action:    action,
		Type:      typ,
		ObjectID:  id,
		Meta:      meta,
		CreatedAt: s.now().UTC(),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	obj := EntryObject(entry)
	// The entry is written even if the caller has gone away.
	err := s.fanOut(context.WithoutCancel(ctx), set, "log", func(ctx context.Context, d driver.Driver) error {
		return d.Put(ctx, s.logType, obj, logOptions)
	})
	if err != nil {
		s.logger.Warn("audit log write failed",
			"action", action,
			"type", typ,
			"id", id,
			"error", err)
	}
}

// GetLog returns up to limit audit entries for (typ, id), newest first.
// An empty id returns entries for every object of typ. limit <= 0 means the
// default limit; limits above MaxLogLimit are clamped.
func (s *Store) GetLog(ctx context.Context, typ, id string, limit int) ([]ir.LogEntry, error) {
	r, err := s.route(s.snapshot(true), driver.AuthQuery, "getLog")
	if err != nil {
		return nil, err
	}

	var filter []queryir.Predicate
	if typ != "" {
		filter = append(filter, queryir.Equals{Field: "type", Value: typ})
	}
	if id != "" {
		filter = append(filter, queryir.Equals{Field: "objectId", Value: id})
	}
	opts := logOptions
	opts.Sort = []queryir.SortKey{{Field: "seq", Desc: true}}
	opts.Limit = s.clampLimit(limit)

	objs, err := r.driver.Query(ctx, s.logType, queryir.Select{Filter: queryir.And{Predicates: filter}}, opts)
	if err != nil {
		return nil, backendError(r.name, err)
	}
	entries := make([]ir.LogEntry, 0, len(objs))
	for _, obj := range objs {
		entries = append(entries, EntryFromObject(obj))
	}
	return entries, nil
}

// ResumeLog advances the seq clock past the newest stored entry so that a
// restarted process keeps appending in order.
func (s *Store) ResumeLog(ctx context.Context) error {
	entries, err := s.GetLog(ctx, "", "", 1)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		s.seq.AdvanceTo(entries[0].Seq)
	}
	return nil
}

func (s *Store) clampLimit(limit int) int {
	if limit <= 0 {
		return s.logLimit
	}
	return min(limit, MaxLogLimit)
}

// EntryObject renders an audit entry as a storable object.
func EntryObject(e ir.LogEntry) ir.Object {
	obj := ir.Object{
		"id":        e.ID,
		"seq":       e.Seq,
		"action":    e.Action,
		"type":      e.Type,
		"objectId":  e.ObjectID,
		"meta":      e.Meta.ToObject(),
		"createdAt": e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.Error != "" {
		obj["error"] = e.Error
	}
	return obj
}

// EntryFromObject is the inverse of EntryObject.
func EntryFromObject(obj ir.Object) ir.LogEntry {
	e := ir.LogEntry{
		ID:   obj.ID(ir.DefaultIDField),
		Meta: ir.MetaFromObject(obj["meta"]),
	}
	if n, ok := ir.AsNumber(obj["seq"]); ok {
		e.Seq = int64(n)
	}
	e.Action, _ = obj["action"].(string)
	e.Type, _ = obj["type"].(string)
	e.ObjectID, _ = obj["objectId"].(string)
	e.Error, _ = obj["error"].(string)
	if s, ok := obj["createdAt"].(string); ok {
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, s)
	}
	return e
}
