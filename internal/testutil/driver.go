package testutil

import (
	"context"
	"sync"

	"github.com/roach88/objgate/internal/driver"
	"github.com/roach88/objgate/internal/driver/memory"
	"github.com/roach88/objgate/internal/ir"
)

// Call records one driver invocation.
type Call struct {
	Op   string
	Type string
	ID   string
}

// RecordingDriver is a driver stub that records every call and can be told
// to fail specific operations. Storage is delegated to a memory driver.
type RecordingDriver struct {
	*memory.Driver

	mu    sync.Mutex
	calls []Call
	fail  map[string]error
}

var _ driver.Driver = (*RecordingDriver)(nil)

// NewRecordingDriver creates an empty recording driver.
func NewRecordingDriver() *RecordingDriver {
	return &RecordingDriver{Driver: memory.New(), fail: map[string]error{}}
}

// FailOn makes every subsequent call of op ("get", "put", "delete",
// "query", "search") return err. A nil err clears the failure.
func (r *RecordingDriver) FailOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.fail, op)
		return
	}
	r.fail[op] = err
}

// Calls returns a copy of the recorded calls in order.
func (r *RecordingDriver) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Count returns how many times op was called.
func (r *RecordingDriver) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (r *RecordingDriver) record(op, typ, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: op, Type: typ, ID: id})
	return r.fail[op]
}

func (r *RecordingDriver) Get(ctx context.Context, typ, id string, opts driver.Options) (ir.Object, error) {
	if err := r.record("get", typ, id); err != nil {
		return nil, err
	}
	return r.Driver.Get(ctx, typ, id, opts)
}

func (r *RecordingDriver) Put(ctx context.Context, typ string, obj ir.Object, opts driver.Options) error {
	if err := r.record("put", typ, obj.ID(opts.ID())); err != nil {
		return err
	}
	return r.Driver.Put(ctx, typ, obj, opts)
}

func (r *RecordingDriver) Delete(ctx context.Context, typ, id string, opts driver.Options) (int, error) {
	if err := r.record("delete", typ, id); err != nil {
		return 0, err
	}
	return r.Driver.Delete(ctx, typ, id, opts)
}

func (r *RecordingDriver) Query(ctx context.Context, typ string, query any, opts driver.Options) ([]ir.Object, error) {
	if err := r.record("query", typ, ""); err != nil {
		return nil, err
	}
	return r.Driver.Query(ctx, typ, query, opts)
}

func (r *RecordingDriver) Search(ctx context.Context, typ, text string, opts driver.Options) ([]ir.Object, error) {
	if err := r.record("search", typ, ""); err != nil {
		return nil, err
	}
	return r.Driver.Search(ctx, typ, text, opts)
}
