package store

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/objgate/internal/driver"
	"github.com/roach88/objgate/internal/ir"
)

// Put writes obj to every data driver concurrently, then records an audit
// entry for action (create or update).
//
// The first driver error is returned after all drivers finish. Writes that
// succeeded are not rolled back.
func (s *Store) Put(ctx context.Context, typ string, obj ir.Object, action string, meta ir.Meta, opts driver.Options) error {
	id := obj.ID(opts.ID())
	err := s.fanOut(ctx, s.snapshot(false), "put", func(ctx context.Context, d driver.Driver) error {
		return d.Put(ctx, typ, obj, opts)
	})
	s.audit(ctx, action, typ, id, meta, err)
	return err
}

// Delete removes the object from every data driver concurrently, then
// records an audit entry. It returns the largest count any driver reported.
func (s *Store) Delete(ctx context.Context, typ, id string, meta ir.Meta, opts driver.Options) (int, error) {
	var removed atomic.Int64
	err := s.fanOut(ctx, s.snapshot(false), "delete", func(ctx context.Context, d driver.Driver) error {
		n, err := d.Delete(ctx, typ, id, opts)
		if err != nil {
			return err
		}
		for {
			cur := removed.Load()
			if int64(n) <= cur || removed.CompareAndSwap(cur, int64(n)) {
				break
			}
		}
		return nil
	})
	s.audit(ctx, ir.AuditDelete, typ, id, meta, err)
	if err != nil {
		return 0, err
	}
	return int(removed.Load()), nil
}

// fanOut runs call against every driver in set and waits for all of them.
func (s *Store) fanOut(ctx context.Context, set []registration, op string, call func(context.Context, driver.Driver) error) error {
	if len(set) == 0 {
		return ir.DriverUnavailable(op)
	}
	// A plain group, not WithContext: one driver failing must not cancel
	// writes already in flight on the others.
	var g errgroup.Group
	for _, r := range set {
		r := r
		g.Go(func() error {
			if err := call(ctx, r.driver); err != nil {
				return backendError(r.name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
