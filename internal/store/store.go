package store

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/multierr"

	"github.com/roach88/objgate/internal/driver"
	"github.com/roach88/objgate/internal/ir"
)

const (
	// DefaultLogType is the object type audit entries are stored under.
	DefaultLogType = "_log"

	// DefaultLogLimit is the number of entries GetLog returns when the
	// caller does not ask for a specific amount.
	DefaultLogLimit = 10

	// MaxLogLimit bounds the number of entries GetLog returns.
	MaxLogLimit = 100
)

type registration struct {
	name      string
	driver    driver.Driver
	authority driver.Authority
}

// Store routes reads to authoritative drivers and fans writes out to all
// drivers.
type Store struct {
	mu         sync.RWMutex
	drivers    []registration
	logDrivers []registration

	logType  string
	logLimit int
	seq      *SeqClock
	now      func() time.Time
	newLogID func() string
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogType sets the object type audit entries are stored under.
func WithLogType(typ string) Option {
	return func(s *Store) { s.logType = typ }
}

// WithDefaultLogLimit sets the GetLog default limit. It is clamped to
// MaxLogLimit.
func WithDefaultLogLimit(n int) Option {
	return func(s *Store) { s.logLimit = n }
}

// WithSeqClock sets the clock stamping audit entries.
func WithSeqClock(c *SeqClock) Option {
	return func(s *Store) { s.seq = c }
}

// WithClock sets the wall clock used for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogIDs sets the audit entry id generator. Defaults to ULIDs.
func WithLogIDs(gen func() string) Option {
	return func(s *Store) { s.newLogID = gen }
}

// WithLogger sets the logger used for suppressed audit failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a store with no drivers.
func New(opts ...Option) *Store {
	s := &Store{
		logType:  DefaultLogType,
		logLimit: DefaultLogLimit,
		seq:      NewSeqClock(),
		now:      time.Now,
		newLogID: func() string { return ulid.Make().String() },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logLimit <= 0 {
		s.logLimit = DefaultLogLimit
	}
	s.logLimit = min(s.logLimit, MaxLogLimit)
	return s
}

// LogType returns the object type audit entries are stored under.
func (s *Store) LogType() string {
	return s.logType
}

// AddDriver appends a data driver. tag lists the reads it is authoritative
// for, e.g. "get,query".
func (s *Store) AddDriver(name string, d driver.Driver, tag string) error {
	return s.add(&s.drivers, "data", name, d, tag)
}

// AddLogDriver appends a log driver. Only the "query" authority is used, by
// GetLog.
func (s *Store) AddLogDriver(name string, d driver.Driver, tag string) error {
	return s.add(&s.logDrivers, "log", name, d, tag)
}

// RemoveDriver removes a data driver by name and reports whether it existed.
func (s *Store) RemoveDriver(name string) bool {
	return s.remove(&s.drivers, name)
}

// RemoveLogDriver removes a log driver by name and reports whether it
// existed.
func (s *Store) RemoveLogDriver(name string) bool {
	return s.remove(&s.logDrivers, name)
}

// Drivers returns the registered data driver names in registration order.
func (s *Store) Drivers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return names(s.drivers)
}

// LogDrivers returns the registered log driver names in registration order.
func (s *Store) LogDrivers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return names(s.logDrivers)
}

func names(set []registration) []string {
	out := make([]string, len(set))
	for i, r := range set {
		out[i] = r.name
	}
	return out
}

func (s *Store) add(set *[]registration, kind, name string, d driver.Driver, tag string) error {
	if name == "" {
		return ir.InvalidInput("%s driver name is required", kind)
	}
	if d == nil {
		return ir.InvalidInput("%s driver %q is nil", kind, name)
	}
	auth, err := driver.ParseAuthority(tag)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range *set {
		if r.name == name {
			return ir.InvalidInput("%s driver %q already registered", kind, name)
		}
		if overlap := r.authority & auth; overlap != 0 {
			return ir.InvalidInput("%s driver %q: %q already has authority for %s; at most one authoritative driver per operation",
				kind, name, r.name, overlap)
		}
	}
	*set = append(*set, registration{name: name, driver: d, authority: auth})
	return nil
}

func (s *Store) remove(set *[]registration, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range *set {
		if r.name == name {
			*set = append((*set)[:i:i], (*set)[i+1:]...)
			return true
		}
	}
	return false
}

// route returns the driver authoritative for op in set.
func (s *Store) route(set []registration, op driver.Authority, opName string) (registration, error) {
	for _, r := range set {
		if r.authority.Has(op) {
			return r, nil
		}
	}
	return registration{}, ir.DriverUnavailable(opName)
}

func (s *Store) snapshot(logSet bool) []registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.drivers
	if logSet {
		set = s.logDrivers
	}
	return append([]registration(nil), set...)
}

// Get reads an object from the get-authoritative driver. A missing object
// is (nil, nil).
func (s *Store) Get(ctx context.Context, typ, id string, opts driver.Options) (ir.Object, error) {
	r, err := s.route(s.snapshot(false), driver.AuthGet, "get")
	if err != nil {
		return nil, err
	}
	obj, err := r.driver.Get(ctx, typ, id, opts)
	if err != nil {
		return nil, backendError(r.name, err)
	}
	return obj, nil
}

// Query runs query on the query-authoritative driver.
func (s *Store) Query(ctx context.Context, typ string, query any, opts driver.Options) ([]ir.Object, error) {
	r, err := s.route(s.snapshot(false), driver.AuthQuery, "query")
	if err != nil {
		return nil, err
	}
	objs, err := r.driver.Query(ctx, typ, query, opts)
	if err != nil {
		return nil, backendError(r.name, err)
	}
	if objs == nil {
		objs = []ir.Object{}
	}
	return objs, nil
}

// Search runs a free-text search on the search-authoritative driver.
func (s *Store) Search(ctx context.Context, typ, text string, opts driver.Options) ([]ir.Object, error) {
	r, err := s.route(s.snapshot(false), driver.AuthSearch, "search")
	if err != nil {
		return nil, err
	}
	objs, err := r.driver.Search(ctx, typ, text, opts)
	if err != nil {
		return nil, backendError(r.name, err)
	}
	if objs == nil {
		objs = []ir.Object{}
	}
	return objs, nil
}

// Close closes every registered driver that implements io.Closer. A driver
// registered in both sets is closed once.
func (s *Store) Close() error {
	s.mu.RLock()
	all := append(append([]registration(nil), s.drivers...), s.logDrivers...)
	s.mu.RUnlock()

	var err error
	var closed []io.Closer
	for _, r := range all {
		c, ok := r.driver.(io.Closer)
		if !ok || containsCloser(closed, c) {
			continue
		}
		closed = append(closed, c)
		if cerr := c.Close(); cerr != nil {
			err = multierr.Append(err, backendError(r.name, cerr))
		}
	}
	return err
}

func containsCloser(list []io.Closer, c io.Closer) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}

// backendError keeps typed driver errors and wraps everything else as a
// BackendFailure naming the driver.
func backendError(name string, err error) error {
	if ir.KindOf(err) != "" {
		return err
	}
	return ir.BackendFailure(name, err)
}
