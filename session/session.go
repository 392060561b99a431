// Package session serves decoded test data of one loaded STDF file.
//
// A Session owns the byte stream and the index of a file. PrepareData decodes tests into a
// per-session cache; GetData slices cached tests by head, site or DUT and computes their
// statistics. A Manager holds the current session and replaces it atomically when another file
// is loaded.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-stdf/dynlimit"
	"github.com/arloliu/go-stdf/index"
	"github.com/arloliu/go-stdf/limit"
	"github.com/arloliu/go-stdf/logger"
	"github.com/arloliu/go-stdf/selection"
	"github.com/arloliu/go-stdf/stdf"
	"github.com/arloliu/go-stdf/stream"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("github.com/arloliu/go-stdf/session")

// TestTuple addresses the data of a test. PMR selects one pin of an MPR test and is ignored for
// other record kinds.
type TestTuple struct {
	Number uint32
	PMR    int
	Name   string
}

// ID returns the id of the test.
func (t TestTuple) ID() stdf.TestID {
	return stdf.TestID{Number: t.Number, Name: t.Name}
}

// Selection selects DUTs by heads and sites, or by DUT indices when DUTs is not empty.
// selection.AllSites in Sites selects every site of the selected heads.
type Selection struct {
	Heads []uint8
	Sites []int
	DUTs  []int
}

type entry struct {
	data   *stdf.TestData
	info   *index.OffsetRecord
	limits limit.Limits
	pins   index.PinNames
}

// Session serves the test data of one file. It is safe for concurrent use.
type Session struct {
	id      uuid.UUID
	cfg     *Config
	logger  logger.Logger
	metrics *Metrics

	// mu guards the stream position; one decode runs at a time.
	mu     sync.Mutex
	stream stream.Stream
	order  stdf.Endianness

	idx   *index.MemIndex
	src   index.Source
	table *selection.DutTable
	dyn   *dynlimit.Engine

	cache      *xsync.MapOf[stdf.TestID, *entry]
	failCounts *xsync.MapOf[stdf.TestID, int]
	group      singleflight.Group

	selMu    sync.Mutex
	selected []stdf.TestID

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

// Open opens path, indexes it and returns a new session.
//
// Open failures of the file are *stdf.IOError; an unusable container or a stream that does not
// start with a FAR is a *stdf.FormatError.
func Open(ctx context.Context, path string, cfg *Config) (*Session, error) {
	return open(ctx, path, cfg, &Metrics{})
}

func open(ctx context.Context, path string, cfg *Config, m *Metrics) (*Session, error) {
	id := uuid.New()
	l := cfg.Logger().With("session", id.String(), "file", path)

	ctx, span := tracer.Start(ctx, "session.Open", trace.WithAttributes(
		attribute.String("stdf.file", path),
		attribute.String("stdf.session", id.String()),
	))
	defer span.End()

	st, err := stream.Open(ctx, path, cfg.StreamOptions()...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open stream")
		return nil, err
	}

	idx, err := loadIndex(ctx, st, cfg, l)
	if err != nil {
		_ = st.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, "index")
		return nil, err
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         id,
		cfg:        cfg,
		logger:     l,
		metrics:    m,
		stream:     st,
		order:      idx.Endianness(),
		idx:        idx,
		src:        idx,
		table:      idx.DutTable(),
		dyn:        dynlimit.New(idx),
		cache:      xsync.NewMapOf[stdf.TestID, *entry](),
		failCounts: xsync.NewMapOf[stdf.TestID, int](),
		ctx:        sctx,
		cancel:     cancel,
	}
	for tid, n := range s.src.TestFailCount() {
		s.failCounts.Store(tid, n)
	}

	span.SetAttributes(attribute.Int("stdf.duts", s.table.Len()), attribute.Int("stdf.tests", len(idx.Tests())))
	l.Info("file loaded", "kind", st.Kind().String(), "order", s.order.String(), "duts", s.table.Len(), "tests", len(idx.Tests()))

	return s, nil
}

func loadIndex(ctx context.Context, st stream.Stream, cfg *Config, l logger.Logger) (*index.MemIndex, error) {
	order := cfg.Endianness()
	progress := cfg.progressFunc()

	var (
		store *index.Store
		key   string
	)
	if dir := cfg.IndexCacheDir(); dir != "" {
		var err error
		if key, err = index.Fingerprint(st.Path()); err != nil {
			l.Warn("index cache disabled, cannot fingerprint file", "error", err)
		} else if store, err = index.OpenStore(dir, l); err != nil {
			l.Warn("index cache unavailable", "dir", dir, "error", err)
		}
	}
	if store != nil {
		defer store.Close()
		if idx, ok := store.Load(key); ok && (order == stdf.AutoEndian || order == idx.Endianness()) {
			l.Debug("index loaded from cache", "key", key)
			if progress != nil {
				progress(100)
			}
			return idx, nil
		}
	}

	if _, err := st.Seek(0, io.SeekStart); err != nil {
		return nil, stdf.NewIOError("seek", err)
	}
	idx, err := index.Build(ctx, st,
		index.WithEndianness(order),
		index.WithSize(st.Size()),
		index.WithProgress(progress),
		index.WithLogger(l),
	)
	if err != nil {
		return nil, err
	}

	if store != nil {
		if err := store.Save(key, idx); err != nil {
			l.Warn("cannot save index to cache", "key", key, "error", err)
		}
	}

	return idx, nil
}

// ID returns the unique id of the session.
func (s *Session) ID() string { return s.id.String() }

// Path returns the path of the loaded file.
func (s *Session) Path() string { return s.stream.Path() }

// Index returns the index of the loaded file.
func (s *Session) Index() *index.MemIndex { return s.idx }

// DutTable returns the DUT axis of the loaded file.
func (s *Session) DutTable() *selection.DutTable { return s.table }

// Metrics returns the metrics shared by the session.
func (s *Session) Metrics() *Metrics { return s.metrics }

// Config returns the session configuration.
func (s *Session) Config() *Config { return s.cfg }

// Close abandons in-flight decodes, drops cached data and closes the stream.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.addCachedTests(-int64(s.cache.Size()))
	s.cache.Clear()
	s.logger.Debug("session closed")

	return s.stream.Close()
}

// PrepareData decodes the given tests into the cache.
//
// Unless keep is set, cached tests of the previous PrepareData call that are not in ids are
// evicted first. A test that cannot be read is reported by the status callback and skipped;
// the returned error joins the errors of all skipped tests. Cancellation of ctx aborts at once.
func (s *Session) PrepareData(ctx context.Context, ids []stdf.TestID, keep bool) error {
	ctx, span := tracer.Start(ctx, "session.PrepareData", trace.WithAttributes(
		attribute.Int("stdf.tests", len(ids)),
		attribute.Bool("stdf.keep", keep),
	))
	defer span.End()

	if s.closed.Load() {
		return ErrSessionClosed
	}

	if !keep {
		s.selMu.Lock()
		for _, prev := range s.selected {
			if !slices.Contains(ids, prev) {
				if _, ok := s.cache.LoadAndDelete(prev); ok {
					s.metrics.addCachedTests(-1)
				}
			}
		}
		s.selected = slices.Clone(ids)
		s.selMu.Unlock()
	}

	var errs []error
	for _, id := range ids {
		if _, err := s.load(ctx, id); err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrSessionClosed) {
				span.RecordError(err)
				return err
			}
			s.reportStatus(fmt.Sprintf("Cannot read test %s: %v", id, err))
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "some tests were skipped")
		return err
	}

	return nil
}

// load returns the cached entry of id, decoding it on a miss. Concurrent misses of the same
// id share one decode. The shared decode only stops when the session is closed, so a caller
// whose ctx is canceled returns at once without failing the other callers.
func (s *Session) load(ctx context.Context, id stdf.TestID) (*entry, error) {
	if e, ok := s.cache.Load(id); ok {
		s.metrics.incCacheHitCount()
		return e, nil
	}
	s.metrics.incCacheMissCount()

	dctx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(fmt.Sprintf("%d\x00%s", id.Number, id.Name), func() (any, error) {
		if e, ok := s.cache.Load(id); ok {
			return e, nil
		}
		e, err := s.decode(dctx, id)
		if err != nil {
			return nil, err
		}
		if _, loaded := s.cache.LoadOrStore(id, e); !loaded {
			s.metrics.addCachedTests(1)
		}

		return e, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*entry), nil
	}
}

func (s *Session) decode(ctx context.Context, id stdf.TestID) (*entry, error) {
	info, err := s.src.TestInfo(id)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "session.decode", trace.WithAttributes(
		attribute.Int64("stdf.test.number", int64(id.Number)),
		attribute.String("stdf.test.name", id.Name),
		attribute.String("stdf.test.kind", info.Kind.String()),
	))
	defer span.End()

	// abandon the decode when the session is closed
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := context.AfterFunc(s.ctx, func() { cancel(ErrSessionClosed) })
	defer stop()

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	data, err := stdf.DecodeTest(ctx, s.stream, &info.TestLocation, s.order)
	s.mu.Unlock()
	if err != nil {
		if cause := context.Cause(ctx); errors.Is(cause, ErrSessionClosed) {
			err = ErrSessionClosed
		}
		s.metrics.incDecodeErrCount()
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		s.logger.Warn("decode test failed", "test", id.String(), "error", err)
		return nil, err
	}
	s.metrics.incDecodeCount(recordBytes(&info.TestLocation))

	e := &entry{data: data, info: info, limits: info.Resolved()}
	switch data.Kind {
	case stdf.PTR:
		limit.Scale(data.Values, e.limits.Scale)
	case stdf.MPR:
		for _, row := range data.PinValues {
			limit.Scale(row, e.limits.Scale)
		}
		if e.pins, err = s.src.PinNames(id, index.RolePin); err != nil {
			return nil, err
		}
	}

	return e, nil
}

func recordBytes(loc *stdf.TestLocation) uint64 {
	var n uint64
	for i, off := range loc.Offsets {
		if off >= 0 {
			n += uint64(stdf.HeaderSize) + uint64(loc.Lengths[i])
		}
	}

	return n
}

func (s *Session) reportStatus(msg string) {
	s.logger.Debug("status", "message", msg)
	if fn := s.cfg.statusFunc(); fn != nil {
		fn(msg)
	}
}
