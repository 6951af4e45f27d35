package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/brettbedarf/webdrive"
	"github.com/prometheus/client_golang/prometheus"
)

// storeMetrics holds the vectors shared by every [MetricsStore] registered
// on one registry.
type storeMetrics struct {
	ops      *prometheus.CounterVec
	errs     *prometheus.CounterVec
	ioBytes  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newStoreMetrics(reg prometheus.Registerer) *storeMetrics {
	m := &storeMetrics{}
	m.ops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webdrive",
			Subsystem: "store",
			Name:      "operations",
			Help:      "Number of object store operations",
		},
		[]string{"operation"},
	)
	m.errs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webdrive",
			Subsystem: "store",
			Name:      "errors",
			Help:      "Number of object store errors",
		},
		[]string{"operation", "error_type"},
	)
	m.ioBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webdrive",
			Subsystem: "store",
			Name:      "io_bytes",
			Help:      "Object store traffic in bytes",
		},
		[]string{"direction"},
	)
	m.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "webdrive",
			Subsystem: "store",
			Name:      "operation_seconds",
			Help:      "Latency of object store operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	reg.MustRegister(m.ops, m.errs, m.ioBytes, m.duration)
	return m
}

// MetricsStore decorates an ObjectStore with prometheus counters
type MetricsStore struct {
	next webdrive.ObjectStore
	m    *storeMetrics
}

// NewMetricsStore registers the store metrics on reg and wraps next
func NewMetricsStore(next webdrive.ObjectStore, reg prometheus.Registerer) *MetricsStore {
	return &MetricsStore{next: next, m: newStoreMetrics(reg)}
}

func errorType(err error) string {
	if errors.Is(err, webdrive.ErrObjectNotFound) {
		return "NotFound"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "Canceled"
	}
	if code := apiErrorCode(err); code != "" {
		return code
	}
	return fmt.Sprintf("%T", err)
}

// track counts op and returns the func that records its outcome
func (s *MetricsStore) track(op string) func(err error) {
	s.m.ops.WithLabelValues(op).Inc()
	start := time.Now()
	return func(err error) {
		s.m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		// a missing key is an answer, not a failure, for existence checks
		if err != nil && !(op == "head" && errors.Is(err, webdrive.ErrObjectNotFound)) {
			s.m.errs.WithLabelValues(op, errorType(err)).Inc()
		}
	}
}

type countingReader struct {
	io.Reader
	c prometheus.Counter
}

func (r countingReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	r.c.Add(float64(n))
	return n, err
}

type countingReadCloser struct {
	countingReader
	io.Closer
}

func (s *MetricsStore) countIn(rc io.ReadCloser) io.ReadCloser {
	return countingReadCloser{countingReader{rc, s.m.ioBytes.WithLabelValues("in")}, rc}
}

func (s *MetricsStore) EnsureBucket(ctx context.Context, bucket string) (err error) {
	done := s.track("ensure_bucket")
	defer func() { done(err) }()
	return s.next.EnsureBucket(ctx, bucket)
}

func (s *MetricsStore) Exists(ctx context.Context, bucket, key string) (ok bool, err error) {
	done := s.track("head")
	defer func() { done(err) }()
	return s.next.Exists(ctx, bucket, key)
}

func (s *MetricsStore) Stat(ctx context.Context, bucket, key string) (info webdrive.ObjectInfo, err error) {
	done := s.track("head")
	defer func() { done(err) }()
	return s.next.Stat(ctx, bucket, key)
}

func (s *MetricsStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, webdrive.ObjectInfo, error) {
	done := s.track("get")
	rc, info, err := s.next.Get(ctx, bucket, key)
	done(err)
	if err != nil {
		return nil, info, err
	}
	return s.countIn(rc), info, nil
}

func (s *MetricsStore) GetRange(ctx context.Context, bucket, key string, offset, length int64) (io.ReadCloser, error) {
	done := s.track("get")
	rc, err := s.next.GetRange(ctx, bucket, key, offset, length)
	done(err)
	if err != nil {
		return nil, err
	}
	return s.countIn(rc), nil
}

func (s *MetricsStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64) (info webdrive.ObjectInfo, err error) {
	done := s.track("put")
	defer func() { done(err) }()
	return s.next.Put(ctx, bucket, key, countingReader{r, s.m.ioBytes.WithLabelValues("out")}, size)
}

func (s *MetricsStore) Copy(ctx context.Context, bucket, src, dst string) (err error) {
	done := s.track("copy")
	defer func() { done(err) }()
	return s.next.Copy(ctx, bucket, src, dst)
}

func (s *MetricsStore) Delete(ctx context.Context, bucket, key string) (err error) {
	done := s.track("delete")
	defer func() { done(err) }()
	return s.next.Delete(ctx, bucket, key)
}

// DeleteMany also counts each per-key failure as a "delete" error
func (s *MetricsStore) DeleteMany(ctx context.Context, bucket string, keys []string) (results []webdrive.DeleteResult, err error) {
	done := s.track("delete_many")
	defer func() { done(err) }()
	results, err = s.next.DeleteMany(ctx, bucket, keys)
	for _, r := range results {
		if r.Err != nil {
			s.m.errs.WithLabelValues("delete", errorType(r.Err)).Inc()
		}
	}
	return results, err
}

// List counts one operation per listing, not per page
func (s *MetricsStore) List(ctx context.Context, bucket, prefix string, recursive bool) iter.Seq2[webdrive.ObjectInfo, error] {
	return func(yield func(webdrive.ObjectInfo, error) bool) {
		done := s.track("list")
		var failed error
		defer func() { done(failed) }()
		for info, err := range s.next.List(ctx, bucket, prefix, recursive) {
			if err != nil {
				failed = err
			}
			if !yield(info, err) {
				return
			}
		}
	}
}

var _ webdrive.ObjectStore = (*MetricsStore)(nil)
