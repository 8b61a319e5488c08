package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/okian/chargeview/internal/domain/model"
	"github.com/okian/chargeview/internal/domain/types"
	"github.com/okian/chargeview/pkg/logger"
	"github.com/okian/chargeview/pkg/metrics"
)

// Fetch outcomes recorded in metrics.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeStatus  = "status"
	OutcomeDecode  = "decode"
	OutcomeTimeout = "timeout"
	OutcomePanic   = "panic"
)

// Default endpoint paths.
const (
	PathLatest   = "/api/latest"
	PathHistory  = "/api/history"
	PathClusters = "/api/clusters"
)

// Batch holds the independent outcome of each endpoint in one cycle.
type Batch struct {
	Latest   types.Result[model.RawRecord]
	History  types.Result[[]model.RawRecord]
	Clusters types.Result[[]model.RawRecord]
}

// Failed lists the endpoints whose fetch failed, in fetch order.
func (b Batch) Failed() []string {
	var out []string
	if !b.Latest.Succeeded() {
		out = append(out, model.EndpointLatest)
	}
	if !b.History.Succeeded() {
		out = append(out, model.EndpointHistory)
	}
	if !b.Clusters.Succeeded() {
		out = append(out, model.EndpointClusters)
	}
	return out
}

// Panicked joins the errors of fetch tasks that panicked, or returns nil.
func (b Batch) Panicked() error {
	var errs []error
	for _, err := range []error{b.Latest.Err, b.History.Err, b.Clusters.Err} {
		if errors.Is(err, ErrPanic) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AllFailed reports whether no endpoint succeeded.
func (b Batch) AllFailed() bool {
	return len(b.Failed()) == len(model.Endpoints)
}

// Fetcher pulls the three backend datasets.
type Fetcher struct {
	client  *Client
	timeout time.Duration
	logger  logger.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithTimeout bounds each individual endpoint fetch.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithLogger sets the fetcher logger.
func WithLogger(l logger.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher creates a Fetcher on top of client.
func NewFetcher(client *Client, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:  client,
		timeout: 10 * time.Second,
		logger:  logger.Get().Named("backend"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll issues the three fetches concurrently and waits for all of them.
// A failure of one endpoint never affects the others; a panic in a fetch
// task becomes that endpoint's failure.
func (f *Fetcher) FetchAll(ctx context.Context) Batch {
	var (
		b  Batch
		wg sync.WaitGroup
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		defer recoverFetch(ctx, f, model.EndpointLatest, &b.Latest)
		b.Latest = f.FetchLatest(ctx)
	}()
	go func() {
		defer wg.Done()
		defer recoverFetch(ctx, f, model.EndpointHistory, &b.History)
		b.History = f.FetchHistory(ctx)
	}()
	go func() {
		defer wg.Done()
		defer recoverFetch(ctx, f, model.EndpointClusters, &b.Clusters)
		b.Clusters = f.FetchClusters(ctx)
	}()
	wg.Wait()
	return b
}

// recoverFetch must be deferred directly by a fetch task.
func recoverFetch[T any](ctx context.Context, f *Fetcher, endpoint string, dst *types.Result[T]) {
	p := recover()
	if p == nil {
		return
	}
	metrics.RecordFetch(endpoint, OutcomePanic, 0)
	metrics.RecordErrorByComponent("backend", OutcomePanic)
	f.logger.Error(ctx, "fetch panicked",
		logger.String("endpoint", endpoint),
		logger.Any("panic", p),
	)
	*dst = types.Fail[T](fmt.Errorf("%s: %w: %v", endpoint, ErrPanic, p))
}

// FetchLatest fetches the most recent record. An empty body, null or {}
// is a successful fetch with no record.
func (f *Fetcher) FetchLatest(ctx context.Context) types.Result[model.RawRecord] {
	body, err := f.fetch(ctx, model.EndpointLatest, PathLatest)
	if err != nil {
		return types.Fail[model.RawRecord](err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return types.Ok[model.RawRecord](nil)
	}
	var rec model.RawRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return types.Fail[model.RawRecord](f.decodeFailed(ctx, model.EndpointLatest, err))
	}
	if len(rec) == 0 {
		rec = nil
	}
	return types.Ok(rec)
}

// FetchHistory fetches the telemetry history.
func (f *Fetcher) FetchHistory(ctx context.Context) types.Result[[]model.RawRecord] {
	return f.fetchList(ctx, model.EndpointHistory, PathHistory)
}

// FetchClusters fetches the cluster assignments.
func (f *Fetcher) FetchClusters(ctx context.Context) types.Result[[]model.RawRecord] {
	return f.fetchList(ctx, model.EndpointClusters, PathClusters)
}

func (f *Fetcher) fetchList(ctx context.Context, endpoint, path string) types.Result[[]model.RawRecord] {
	body, err := f.fetch(ctx, endpoint, path)
	if err != nil {
		return types.Fail[[]model.RawRecord](err)
	}
	list := []model.RawRecord{}
	if len(bytes.TrimSpace(body)) == 0 {
		return types.Ok(list)
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return types.Fail[[]model.RawRecord](f.decodeFailed(ctx, endpoint, err))
	}
	if list == nil {
		list = []model.RawRecord{}
	}
	return types.Ok(list)
}

// fetch performs the request and records its outcome. Decode failures are
// recorded by the caller.
func (f *Fetcher) fetch(ctx context.Context, endpoint, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	status, body, err := f.client.Get(ctx, path)
	latency := float64(time.Since(start).Milliseconds())

	switch {
	case err != nil:
		outcome := OutcomeError
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = OutcomeTimeout
		}
		metrics.RecordFetch(endpoint, outcome, latency)
		f.logger.Warn(ctx, "fetch failed",
			logger.String("endpoint", endpoint),
			logger.Error(err),
		)
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	case status < http.StatusOK || status >= http.StatusMultipleChoices:
		metrics.RecordFetch(endpoint, OutcomeStatus, latency)
		f.logger.Warn(ctx, "fetch returned non-success status",
			logger.String("endpoint", endpoint),
			logger.Int("status", status),
		)
		return nil, fmt.Errorf("%s: %w: %d", endpoint, ErrUnexpectedStatus, status)
	}

	metrics.RecordFetch(endpoint, OutcomeOK, latency)
	return body, nil
}

func (f *Fetcher) decodeFailed(ctx context.Context, endpoint string, err error) error {
	metrics.RecordErrorByComponent("backend", OutcomeDecode)
	f.logger.Warn(ctx, "payload could not be decoded",
		logger.String("endpoint", endpoint),
		logger.Error(err),
	)
	return fmt.Errorf("%s: %w: %w", endpoint, ErrDecode, err)
}
