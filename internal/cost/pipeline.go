package cost

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/finopshq/mimir-cost-datasource/internal/billing"
	"github.com/finopshq/mimir-cost-datasource/internal/mimir"
)

// rangeStep is the resolution of the monthly range query: one point per
// day, so every sample maps to one billed date.
const rangeStep = "1d"

// ErrStreamClosed is returned by Stream.Next once the terminal empty
// batch has been delivered. It is the unambiguous end-of-stream signal,
// distinct from a legitimately empty batch.
var ErrStreamClosed = errors.New("cost stream closed")

// MetricsSource is the metrics-store collaborator the pipeline fetches
// from. Both calls carry their own timeout; a timeout surfaces as an
// error and degrades the run.
type MetricsSource interface {
	RangeQuery(ctx context.Context, query string, startUnix, endUnix int64, step string) ([]mimir.TimeSeries, error)
	InstantQuery(ctx context.Context, query string) (mimir.ClusterInfo, error)
}

// pipeline run states, in order of progress.
type runState int

const (
	stateInit runState = iota
	stateQueryBuilt
	stateRangeFetched
	stateClusterInfoFetched
	stateStreaming
	stateDone
	stateDegraded
)

// Pipeline executes one synchronization task: build the month's query,
// fetch the matrix and cluster metadata, then stream normalized record
// batches. Each Run is stateless with respect to every other Run.
type Pipeline struct {
	metrics MetricsSource
	logger  zerolog.Logger
}

// NewPipeline wires a pipeline to its metrics source.
func NewPipeline(metrics MetricsSource, logger zerolog.Logger) *Pipeline {
	return &Pipeline{metrics: metrics, logger: logger}
}

// Stream yields record batches page by page. The final batch is always
// empty, after which Next returns ErrStreamClosed. Record validation
// failures surface through Next and close the stream.
type Stream struct {
	pages [][]mimir.TimeSeries
	norm  *Normalizer
	state runState
	idx   int
}

// Next returns the next batch. The caller drives pagination, so only
// one page of records is materialized at a time.
func (s *Stream) Next() (Batch, error) {
	if s.state == stateDone {
		return Batch{}, ErrStreamClosed
	}
	page := s.pages[s.idx]
	s.idx++
	if s.idx == len(s.pages) {
		s.state = stateDone
	}

	if len(page) == 0 || s.norm == nil {
		return EmptyBatch(), nil
	}

	records, err := s.norm.NormalizePage(page)
	if err != nil {
		s.state = stateDone
		return Batch{}, err
	}
	return Batch{Results: records}, nil
}

// Run executes the task for one account and month. Fetch failures and
// empty fetches degrade to a stream holding exactly one empty batch;
// callers cannot tell a degraded run from a month with no cost except
// through the logs.
func (p *Pipeline) Run(ctx context.Context, month billing.Month, accountRef string) *Stream {
	logger := p.logger.With().
		Str("operation", "Cost.get_data").
		Str("billing_month", month.String()).
		Str("service_account_id", accountRef).
		Logger()

	query := MonthlyAllocationQuery(month)
	logger.Debug().Int("window_days", month.Days()).Msg("allocation query built")

	series, err := p.metrics.RangeQuery(ctx, query, month.First().Unix(), month.Last().Unix(), rangeStep)
	if err != nil {
		logger.Warn().Err(err).Msg("range query failed, degrading to empty result")
		return degradedStream()
	}
	if len(series) == 0 {
		logger.Info().Msg("range query returned no series, degrading to empty result")
		return degradedStream()
	}

	info, err := p.metrics.InstantQuery(ctx, ClusterInfoQuery)
	if err != nil {
		logger.Warn().Err(err).Msg("cluster info query failed, degrading to empty result")
		return degradedStream()
	}

	logger.Debug().Int("series", len(series)).Msg("streaming cost records")
	return &Stream{
		pages: Pages(series),
		norm:  NewNormalizer(info, accountRef),
		state: stateStreaming,
	}
}

// degradedStream yields one empty batch and closes, the same shape a
// legitimately empty month produces.
func degradedStream() *Stream {
	return &Stream{
		pages: [][]mimir.TimeSeries{{}},
		state: stateDegraded,
	}
}
