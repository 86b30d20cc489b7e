package identity

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/coalesce-dev/coalesce/internal/metrics"
	"github.com/coalesce-dev/coalesce/internal/storage"
	"github.com/coalesce-dev/coalesce/pkg/types"
)

const defaultMaxTxAttempts = 3

// identifyTimeout bounds one collapsed identify execution. The execution runs
// detached from any single caller's context, so it needs its own deadline.
const identifyTimeout = 30 * time.Second

// Options tunes the service. The zero value gets sensible defaults.
type Options struct {
	// MaxTxAttempts caps how many times an identify transaction is re-run
	// after a serialization conflict before the error surfaces.
	// Default: 3.
	MaxTxAttempts int

	// Breaker configures the storage circuit breaker.
	Breaker BreakerConfig
}

// Service runs the identify pipeline. Each request executes
// match → resolve → arbitrate → write as one transaction against the
// injected store; concurrent requests are safe because conflicting
// transactions roll back and re-run.
type Service struct {
	store       storage.Store
	metrics     *metrics.Metrics
	breaker     *storageBreaker
	flight      singleflight.Group
	maxAttempts int
}

// New creates an identify service over the given store. Metrics must be
// non-nil; pass a Metrics built on a private registry in tests.
func New(store storage.Store, m *metrics.Metrics, opts Options) *Service {
	if opts.MaxTxAttempts <= 0 {
		opts.MaxTxAttempts = defaultMaxTxAttempts
	}
	return &Service{
		store:       store,
		metrics:     m,
		breaker:     newStorageBreaker(opts.Breaker),
		maxAttempts: opts.MaxTxAttempts,
	}
}

// Identify consolidates the submitted identifiers into their identity
// cluster and returns the aggregate view, creating or merging records as
// needed.
//
// Byte-identical concurrent requests are collapsed into one execution via
// singleflight: they would otherwise serialize against each other and burn
// conflict retries to produce the same answer. Distinct identifier pairs
// never share a flight, so unrelated requests do not contend here.
func (s *Service) Identify(ctx context.Context, req Request) (Aggregate, error) {
	if req.Email == nil && req.PhoneNumber == nil {
		s.metrics.RecordOutcome("validation_error")
		return Aggregate{}, ErrValidation
	}

	start := time.Now()
	v, err, _ := s.flight.Do(req.flightKey(), func() (interface{}, error) {
		// The execution is shared by every collapsed caller, so it must not
		// be cancelled by whichever caller happened to start it. It detaches
		// from the caller's context and carries its own deadline.
		execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), identifyTimeout)
		defer cancel()
		return s.breaker.execute(func() (Aggregate, error) {
			return s.identifyWithRetry(execCtx, req)
		})
	})
	s.metrics.IdentifyDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			s.metrics.BreakerRejections.Inc()
		}
		s.metrics.RecordOutcome("error")
		return Aggregate{}, err
	}

	s.metrics.RecordOutcome("ok")
	return v.(Aggregate), nil
}

// BreakerState reports the storage circuit breaker state for diagnostics.
func (s *Service) BreakerState() string {
	return s.breaker.state()
}

// identifyWithRetry re-runs the whole transaction on serialization conflict,
// bounded by maxAttempts. The retry wraps the complete unit of work: nothing
// from a rolled-back attempt leaks into the next one.
func (s *Service) identifyWithRetry(ctx context.Context, req Request) (Aggregate, error) {
	var (
		agg Aggregate
		err error
	)
	for attempt := 1; ; attempt++ {
		agg, err = s.identifyOnce(ctx, req)
		if err == nil || !errors.Is(err, storage.ErrTxConflict) || attempt >= s.maxAttempts {
			return agg, err
		}
		s.metrics.TxRetries.Inc()
	}
}

// identifyOnce executes the full pipeline inside one transaction.
func (s *Service) identifyOnce(ctx context.Context, req Request) (Aggregate, error) {
	var (
		agg          Aggregate
		newPrimary   bool
		newSecondary bool
		merged       bool
	)

	err := s.store.RunInTx(ctx, func(store storage.ContactStore) error {
		matched, err := store.FindByEmailOrPhone(ctx, req.Email, req.PhoneNumber)
		if err != nil {
			return err
		}

		// No match at all: the request is a previously unknown identity.
		if len(matched) == 0 {
			created, err := store.Insert(ctx, req.Email, req.PhoneNumber, nil, types.LinkPrecedencePrimary)
			if err != nil {
				return err
			}
			newPrimary = true
			agg, err = buildAggregate([]*types.Contact{created})
			return err
		}

		cluster, err := resolveCluster(ctx, store, matched)
		if err != nil {
			return err
		}

		primary, didMerge, err := arbitrate(ctx, store, cluster)
		if err != nil {
			return err
		}
		merged = didMerge

		inserted, err := applyNovelty(ctx, store, primary.ID, req)
		if err != nil {
			return err
		}
		newSecondary = inserted

		final, err := store.GetClusterByPrimaryID(ctx, primary.ID)
		if err != nil {
			return err
		}
		agg, err = buildAggregate(final)
		return err
	})
	if err != nil {
		return Aggregate{}, err
	}

	// Counters move only after the transaction committed.
	if newPrimary {
		s.metrics.PrimariesCreated.Inc()
	}
	if newSecondary {
		s.metrics.SecondariesCreated.Inc()
	}
	if merged {
		s.metrics.ClusterMerges.Inc()
	}
	return agg, nil
}
