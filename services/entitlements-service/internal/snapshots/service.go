package snapshots

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/slotwise/slotwise/services/entitlements-service/internal/metrics"
	"github.com/slotwise/slotwise/services/entitlements-service/internal/model"
	"golang.org/x/sync/singleflight"
)

type Evaluator interface {
	Evaluate(ctx context.Context, userID string) (model.PlanLimits, error)
}

type Cache interface {
	Get(ctx context.Context, userID string) (model.PlanLimits, bool, error)
	Set(ctx context.Context, userID string, limits model.PlanLimits) error
	Delete(ctx context.Context, userID string) error
}

// evaluationTimeout bounds a shared evaluation, which outlives the callers waiting on it.
const evaluationTimeout = 10 * time.Second

// Service serves plan limit snapshots. Concurrent evaluations for one user
// share a single run, and a run that started before the user's last
// invalidation never lands in the cache.
type Service struct {
	eval    Evaluator
	cache   Cache
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	group singleflight.Group

	mu    sync.Mutex
	seq   uint64
	users map[string]*userState
}

// userState lives only while someone is waiting on or running an evaluation
// for the user. gen is drawn from a service-wide sequence, so a recreated
// entry never reuses an older singleflight key.
type userState struct {
	gen     uint64
	waiters int
	running int
}

// New builds the service. cache may be nil, in which case every call evaluates.
func New(eval Evaluator, cache Cache, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		eval:    eval,
		cache:   cache,
		logger:  logger,
		metrics: m,
		timeout: evaluationTimeout,
		users:   map[string]*userState{},
	}
}

// Get returns the cached snapshot when there is one and evaluates otherwise.
func (s *Service) Get(ctx context.Context, userID string) (model.PlanLimits, error) {
	if s.cache != nil {
		limits, ok, err := s.cache.Get(ctx, userID)
		switch {
		case err != nil:
			s.metrics.CacheResult("error")
			s.logger.Warn("snapshot cache read failed", "user_id", userID, "err", err)
		case ok:
			s.metrics.CacheResult("hit")
			return limits, nil
		default:
			s.metrics.CacheResult("miss")
		}
	}
	return s.evaluate(ctx, userID)
}

// Refresh discards whatever is known about the user and evaluates again.
func (s *Service) Refresh(ctx context.Context, userID string) (model.PlanLimits, error) {
	if err := s.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("snapshot invalidate failed", "user_id", userID, "err", err)
	}
	return s.evaluate(ctx, userID)
}

// Invalidate drops the cached snapshot and supersedes any evaluation in flight.
func (s *Service) Invalidate(ctx context.Context, userID string) error {
	s.mu.Lock()
	if st, ok := s.users[userID]; ok {
		s.seq++
		st.gen = s.seq
	}
	s.mu.Unlock()

	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, userID)
}

// Loading reports whether an evaluation for the user is running.
func (s *Service) Loading(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[userID]
	return ok && st.running > 0
}

// join registers a waiter and returns the generation it evaluates under.
func (s *Service) join(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[userID]
	if !ok {
		s.seq++
		st = &userState{gen: s.seq}
		s.users[userID] = st
	}
	st.waiters++
	return st.gen
}

func (s *Service) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.users[userID]; ok {
		return st.gen
	}
	return 0
}

func (s *Service) adjust(userID string, waiters, running int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[userID]
	if !ok {
		return
	}
	st.waiters += waiters
	st.running += running
	if st.waiters <= 0 && st.running <= 0 {
		delete(s.users, userID)
	}
}

func (s *Service) evaluate(ctx context.Context, userID string) (model.PlanLimits, error) {
	gen := s.join(userID)
	defer s.adjust(userID, -1, 0)
	key := userID + "#" + strconv.FormatUint(gen, 10)

	ch := s.group.DoChan(key, func() (interface{}, error) {
		s.adjust(userID, 0, 1)
		defer s.adjust(userID, 0, -1)

		// Detached from the caller that happened to start the run.
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		limits, err := s.eval.Evaluate(runCtx, userID)
		if err != nil {
			return limits, err
		}
		s.store(runCtx, userID, gen, limits)
		return limits, nil
	})

	select {
	case res := <-ch:
		return res.Val.(model.PlanLimits), res.Err
	case <-ctx.Done():
		return model.Restricted(), ctx.Err()
	}
}

func (s *Service) store(ctx context.Context, userID string, gen uint64, limits model.PlanLimits) {
	if s.cache == nil || s.generation(userID) != gen {
		return
	}
	if err := s.cache.Set(ctx, userID, limits); err != nil {
		s.logger.Warn("snapshot cache write failed", "user_id", userID, "err", err)
		return
	}
	// An invalidation may have landed between the check and the write.
	if s.generation(userID) != gen {
		if err := s.cache.Delete(ctx, userID); err != nil {
			s.logger.Warn("snapshot cache delete failed", "user_id", userID, "err", err)
		}
	}
}
