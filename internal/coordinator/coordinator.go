package coordinator

import (
	"context"
	"errors"
	"time"

	"stats-backend/internal/constants"
	"stats-backend/internal/domain"
	"stats-backend/internal/service"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// ErrStopped is returned when a request is submitted after the coordinator
// shut down.
var ErrStopped = errors.New("coordinator: stopped")

type request struct {
	operation string
	run       func(ctx context.Context)
}

// Coordinator is the single owner of all mutating statistics operations.
// Requests are serialized into one bounded queue and handled strictly one
// at a time, so the ensure-then-increment sequence for a key/namespace can
// never interleave with another operation from this subsystem. A full
// queue blocks producers; that is the only backpressure applied to bundle
// uploads.
type Coordinator struct {
	svc      *service.StatsService
	logger   zerolog.Logger
	requests chan request
	done     chan struct{}
}

func New(svc *service.StatsService, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		svc:      svc,
		logger:   logger,
		requests: make(chan request, constants.RequestQueueSize),
		done:     make(chan struct{}),
	}
}

// Run processes requests in arrival order until ctx is cancelled. A stuck
// store call stalls the whole queue; there is no per-request preemption.
func (c *Coordinator) Run(ctx context.Context) {
	defer close(c.done)
	c.logger.Info().Msg("statistics coordinator started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("statistics coordinator stopped")
			return
		case req := <-c.requests:
			c.handle(ctx, req)
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, req request) {
	id, err := gonanoid.New()
	if err != nil {
		id = "unknown"
	}
	logger := c.logger.With().Str("request_id", id).Str("operation", req.operation).Logger()

	start := time.Now()
	logger.Debug().Msg("request started")
	req.run(logger.WithContext(ctx))
	logger.Debug().Dur("duration", time.Since(start)).Msg("request completed")
}

func (c *Coordinator) enqueue(ctx context.Context, req request) error {
	select {
	case c.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

// GetProfile looks up a player profile; absence is returned as nil.
func (c *Coordinator) GetProfile(ctx context.Context, id uuid.UUID) (*domain.PlayerProfile, error) {
	type result struct {
		profile *domain.PlayerProfile
		err     error
	}
	out := make(chan result, 1)
	req := request{operation: "get_profile", run: func(ctx context.Context) {
		profile, err := c.svc.GetProfile(ctx, id)
		out <- result{profile, err}
	}}
	if err := c.enqueue(ctx, req); err != nil {
		return nil, err
	}
	select {
	case res := <-out:
		return res.profile, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrStopped
	}
}

// UpdateProfile upserts a player profile with the supplied display name.
func (c *Coordinator) UpdateProfile(ctx context.Context, id uuid.UUID, username string) (*domain.PlayerProfile, error) {
	type result struct {
		profile *domain.PlayerProfile
		err     error
	}
	out := make(chan result, 1)
	req := request{operation: "update_profile", run: func(ctx context.Context) {
		profile, err := c.svc.UpdateProfile(ctx, id, username)
		out <- result{profile, err}
	}}
	if err := c.enqueue(ctx, req); err != nil {
		return nil, err
	}
	select {
	case res := <-out:
		return res.profile, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrStopped
	}
}

// GetStats returns a player's statistics, optionally filtered to one
// namespace. An unknown player yields nil.
func (c *Coordinator) GetStats(ctx context.Context, id uuid.UUID, namespace *string) (domain.PlayerStatsResponse, error) {
	type result struct {
		stats domain.PlayerStatsResponse
		err   error
	}
	out := make(chan result, 1)
	req := request{operation: "get_stats", run: func(ctx context.Context) {
		stats, err := c.svc.GetStats(ctx, id, namespace)
		out <- result{stats, err}
	}}
	if err := c.enqueue(ctx, req); err != nil {
		return nil, err
	}
	select {
	case res := <-out:
		return res.stats, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrStopped
	}
}

// GetGlobalStats returns the network-wide counters, optionally filtered to
// one namespace.
func (c *Coordinator) GetGlobalStats(ctx context.Context, namespace *string) (domain.PlayerStatsResponse, error) {
	type result struct {
		stats domain.PlayerStatsResponse
		err   error
	}
	out := make(chan result, 1)
	req := request{operation: "get_global_stats", run: func(ctx context.Context) {
		stats, err := c.svc.GetGlobalStats(ctx, namespace)
		out <- result{stats, err}
	}}
	if err := c.enqueue(ctx, req); err != nil {
		return nil, err
	}
	select {
	case res := <-out:
		return res.stats, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrStopped
	}
}

// UploadBundle queues a bundle for ingestion and returns as soon as it is
// accepted. Ingestion outcomes are logged, never reported back.
func (c *Coordinator) UploadBundle(ctx context.Context, bundle domain.StatBundle) error {
	req := request{operation: "upload_bundle", run: func(ctx context.Context) {
		c.svc.UploadBundle(ctx, bundle)
	}}
	return c.enqueue(ctx, req)
}
