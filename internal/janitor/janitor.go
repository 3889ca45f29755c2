package janitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/ent0n29/personachat/internal/observability"
	"github.com/ent0n29/personachat/internal/ratelimit"
	"github.com/ent0n29/personachat/internal/session"
)

type Config struct {
	// Schedule is a standard five-field cron expression or a descriptor
	// such as "@every 5m". Empty disables the janitor.
	Schedule         string
	SessionIdleTTL   time.Duration
	RateLimitIdleTTL time.Duration
}

// Result counts the entries removed by one sweep.
type Result struct {
	Sessions int
	Clients  int
}

// Janitor drops idle sessions and rate-limit entries on a cron schedule.
type Janitor struct {
	cfg      Config
	sessions *session.Store
	limiter  *ratelimit.Limiter
	metrics  *observability.Metrics
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func New(cfg Config, sessions *session.Store, limiter *ratelimit.Limiter, metrics *observability.Metrics, logger zerolog.Logger) *Janitor {
	return &Janitor{
		cfg:      cfg,
		sessions: sessions,
		limiter:  limiter,
		metrics:  metrics,
		logger:   logger.With().Str("component", "janitor").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
		cron:     cron.New(),
	}
}

// Start registers the sweep and starts the scheduler. It is a no-op when
// no schedule is configured.
func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cfg.Schedule == "" {
		j.logger.Info().Msg("janitor schedule not configured, idle entries are kept until exit")
		return nil
	}
	if j.running {
		return nil
	}
	if _, err := j.cron.AddFunc(j.cfg.Schedule, func() { j.Sweep() }); err != nil {
		return fmt.Errorf("schedule janitor %q: %w", j.cfg.Schedule, err)
	}
	j.cron.Start()
	j.running = true

	j.logger.Info().
		Str("schedule", j.cfg.Schedule).
		Dur("session_idle_ttl", j.cfg.SessionIdleTTL).
		Dur("rate_limit_idle_ttl", j.cfg.RateLimitIdleTTL).
		Msg("janitor started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return
	}
	<-j.cron.Stop().Done()
	j.running = false
	j.logger.Info().Msg("janitor stopped")
}

// Sweep removes idle entries from both tables once.
func (j *Janitor) Sweep() Result {
	now := j.now()
	res := Result{
		Sessions: j.sessions.ExpireIdle(now, j.cfg.SessionIdleTTL),
		Clients:  j.limiter.ExpireIdle(now, j.cfg.RateLimitIdleTTL),
	}

	j.metrics.ObserveEvictions("sessions", res.Sessions)
	j.metrics.ObserveEvictions("rate_limit", res.Clients)
	j.metrics.SetTableSizes(j.sessions.Len(), j.limiter.Len())

	ev := j.logger.Debug()
	if res.Sessions > 0 || res.Clients > 0 {
		ev = j.logger.Info()
	}
	ev.Int("sessions", res.Sessions).Int("clients", res.Clients).Msg("janitor sweep completed")
	return res
}
