package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rocketscienceinc/tictactoe-relay/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
	"github.com/rocketscienceinc/tictactoe-relay/internal/pkg"
)

const (
	DefaultRetention     = 24 * time.Hour
	DefaultSweepInterval = time.Hour

	intentQueueSize = 256
)

var ErrAlreadyRunning = errors.New("relay loop already started")

type sessionRepo interface {
	CreateOrUpdate(ctx context.Context, session *entity.Session) error
	GetByID(ctx context.Context, id string) (*entity.Session, error)
	DeleteByID(ctx context.Context, id string) error

	List(ctx context.Context) ([]*entity.Session, error)
	Count(ctx context.Context) (int, error)
}

// emitter delivers an event to one connection without waiting for it.
type emitter interface {
	Emit(connID string, event entity.Event)
}

type Options struct {
	// BaseURL prefixes share links: <BaseURL>/play/<gameID>.
	BaseURL       string
	Retention     time.Duration
	SweepInterval time.Duration

	Now   func() time.Time
	NewID func() string
}

// intent is one client request waiting for the loop.
type intent struct {
	name   string
	connID string
	apply  func(ctx context.Context) error
	result chan error
}

// Relay owns every session. All reads and writes happen on the goroutine
// running Run, one intent at a time, so the repository needs no locking.
type Relay struct {
	logger  *slog.Logger
	repo    sessionRepo
	emitter emitter
	opts    Options

	// rooms tracks which connections joined each game.
	rooms map[string]map[string]struct{}

	intents chan *intent
	started atomic.Bool
	running atomic.Bool
	done    chan struct{}
}

func NewRelay(logger *slog.Logger, repo sessionRepo, emitter emitter, opts Options) *Relay {
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = pkg.GenerateGameID
	}

	return &Relay{
		logger:  logger.With("component", "relay"),
		repo:    repo,
		emitter: emitter,
		opts:    opts,
		rooms:   make(map[string]map[string]struct{}),
		intents: make(chan *intent, intentQueueSize),
		done:    make(chan struct{}),
	}
}

// Run processes intents and sweeps until ctx is canceled. It may be called once.
func (that *Relay) Run(ctx context.Context) error {
	if !that.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(that.done)

	log := that.logger.With("method", "Run")

	if err := that.releaseSeats(ctx); err != nil {
		return fmt.Errorf("failed to release stale seats: %w", err)
	}

	ticker := time.NewTicker(that.opts.SweepInterval)
	defer ticker.Stop()

	that.running.Store(true)
	defer that.running.Store(false)

	log.Info("relay started", "retention", that.opts.Retention, "sweepInterval", that.opts.SweepInterval)

	for {
		select {
		case <-ctx.Done():
			log.Info("relay stopped")
			return nil
		case in := <-that.intents:
			in.result <- that.handle(ctx, in)
		case <-ticker.C:
			if _, err := that.sweep(ctx); err != nil {
				log.Error("sweep failed", "error", err)
			}
		}
	}
}

// Running reports whether the loop is accepting intents.
func (that *Relay) Running() bool {
	return that.running.Load()
}

// handle runs one intent to completion and reports its error to the sender.
func (that *Relay) handle(ctx context.Context, in *intent) (err error) {
	log := that.logger.With("intent", in.name, "connID", in.connID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("intent panicked", "panic", r)
			err = fmt.Errorf("%s: panic: %v", in.name, r)
		}

		if err == nil || in.connID == "" {
			return
		}

		log.Warn("intent rejected", "error", err)
		that.emitter.Emit(in.connID, entity.Event{
			Name:    entity.EventError,
			Payload: entity.ErrorPayload{Message: apperror.PublicMessage(err)},
		})
	}()

	return in.apply(ctx)
}

// submit queues an intent and waits for its result. Once queued, an intent
// is applied even if ctx is canceled while waiting.
func (that *Relay) submit(ctx context.Context, name, replyTo string, apply func(ctx context.Context) error) error {
	in := &intent{
		name:   name,
		connID: replyTo,
		apply:  apply,
		result: make(chan error, 1),
	}

	select {
	case that.intents <- in:
	case <-that.done:
		return apperror.ErrRelayStopped
	case <-ctx.Done():
		return fmt.Errorf("%s not submitted: %w", name, ctx.Err())
	}

	select {
	case err := <-in.result:
		return err
	case <-that.done:
		return apperror.ErrRelayStopped
	case <-ctx.Done():
		return fmt.Errorf("%s still pending: %w", name, ctx.Err())
	}
}

// Create opens a session with connID seated as X.
func (that *Relay) Create(ctx context.Context, connID string) error {
	return that.submit(ctx, entity.IntentCreateGame, connID, func(ctx context.Context) error {
		return that.create(ctx, connID)
	})
}

// Join seats connID in gameID, or re-sends the state if it is already seated.
func (that *Relay) Join(ctx context.Context, connID, gameID string) error {
	return that.submit(ctx, entity.IntentJoinGame, connID, func(ctx context.Context) error {
		return that.join(ctx, connID, gameID)
	})
}

func (that *Relay) Move(ctx context.Context, connID, gameID string, cell int) error {
	return that.submit(ctx, entity.IntentMakeMove, connID, func(ctx context.Context) error {
		return that.move(ctx, connID, gameID, cell)
	})
}

func (that *Relay) Restart(ctx context.Context, connID, gameID string) error {
	return that.submit(ctx, entity.IntentRestartGame, connID, func(ctx context.Context) error {
		return that.restart(ctx, connID, gameID)
	})
}

func (that *Relay) Leave(ctx context.Context, connID, gameID string) error {
	return that.submit(ctx, entity.IntentLeaveGame, connID, func(ctx context.Context) error {
		return that.leave(ctx, connID, gameID)
	})
}

// Disconnect vacates every seat held by connID. Nothing is reported back to it.
func (that *Relay) Disconnect(ctx context.Context, connID string) error {
	return that.submit(ctx, "disconnect", "", func(ctx context.Context) error {
		return that.disconnect(ctx, connID)
	})
}

// Sweep removes expired sessions now and returns how many were deleted.
func (that *Relay) Sweep(ctx context.Context) (int, error) {
	var removed int

	err := that.submit(ctx, "sweep", "", func(ctx context.Context) error {
		var err error
		removed, err = that.sweep(ctx)
		return err
	})

	return removed, err
}

// ActiveGames counts the sessions currently held.
func (that *Relay) ActiveGames(ctx context.Context) (int, error) {
	var count int

	err := that.submit(ctx, "count", "", func(ctx context.Context) error {
		var err error
		count, err = that.repo.Count(ctx)
		return err
	})

	return count, err
}
