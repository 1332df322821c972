package workers

import (
	"context"
	"time"

	"github.com/cbodonnell/worldgate/pkg/log"
	"github.com/cbodonnell/worldgate/pkg/messages"
	"github.com/cbodonnell/worldgate/pkg/repositories"
	"github.com/cbodonnell/worldgate/pkg/repositories/models"
)

const (
	DefaultSaveInterval  = 10 * time.Second
	DefaultSaveQueueSize = 256
)

type SaveUserStateWorker struct {
	repository repositories.Repository
	global     messages.GlobalSender
	requests   chan SaveUserStateRequest
	interval   time.Duration
	timeout    time.Duration
	// failed saves by user, retried every interval. A newer request for
	// the same user replaces the pending one.
	pending map[int32]SaveUserStateRequest
}

type NewSaveUserStateWorkerOptions struct {
	Repository repositories.Repository
	// Global is told about every completed save when set.
	Global     messages.GlobalSender
	QueueSize  int
	Interval   time.Duration
	Timeout    time.Duration
}

type SaveUserStateRequest struct {
	UserID   int32
	Location models.Location
	Alive    bool
}

// NewSaveUserStateWorker creates a new SaveUserStateWorker.
// The worker persists the final state of despawned users and
// periodically retries the saves that failed.
func NewSaveUserStateWorker(opts NewSaveUserStateWorkerOptions) *SaveUserStateWorker {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultSaveQueueSize
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultSaveInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPersistenceTimeout
	}
	return &SaveUserStateWorker{
		repository: opts.Repository,
		global:     opts.Global,
		requests:   make(chan SaveUserStateRequest, opts.QueueSize),
		interval:   opts.Interval,
		timeout:    opts.Timeout,
		pending:    make(map[int32]SaveUserStateRequest),
	}
}

// Submit queues a save. It never blocks; a full queue is reported as false.
func (w *SaveUserStateWorker) Submit(request SaveUserStateRequest) bool {
	select {
	case w.requests <- request:
		return true
	default:
		return false
	}
}

func (w *SaveUserStateWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case request := <-w.requests:
			delete(w.pending, request.UserID)
			w.saveUserState(ctx, request)
		case <-ticker.C:
			retries := make([]SaveUserStateRequest, 0, len(w.pending))
			for _, request := range w.pending {
				retries = append(retries, request)
			}
			w.pending = make(map[int32]SaveUserStateRequest)
			for _, request := range retries {
				w.saveUserState(ctx, request)
			}
		}
	}
}

// drain makes a last attempt at everything still queued on shutdown.
func (w *SaveUserStateWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	for {
		select {
		case request := <-w.requests:
			w.pending[request.UserID] = request
		default:
			for _, request := range w.pending {
				if err := w.repository.SaveUserLocation(ctx, request.UserID, request.Location, request.Alive); err != nil {
					log.Error("Failed to save state of user %d on shutdown: %v", request.UserID, err)
				}
			}
			return
		}
	}
}

func (w *SaveUserStateWorker) saveUserState(ctx context.Context, request SaveUserStateRequest) {
	saveCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	err := w.repository.SaveUserLocation(saveCtx, request.UserID, request.Location, request.Alive)
	switch {
	case err == nil:
		log.Debug("Saved state of user %d", request.UserID)
	case repositories.IsNotFound(err):
		log.Warn("User %d no longer exists, dropping save", request.UserID)
	default:
		log.Error("Failed to save state of user %d: %v", request.UserID, err)
		w.pending[request.UserID] = request
		return
	}
	w.reportSaved(ctx, request)
}

func (w *SaveUserStateWorker) reportSaved(ctx context.Context, request SaveUserStateRequest) {
	if w.global == nil {
		return
	}
	event := messages.UserStateSaved{UserID: request.UserID, Location: request.Location, Alive: request.Alive}
	if err := w.global.Send(ctx, event); err != nil {
		log.Warn("Failed to report saved state of user %d: %v", request.UserID, err)
	}
}
