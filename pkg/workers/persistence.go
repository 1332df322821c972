package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cbodonnell/worldgate/pkg/log"
	"github.com/cbodonnell/worldgate/pkg/messages"
	"github.com/cbodonnell/worldgate/pkg/metrics"
	"github.com/cbodonnell/worldgate/pkg/repositories"
	"github.com/cbodonnell/worldgate/pkg/repositories/models"
	"github.com/google/uuid"
)

const (
	DefaultPersistenceWorkers   = 4
	DefaultPersistenceQueueSize = 256
	DefaultPersistenceTimeout   = 5 * time.Second
)

var ErrPersistenceBusy = errors.New("persistence queue is full")

// PersistenceRequest is a repository call whose result is delivered to the
// global world as an event.
type PersistenceRequest interface {
	execute(ctx context.Context, repository repositories.Repository) messages.GlobalEvent
}

type AuthenticateRequest struct {
	ConnectionID messages.ConnectionID
	AccountName  string
	Ticket       []byte
}

func (r AuthenticateRequest) execute(ctx context.Context, repository repositories.Repository) messages.GlobalEvent {
	event := messages.AccountAuthenticated{ConnectionID: r.ConnectionID}

	account, err := repository.ConsumeLoginTicket(ctx, r.AccountName, r.Ticket)
	if err != nil {
		event.Err = fmt.Errorf("failed to consume login ticket: %w", err)
		return event
	}
	users, err := repository.ListUsers(ctx, account.ID)
	if err != nil {
		event.Err = fmt.Errorf("failed to list users: %w", err)
		return event
	}

	event.Account = account
	event.Users = users
	return event
}

type ListUsersRequest struct {
	ConnectionID messages.ConnectionID
	AccountID    int64
}

func (r ListUsersRequest) execute(ctx context.Context, repository repositories.Repository) messages.GlobalEvent {
	users, err := repository.ListUsers(ctx, r.AccountID)
	if err != nil {
		err = fmt.Errorf("failed to list users: %w", err)
	}
	return messages.UsersListed{
		ConnectionID: r.ConnectionID,
		AccountID:    r.AccountID,
		Users:        users,
		Err:          err,
	}
}

type LoadUserRequest struct {
	Ticket uuid.UUID
	UserID int32
}

func (r LoadUserRequest) execute(ctx context.Context, repository repositories.Repository) messages.GlobalEvent {
	user, err := repository.GetUserByID(ctx, r.UserID)
	if err != nil {
		err = fmt.Errorf("failed to get user %d: %w", r.UserID, err)
	}
	return messages.UserLoaded{
		Ticket: r.Ticket,
		User:   user,
		Err:    err,
	}
}

type LoadPersistedDataRequest struct {
	Ticket uuid.UUID
	UserID int32
}

func (r LoadPersistedDataRequest) execute(ctx context.Context, repository repositories.Repository) messages.GlobalEvent {
	bundle, err := repository.GetPersistedData(ctx, r.UserID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return messages.PersistedDataLoaded{Ticket: r.Ticket, Bundle: &models.PersistedBundle{}}
		}
		err = fmt.Errorf("failed to get persisted data for user %d: %w", r.UserID, err)
	}
	return messages.PersistedDataLoaded{
		Ticket: r.Ticket,
		Bundle: bundle,
		Err:    err,
	}
}

// PersistenceWorkerPool runs repository calls off the actor goroutines.
type PersistenceWorkerPool struct {
	repository repositories.Repository
	global     messages.GlobalSender
	requests   chan PersistenceRequest
	workers    int
	timeout    time.Duration
}

type NewPersistenceWorkerPoolOptions struct {
	Repository repositories.Repository
	Global     messages.GlobalSender
	Workers    int
	QueueSize  int
	Timeout    time.Duration
}

// NewPersistenceWorkerPool creates a new PersistenceWorkerPool.
// Requests are submitted without blocking and their results are
// sent to the global world as events.
func NewPersistenceWorkerPool(opts NewPersistenceWorkerPoolOptions) *PersistenceWorkerPool {
	if opts.Workers <= 0 {
		opts.Workers = DefaultPersistenceWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultPersistenceQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPersistenceTimeout
	}
	return &PersistenceWorkerPool{
		repository: opts.Repository,
		global:     opts.Global,
		requests:   make(chan PersistenceRequest, opts.QueueSize),
		workers:    opts.Workers,
		timeout:    opts.Timeout,
	}
}

// Submit queues a request. It never blocks.
func (p *PersistenceWorkerPool) Submit(request PersistenceRequest) error {
	select {
	case p.requests <- request:
		return nil
	default:
		return ErrPersistenceBusy
	}
}

// Start runs the workers until ctx is done.
func (p *PersistenceWorkerPool) Start(ctx context.Context) {
	wg := sync.WaitGroup{}
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.work(ctx)
		}()
	}
	wg.Wait()
}

func (p *PersistenceWorkerPool) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case request := <-p.requests:
			p.handle(ctx, request)
		}
	}
}

func (p *PersistenceWorkerPool) handle(ctx context.Context, request PersistenceRequest) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	event := request.execute(callCtx, p.repository)
	cancel()

	if err := eventError(event); err != nil && !repositories.IsNotFound(err) {
		metrics.PersistenceErrors.WithLabelValues(fmt.Sprintf("%T", request)).Inc()
	}

	if err := p.global.Send(ctx, event); err != nil {
		log.Error("Failed to deliver %T: %v", event, err)
	}
}

func eventError(event messages.GlobalEvent) error {
	switch e := event.(type) {
	case messages.AccountAuthenticated:
		return e.Err
	case messages.UsersListed:
		return e.Err
	case messages.UserLoaded:
		return e.Err
	case messages.PersistedDataLoaded:
		return e.Err
	default:
		return nil
	}
}
