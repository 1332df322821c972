package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cbodonnell/worldgate/pkg/repositories/models"
)

// LoginTicketSize is the length of a login ticket token.
const LoginTicketSize = 128

// LoginTicketLifetime is how long an unused login ticket stays valid.
const LoginTicketLifetime = 5 * time.Minute

type Repository interface {
	Close(ctx context.Context) error

	CreateAccount(ctx context.Context, name string, passwordHash string) (*models.Account, error)
	GetAccountByName(ctx context.Context, name string) (*models.Account, error)
	CreateLoginTicket(ctx context.Context, accountID int64) (*models.LoginTicket, error)
	// ConsumeLoginTicket deletes the ticket and returns its account. Expired
	// and unknown tickets are ErrNotFound.
	ConsumeLoginTicket(ctx context.Context, accountName string, token []byte) (*models.Account, error)

	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	ListUsers(ctx context.Context, accountID int64) ([]*models.User, error)
	GetUserByID(ctx context.Context, userID int32) (*models.User, error)
	SaveUserLocation(ctx context.Context, userID int32, location models.Location, alive bool) error

	// GetPersistedData returns ErrNotFound when nothing was ever saved for the user.
	GetPersistedData(ctx context.Context, userID int32) (*models.PersistedBundle, error)
	SavePersistedData(ctx context.Context, userID int32, bundle *models.PersistedBundle) error
}

var (
	_ Repository = (*SQLiteRepository)(nil)
	_ Repository = (*PostgresRepository)(nil)
)

// NewRepository picks the backend from the URL scheme.
func NewRepository(ctx context.Context, url string) (Repository, error) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		repo, err := NewSQLiteRepository(ctx, strings.TrimPrefix(url, "sqlite://"))
		if err != nil {
			return nil, err
		}
		return repo, nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		repo, err := NewPostgresRepository(ctx, url)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database url %q", url)
	}
}
