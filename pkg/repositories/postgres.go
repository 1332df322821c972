package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cbodonnell/worldgate/pkg/log"
	"github.com/cbodonnell/worldgate/pkg/repositories/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

type PostgresRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresRepository connects to the database and applies the migrations.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	var username string
	var database string
	if err := pool.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to query database: %w", err)
	}
	log.Info("Connected to %s as %s", database, username)

	err = migrate(ctx, "postgres", func(ctx context.Context, q string) error {
		_, err := pool.Exec(ctx, q)
		return err
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresRepository{
		pool: pool,
		now:  time.Now,
	}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.pool.Close()
	return nil
}

func isPgUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (r *PostgresRepository) CreateAccount(ctx context.Context, name string, passwordHash string) (*models.Account, error) {
	createdAt := time.UnixMilli(r.now().UnixMilli())
	q := `
	INSERT INTO accounts (name, password_hash, created_at)
	VALUES ($1, $2, $3)
	RETURNING id;
	`
	account := &models.Account{
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt,
	}
	if err := r.pool.QueryRow(ctx, q, name, passwordHash, createdAt.UnixMilli()).Scan(&account.ID); err != nil {
		if isPgUnique(err) {
			return nil, &ErrConflict{What: "account " + name}
		}
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}

	return account, nil
}

func (r *PostgresRepository) GetAccountByName(ctx context.Context, name string) (*models.Account, error) {
	q := `
	SELECT id, name, password_hash, created_at FROM accounts WHERE name = $1;
	`
	account := &models.Account{}
	var createdAt int64
	if err := r.pool.QueryRow(ctx, q, name).Scan(&account.ID, &account.Name, &account.PasswordHash, &createdAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	account.CreatedAt = time.UnixMilli(createdAt)

	return account, nil
}

func (r *PostgresRepository) CreateLoginTicket(ctx context.Context, accountID int64) (*models.LoginTicket, error) {
	token, err := newLoginToken()
	if err != nil {
		return nil, err
	}
	expiresAt := time.UnixMilli(r.now().Add(LoginTicketLifetime).UnixMilli())

	q := `
	INSERT INTO login_tickets (account_id, token, expires_at) VALUES ($1, $2, $3)
	ON CONFLICT (account_id) DO UPDATE SET token = $2, expires_at = $3;
	`
	if _, err := r.pool.Exec(ctx, q, accountID, token, expiresAt.UnixMilli()); err != nil {
		return nil, fmt.Errorf("failed to insert login ticket: %w", err)
	}

	return &models.LoginTicket{
		AccountID: accountID,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func (r *PostgresRepository) ConsumeLoginTicket(ctx context.Context, accountName string, token []byte) (*models.Account, error) {
	q := `
	DELETE FROM login_tickets t USING accounts a
	WHERE t.account_id = a.id AND a.name = $1 AND t.token = $2
	RETURNING a.id, a.name, a.password_hash, a.created_at, t.expires_at;
	`
	account := &models.Account{}
	var createdAt, expiresAt int64
	if err := r.pool.QueryRow(ctx, q, accountName, token).Scan(&account.ID, &account.Name, &account.PasswordHash, &createdAt, &expiresAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to consume login ticket: %w", err)
	}
	account.CreatedAt = time.UnixMilli(createdAt)

	if !r.now().Before(time.UnixMilli(expiresAt)) {
		return nil, &ErrNotFound{}
	}

	return account, nil
}

const pgUserColumns = `id, account_id, name, race, gender, class, level, zone_id, x, y, z, rotation, alive, created_at`

func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	createdAt := time.UnixMilli(r.now().UnixMilli())
	q := `
	INSERT INTO users (account_id, name, race, gender, class, level, zone_id, x, y, z, rotation, alive, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	RETURNING id;
	`
	created := *user
	created.CreatedAt = createdAt
	err := r.pool.QueryRow(ctx, q,
		user.AccountID, user.Name, user.Race, user.Gender, user.Class, user.Level,
		user.Location.ZoneID, user.Location.X, user.Location.Y, user.Location.Z, user.Location.Rotation,
		user.Alive, createdAt.UnixMilli(),
	).Scan(&created.ID)
	if err != nil {
		if isPgUnique(err) {
			return nil, &ErrConflict{What: "user " + user.Name}
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return &created, nil
}

func (r *PostgresRepository) ListUsers(ctx context.Context, accountID int64) ([]*models.User, error) {
	q := `SELECT ` + pgUserColumns + ` FROM users WHERE account_id = $1 ORDER BY id;`
	rows, err := r.pool.Query(ctx, q, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, userID int32) (*models.User, error) {
	q := `SELECT ` + pgUserColumns + ` FROM users WHERE id = $1;`
	user, err := scanUser(r.pool.QueryRow(ctx, q, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) SaveUserLocation(ctx context.Context, userID int32, location models.Location, alive bool) error {
	q := `
	UPDATE users SET zone_id = $1, x = $2, y = $3, z = $4, rotation = $5, alive = $6
	WHERE id = $7;
	`
	tag, err := r.pool.Exec(ctx, q, location.ZoneID, location.X, location.Y, location.Z, location.Rotation, alive, userID)
	if err != nil {
		return fmt.Errorf("failed to update user location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{}
	}
	return nil
}

func (r *PostgresRepository) GetPersistedData(ctx context.Context, userID int32) (*models.PersistedBundle, error) {
	q := `
	SELECT data FROM user_persisted_data WHERE user_id = $1;
	`
	var data []byte
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&data); err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan persisted data: %w", err)
	}
	return decodeBundle(data)
}

func (r *PostgresRepository) SavePersistedData(ctx context.Context, userID int32, bundle *models.PersistedBundle) error {
	data, err := encodeBundle(bundle)
	if err != nil {
		return err
	}

	q := `
	INSERT INTO user_persisted_data (user_id, data, updated_at) VALUES ($1, $2, $3)
	ON CONFLICT (user_id) DO UPDATE SET data = $2, updated_at = $3;
	`
	if _, err := r.pool.Exec(ctx, q, userID, data, r.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save persisted data: %w", err)
	}
	return nil
}
