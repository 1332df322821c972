package repositories

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cbodonnell/worldgate/pkg/repositories/models"
	"github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository opens the database at path and applies the migrations.
// Use ":memory:" for a throwaway database.
func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers, and an in-memory database only lives as
	// long as its single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	err = migrate(ctx, "sqlite", func(ctx context.Context, q string) error {
		_, err := db.ExecContext(ctx, q)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{
		db:  db,
		now: time.Now,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func isSQLiteUnique(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, name string, passwordHash string) (*models.Account, error) {
	createdAt := r.now()
	q := `
	INSERT INTO accounts (name, password_hash, created_at)
	VALUES (?, ?, ?);
	`
	res, err := r.db.ExecContext(ctx, q, name, passwordHash, createdAt.UnixMilli())
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, &ErrConflict{What: "account " + name}
		}
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get account id: %w", err)
	}

	return &models.Account{
		ID:           id,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.UnixMilli(createdAt.UnixMilli()),
	}, nil
}

func (r *SQLiteRepository) GetAccountByName(ctx context.Context, name string) (*models.Account, error) {
	q := `
	SELECT id, name, password_hash, created_at FROM accounts WHERE name = ?;
	`
	account := &models.Account{}
	var createdAt int64
	if err := r.db.QueryRowContext(ctx, q, name).Scan(&account.ID, &account.Name, &account.PasswordHash, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	account.CreatedAt = time.UnixMilli(createdAt)

	return account, nil
}

func (r *SQLiteRepository) CreateLoginTicket(ctx context.Context, accountID int64) (*models.LoginTicket, error) {
	token, err := newLoginToken()
	if err != nil {
		return nil, err
	}
	expiresAt := time.UnixMilli(r.now().Add(LoginTicketLifetime).UnixMilli())

	q := `
	INSERT OR REPLACE INTO login_tickets (account_id, token, expires_at)
	VALUES (?, ?, ?);
	`
	if _, err := r.db.ExecContext(ctx, q, accountID, token, expiresAt.UnixMilli()); err != nil {
		return nil, fmt.Errorf("failed to insert login ticket: %w", err)
	}

	return &models.LoginTicket{
		AccountID: accountID,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func (r *SQLiteRepository) ConsumeLoginTicket(ctx context.Context, accountName string, token []byte) (*models.Account, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := `
	SELECT a.id, a.name, a.password_hash, a.created_at, t.token, t.expires_at
	FROM login_tickets t JOIN accounts a ON a.id = t.account_id
	WHERE a.name = ?;
	`
	account := &models.Account{}
	var createdAt, expiresAt int64
	var stored []byte
	if err := tx.QueryRowContext(ctx, q, accountName).Scan(&account.ID, &account.Name, &account.PasswordHash, &createdAt, &stored, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan login ticket: %w", err)
	}
	account.CreatedAt = time.UnixMilli(createdAt)

	if subtle.ConstantTimeCompare(stored, token) != 1 {
		return nil, &ErrNotFound{}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM login_tickets WHERE account_id = ?;", account.ID); err != nil {
		return nil, fmt.Errorf("failed to delete login ticket: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if !r.now().Before(time.UnixMilli(expiresAt)) {
		return nil, &ErrNotFound{}
	}

	return account, nil
}

const sqliteUserColumns = `id, account_id, name, race, gender, class, level, zone_id, x, y, z, rotation, alive, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var createdAt int64
	err := row.Scan(
		&user.ID, &user.AccountID, &user.Name,
		&user.Race, &user.Gender, &user.Class, &user.Level,
		&user.Location.ZoneID, &user.Location.X, &user.Location.Y, &user.Location.Z, &user.Location.Rotation,
		&user.Alive, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	user.CreatedAt = time.UnixMilli(createdAt)
	return user, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	createdAt := time.UnixMilli(r.now().UnixMilli())
	q := `
	INSERT INTO users (account_id, name, race, gender, class, level, zone_id, x, y, z, rotation, alive, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`
	res, err := r.db.ExecContext(ctx, q,
		user.AccountID, user.Name, user.Race, user.Gender, user.Class, user.Level,
		user.Location.ZoneID, user.Location.X, user.Location.Y, user.Location.Z, user.Location.Rotation,
		user.Alive, createdAt.UnixMilli(),
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, &ErrConflict{What: "user " + user.Name}
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user id: %w", err)
	}

	created := *user
	created.ID = int32(id)
	created.CreatedAt = createdAt
	return &created, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context, accountID int64) ([]*models.User, error) {
	q := `SELECT ` + sqliteUserColumns + ` FROM users WHERE account_id = ? ORDER BY id;`
	rows, err := r.db.QueryContext(ctx, q, accountID)
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

func (r *SQLiteRepository) GetUserByID(ctx context.Context, userID int32) (*models.User, error) {
	q := `SELECT ` + sqliteUserColumns + ` FROM users WHERE id = ?;`
	user, err := scanUser(r.db.QueryRowContext(ctx, q, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}

func (r *SQLiteRepository) SaveUserLocation(ctx context.Context, userID int32, location models.Location, alive bool) error {
	q := `
	UPDATE users SET zone_id = ?, x = ?, y = ?, z = ?, rotation = ?, alive = ?
	WHERE id = ?;
	`
	res, err := r.db.ExecContext(ctx, q, location.ZoneID, location.X, location.Y, location.Z, location.Rotation, alive, userID)
	if err != nil {
		return fmt.Errorf("failed to update user location: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &ErrNotFound{}
	}
	return nil
}

func (r *SQLiteRepository) GetPersistedData(ctx context.Context, userID int32) (*models.PersistedBundle, error) {
	q := `
	SELECT data FROM user_persisted_data WHERE user_id = ?;
	`
	var data []byte
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan persisted data: %w", err)
	}
	return decodeBundle(data)
}

func (r *SQLiteRepository) SavePersistedData(ctx context.Context, userID int32, bundle *models.PersistedBundle) error {
	data, err := encodeBundle(bundle)
	if err != nil {
		return err
	}

	q := `
	INSERT OR REPLACE INTO user_persisted_data (user_id, data, updated_at)
	VALUES (?, ?, ?);
	`
	if _, err := r.db.ExecContext(ctx, q, userID, data, r.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save persisted data: %w", err)
	}
	return nil
}
