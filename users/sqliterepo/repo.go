// Package sqliterepo persists users in SQLite.
package sqliterepo

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-users-service/users"

	_ "modernc.org/sqlite" // SQLite driver
)

var _ users.Repo = (*Repo)(nil)

// Repo is a users.Repo backed by a SQLite database.
type Repo struct {
	db *sql.DB
}

// Connect opens the SQLite database at dsn and runs the migration.
func Connect(ctx context.Context, dsn string) (*Repo, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "[sqliterepo Connect] open")
	}
	// modernc.org/sqlite serializes writes itself; a single connection
	// avoids SQLITE_BUSY on concurrent writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[sqliterepo Connect] ping")
	}

	repo := &Repo{db: db}
	if err := repo.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *Repo) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	is_admin      INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS users_single_admin ON users (is_admin) WHERE is_admin = 1;`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "[sqliterepo migrate] exec schema")
	}
	return nil
}

// Close closes the underlying database.
func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) Create(ctx context.Context, user *users.User) (*users.User, error) {
	// The users_single_admin index makes a second admin row a constraint
	// violation. That, not the handler's read-before-write check, is the
	// actual single-admin guarantee under concurrent setup calls.
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, is_admin) VALUES (?, ?, ?, ?)`,
		user.Name, user.Email, user.PasswordHash, boolToInt(user.IsAdmin))
	if err != nil {
		return nil, errors.Wrap(err, "[sqliterepo Create] insert")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "[sqliterepo Create] last insert id")
	}

	created := *user
	created.ID = id
	return &created, nil
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*users.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, is_admin FROM users WHERE id = ?`, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, errors.Wrap(err, "[sqliterepo GetByID] scan")
	}
	return user, nil
}

func (r *Repo) All(ctx context.Context) ([]users.User, error) {
	return r.query(ctx,
		`SELECT id, name, email, password_hash, is_admin FROM users ORDER BY id`)
}

func (r *Repo) FindByCredentials(ctx context.Context, name, password string) ([]users.User, error) {
	candidates, err := r.query(ctx,
		`SELECT id, name, email, password_hash, is_admin FROM users WHERE name = ? ORDER BY id`, name)
	if err != nil {
		return nil, err
	}

	// Hash comparison happens here rather than in SQL: bcrypt hashes are
	// salted, so equality on the stored column cannot match a plaintext.
	matched := make([]users.User, 0, len(candidates))
	for _, u := range candidates {
		if users.CheckPasswordHash(password, u.PasswordHash) {
			matched = append(matched, u)
		}
	}
	return matched, nil
}

func (r *Repo) Admins(ctx context.Context) ([]users.User, error) {
	return r.query(ctx,
		`SELECT id, name, email, password_hash, is_admin FROM users WHERE is_admin = 1 ORDER BY id`)
}

func (r *Repo) Update(ctx context.Context, user *users.User) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, password_hash = ?, is_admin = ? WHERE id = ?`,
		user.Name, user.Email, user.PasswordHash, boolToInt(user.IsAdmin), user.ID)
	if err != nil {
		return errors.Wrap(err, "[sqliterepo Update] update")
	}
	return affectedOrNotFound(res)
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "[sqliterepo Delete] delete")
	}
	return affectedOrNotFound(res)
}

func (r *Repo) query(ctx context.Context, query string, args ...any) ([]users.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "[sqliterepo query] query")
	}
	defer func() { _ = rows.Close() }()

	list := make([]users.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "[sqliterepo query] scan")
		}
		list = append(list, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "[sqliterepo query] rows")
	}
	return list, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*users.User, error) {
	var user users.User
	var isAdmin int
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &isAdmin); err != nil {
		return nil, err
	}
	user.IsAdmin = isAdmin != 0
	return &user, nil
}

func affectedOrNotFound(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "[sqliterepo] rows affected")
	}
	if affected == 0 {
		return users.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
