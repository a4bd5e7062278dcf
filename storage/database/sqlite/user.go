package sqliterepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Digmusic88/MWPanel3.1--sub000/core"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/user"
)

type userRow struct {
	ID      string `db:"id"`
	Email   string `db:"email"`
	Payload []byte `db:"payload"`
}

func (r userRow) user() (user.User, error) {
	var usr user.User
	if err := json.Unmarshal(r.Payload, &usr); err != nil {
		return user.User{}, errors.Wrapf(err, "decoding user %q", r.ID)
	}
	return usr, nil
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string) error {
	var n int
	if err := repo.exec.GetContext(ctx, &n, "SELECT COUNT(*) FROM users WHERE email = ?", email); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if n > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	payload, err := json.Marshal(usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "encoding user")
	}
	row := userRow{ID: usr.ID, Email: usr.Email, Payload: payload}
	if _, err = repo.exec.NamedExecContext(ctx, "INSERT INTO users (id, email, payload) VALUES (:id, :email, :payload)", row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) getUser(ctx context.Context, where string, arg interface{}) (user.User, error) {
	var row userRow
	if err := repo.exec.GetContext(ctx, &row, "SELECT id, email, payload FROM users WHERE "+where, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "finding user")
	}
	return row.user()
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getUser(ctx, "id = ?", id)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, "email = ?", email)
}

// QueryUsers filters in Go: payloads are opaque to SQLite.
func (repo userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	var rows []userRow
	if err := repo.exec.SelectContext(ctx, &rows, "SELECT id, email, payload FROM users"); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		usr, err := r.user()
		if err != nil {
			return nil, err
		}
		if filter.Match(usr) {
			users = append(users, usr)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (repo userRepository) SetUserActive(ctx context.Context, id string, isActive bool, updatedAt time.Time) (user.User, error) {
	usr, err := repo.GetUserByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	usr.IsActive = isActive
	usr.UpdatedAt = updatedAt.UTC()
	payload, err := json.Marshal(usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "encoding user")
	}
	if _, err = repo.exec.ExecContext(ctx, "UPDATE users SET payload = ? WHERE id = ?", payload, id); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}
