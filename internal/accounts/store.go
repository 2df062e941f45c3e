package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"tailorshop/m/domain"
	"tailorshop/m/internal/database"
)

const userColumns = `id, name, email, password_hash, group_id, created_at`

// NewUser is the registration payload.
type NewUser struct {
	Name     string
	Email    string
	Password string
	GroupID  int64
}

// Store manages groups, users and credential checks.
type Store struct {
	sessions *database.Sessions
	logger   *zap.Logger
	// dummyHash is compared against when the e-mail is unknown.
	dummyHash string
}

// NewStore constructs a Store.
func NewStore(sessions *database.Sessions, logger *zap.Logger) *Store {
	dummy, _ := HashPassword("not-a-real-password")
	return &Store{sessions: sessions, logger: logger, dummyHash: dummy}
}

// Groups lists every group.
func (s *Store) Groups(ctx context.Context) ([]domain.Group, error) {
	sess, err := s.sessions.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	groups := []domain.Group{}
	if err := sess.Select(ctx, &groups, `SELECT id, name, description FROM user_groups ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// List returns every user ordered by id.
func (s *Store) List(ctx context.Context) ([]domain.User, error) {
	sess, err := s.sessions.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	users := []domain.User{}
	if err := sess.Select(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Get fetches a user by id.
func (s *Store) Get(ctx context.Context, id int64) (domain.User, error) {
	return s.getBy(ctx, "id", id, fmt.Sprintf("user %d", id))
}

// GetByEmail fetches a user by e-mail, compared case-insensitively.
func (s *Store) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	email = normalizeEmail(email)
	return s.getBy(ctx, "email", email, fmt.Sprintf("user %q", email))
}

func (s *Store) getBy(ctx context.Context, column string, value any, label string) (domain.User, error) {
	sess, err := s.sessions.Acquire(ctx)
	if err != nil {
		return domain.User{}, err
	}
	defer sess.Release()

	var u domain.User
	if err := sess.Get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, fmt.Errorf("%s %w", label, domain.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("load %s: %w", label, err)
	}
	return u, nil
}

// Create registers a user. The group must exist and the e-mail must be
// unused; otherwise domain.ErrValidation is returned and nothing is written.
func (s *Store) Create(ctx context.Context, in NewUser) (domain.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return domain.User{}, fmt.Errorf("%w: name, email and password are required", domain.ErrValidation)
	}
	if len(in.Password) > MaxPasswordBytes {
		return domain.User{}, fmt.Errorf("%w: password must be at most %d bytes", domain.ErrValidation, MaxPasswordBytes)
	}

	hashed, err := HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("secure password: %w", err)
	}

	sess, err := s.sessions.Acquire(ctx)
	if err != nil {
		return domain.User{}, err
	}
	defer sess.Release()

	user := domain.User{Name: in.Name, Email: in.Email, GroupID: in.GroupID}
	err = sess.InTx(ctx, func(tx *sqlx.Tx) error {
		var groupExists bool
		if err := tx.GetContext(ctx, &groupExists, tx.Rebind(`SELECT EXISTS(SELECT 1 FROM user_groups WHERE id = ?)`), in.GroupID); err != nil {
			return err
		}
		if !groupExists {
			return fmt.Errorf("%w: group %d does not exist", domain.ErrValidation, in.GroupID)
		}

		var emailTaken bool
		if err := tx.GetContext(ctx, &emailTaken, tx.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`), in.Email); err != nil {
			return err
		}
		if emailTaken {
			return errEmailTaken
		}

		err := tx.QueryRowxContext(ctx, tx.Rebind(`INSERT INTO users (name, email, password_hash, group_id) VALUES (?, ?, ?, ?) RETURNING id`),
			in.Name, in.Email, hashed, in.GroupID).Scan(&user.ID)
		if database.IsUniqueViolation(err) {
			return errEmailTaken
		}
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: group %d does not exist", domain.ErrValidation, in.GroupID)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return domain.User{}, err
		}
		s.logger.Error("unable to create user", zap.String("email", in.Email), zap.Error(err))
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

var errEmailTaken = fmt.Errorf("%w: email already registered", domain.ErrValidation)

// Delete removes a user. Users referenced by recorded sales cannot be
// deleted and yield domain.ErrConflict.
func (s *Store) Delete(ctx context.Context, id int64) error {
	sess, err := s.sessions.Acquire(ctx)
	if err != nil {
		return err
	}
	defer sess.Release()

	err = sess.InTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM users WHERE id = ?`), id)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return fmt.Errorf("%w: user %d is referenced by recorded sales and cannot be deleted", domain.ErrConflict, id)
			}
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("user %d %w", id, domain.ErrNotFound)
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConflict):
		return err
	default:
		s.logger.Error("unable to delete user", zap.Int64("user_id", id), zap.Error(err))
		return fmt.Errorf("delete user %d: %w", id, err)
	}
}

// Authenticate checks an e-mail/password pair. Unknown e-mail and wrong
// password both return domain.ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			CheckPassword(s.dummyHash, password)
			return domain.User{}, domain.ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if !CheckPassword(user.Password, password) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	user.Password = ""
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
