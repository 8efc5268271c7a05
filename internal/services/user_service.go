package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/tasks-be/internal/apperror"
	"github.com/isdelr/tasks-be/internal/database"
	"github.com/isdelr/tasks-be/internal/models"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// errBadCredentials is the single answer for unknown emails and wrong
// passwords alike.
var errBadCredentials = apperror.NewUnauthenticated("Incorrect email or password", nil)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	Register(ctx context.Context, email, password string) (models.User, error)
	Login(ctx context.Context, email, password string) (string, models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	Logout() string
}

// TokenIssuer mints bearer tokens for a subject.
type TokenIssuer interface {
	Issue(subject string, ttl time.Duration) (string, error)
}

// UserOptions tunes a UserService.
type UserOptions struct {
	TokenTTL    time.Duration
	BcryptCost  int
	AdminEmails []string
}

// UserService handles registration and login. It is the only component that
// mints tokens.
type UserService struct {
	db        *sqlx.DB
	tokens    TokenIssuer
	opts      UserOptions
	dummyHash []byte
}

// NewUserService creates a new UserService.
func NewUserService(db *sqlx.DB, tokens TokenIssuer, opts UserOptions) *UserService {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	// Compared against on unknown emails so both failure paths cost the same.
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), opts.BcryptCost)
	return &UserService{db: db, tokens: tokens, opts: opts, dummyHash: dummy}
}

type registerInput struct {
	Email    string `validate:"required,email,max=255"`
	Password string `validate:"required"`
}

// Register creates a new user with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, email, password string) (models.User, error) {
	if err := validateStruct(registerInput{Email: email, Password: password}); err != nil {
		return models.User{}, err
	}
	if len(password) > maxPasswordBytes {
		return models.User{}, apperror.NewValidation(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes), nil)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	user := models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         models.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if slices.Contains(s.opts.AdminEmails, email) {
		user.Role = models.RoleAdmin
	}

	err = database.WithTx(ctx, s.db, nil, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`), email); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if exists {
			return apperror.NewConflict("Email already registered", nil)
		}

		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO users (id, email, password_hash, role, created_at, updated_at)
			 VALUES (:id, :email, :password_hash, :role, :created_at, :updated_at)`, user)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return apperror.NewConflict("Email already registered", err)
			}
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.User{}, err
	}

	// Return user without password hash
	user.PasswordHash = ""
	return user, nil
}

// Login verifies credentials and returns a fresh access token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, models.User, error) {
	user, err := s.getUserByEmail(ctx, email)
	if err != nil {
		if !apperror.IsNotFound(err) {
			return "", models.User{}, err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return "", models.User{}, errBadCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", models.User{}, errBadCredentials
	}

	token, err := s.tokens.Issue(user.ID, s.opts.TokenTTL)
	if err != nil {
		return "", models.User{}, fmt.Errorf("failed to generate token: %w", err)
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return token, user, nil
}

// Logout acknowledges a logout. Tokens are stateless and stay valid until
// they expire; nothing is revoked server-side.
func (s *UserService) Logout() string {
	return "Logged out successfully"
}

// GetUserByID retrieves a single user by their ID, without the hash.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		s.db.Rebind(`SELECT id, email, role, created_at, updated_at FROM users WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, apperror.NewNotFound("User not found", err)
		}
		return models.User{}, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// getUserByEmail retrieves a single user by their email, including the password hash.
func (s *UserService) getUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		s.db.Rebind(`SELECT id, email, password_hash, role, created_at, updated_at FROM users WHERE email = ?`), email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, apperror.NewNotFound("User not found", err)
		}
		return models.User{}, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}
