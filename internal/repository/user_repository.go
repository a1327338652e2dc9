package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/planovo/planovo-api/internal/models"
)

type UserRepository interface {
	CreateUser(ctx context.Context, tenantID, email, password string) (models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) CreateUser(ctx context.Context, tenantID, email, password string) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, errors.Wrap(err, "failed to hash password")
	}

	const query = `
		INSERT INTO tenant.users (tenant_id, email, password_hash, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, tenant_id, email, password_hash, is_active, created_at;
	`
	var user models.User
	err = r.db.QueryRowContext(ctx, query, tenantID, email, string(hash)).
		Scan(&user.ID, &user.TenantID, &user.Email, &user.PasswordHash, &user.IsActive, &user.CreatedAt)
	return user, err
}

func (r *userRepository) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	user, err := r.GetUserByEmail(ctx, email)
	if err != nil {
		return models.User{}, errors.New("invalid credentials")
	}
	if !user.IsActive {
		return models.User{}, errors.New("user is inactive")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, errors.New("invalid credentials")
	}
	return user, nil
}

func (r *userRepository) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `
		SELECT id, tenant_id, email, password_hash, is_active, created_at
		FROM tenant.users
		WHERE email = $1;
	`
	var user models.User
	err := r.db.QueryRowContext(ctx, query, email).
		Scan(&user.ID, &user.TenantID, &user.Email, &user.PasswordHash, &user.IsActive, &user.CreatedAt)
	return user, err
}
