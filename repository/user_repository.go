package repository

import (
	"context"
	"errors"
	"fmt"

	"kgicweb/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository stores admin accounts through GORM.
type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// GetUserByEmail returns ErrNotFound when no account uses the address.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*model.AdminUser, error) {
	var user model.AdminUser
	err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin user %s: %w", email, err)
	}
	return &user, nil
}

// GetUserByID retrieves an admin by primary key.
func (r *UserRepository) GetUserByID(ctx context.Context, id uint) (*model.AdminUser, error) {
	var user model.AdminUser
	err := r.DB.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin user %d: %w", id, err)
	}
	return &user, nil
}

// UpsertUser creates the account or replaces its password hash and display name.
func (r *UserRepository) UpsertUser(ctx context.Context, user *model.AdminUser) error {
	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash", "display_name", "updated_at"}),
	}).Create(user).Error
	if err != nil {
		return fmt.Errorf("failed to save admin user %s: %w", user.Email, err)
	}
	return nil
}
