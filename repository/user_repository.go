package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"EchoFM/db"
	"EchoFM/model"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	CreateUser(user *model.User) (uint, error)
	GetUserByID(id uint) (*model.User, error)
	GetUserByUsername(username string) (*model.User, error)
	GetUserByEmail(email string) (*model.User, error)
}

type gormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a repository on the shared database handle.
func NewUserRepository() UserRepository {
	return &gormUserRepository{db: db.GormDB}
}

// NewUserRepositoryWithDB creates a repository on an explicit handle,
// used by tests.
func NewUserRepositoryWithDB(handle *gorm.DB) UserRepository {
	return &gormUserRepository{db: handle}
}

func (r *gormUserRepository) CreateUser(user *model.User) (uint, error) {
	if err := r.db.Create(user).Error; err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return user.ID, nil
}

func (r *gormUserRepository) GetUserByID(id uint) (*model.User, error) {
	var user model.User
	err := r.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	return &user, nil
}

func (r *gormUserRepository) GetUserByUsername(username string) (*model.User, error) {
	var user model.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", username, err)
	}
	return &user, nil
}

func (r *gormUserRepository) GetUserByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user by email: %w", err)
	}
	return &user, nil
}
