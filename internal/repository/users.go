package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/model"
)

func (s *Store) GetUser(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := s.first(ctx, &u, "user", id, "id = ?", id); err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUserByConnectAccount returns nil without error when no user owns the account.
func (s *Store) FindUserByConnectAccount(ctx context.Context, accountID string) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("stripe_connect_account_id = ?", accountID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser writes the given columns for user id.
func (s *Store) UpdateUser(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}
