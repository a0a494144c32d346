package service

import (
	"context"
	"fmt"
	"time"

	repository "github.com/eventpro/booking-api/internal/database/postgres"
	"github.com/eventpro/booking-api/internal/entity"

	"github.com/sirupsen/logrus"
)

type userService struct {
	userRepo     repository.UserRepository
	storeTimeout time.Duration
}

// NewUserService создает новый экземпляр UserService
func NewUserService(userRepo repository.UserRepository, storeTimeout time.Duration) UserService {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &userService{
		userRepo:     userRepo,
		storeTimeout: storeTimeout,
	}
}

// ResolveIdentity ensures a user record exists for the verified identity.
// First sign-in creates it with role 'user'; the stored role is returned and
// is the only role the rest of the system consults.
func (s *userService) ResolveIdentity(ctx context.Context, identity *Identity) (*entity.User, error) {
	if identity == nil || identity.ID == "" {
		return nil, entity.ErrUnauthorized
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.userRepo.Ensure(storeCtx, &entity.User{
		ID:          identity.ID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
	})
	if err != nil {
		return nil, storeErr(err)
	}

	return user, nil
}

func (s *userService) GetUser(ctx context.Context, id string) (*entity.User, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", entity.ErrInvalidInput)
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.userRepo.GetByID(storeCtx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return user, nil
}

// RequireAdmin загружает роль из хранилища на момент операции; роль из
// токена или из клиентского кэша не участвует в проверке
func (s *userService) RequireAdmin(ctx context.Context, userID string) (*entity.User, error) {
	if userID == "" {
		return nil, entity.ErrUnauthorized
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !user.IsAdmin() {
		return nil, fmt.Errorf("%w: admin role required", entity.ErrForbidden)
	}

	return user, nil
}

// UpdateRole изменяет роль пользователя (admin)
func (s *userService) UpdateRole(ctx context.Context, id string, role entity.UserRole) error {
	switch role {
	case entity.UserRoleUser, entity.UserRoleAdmin:
	default:
		return fmt.Errorf("%w: unknown role %q", entity.ErrInvalidInput, role)
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.userRepo.UpdateRole(storeCtx, id, role); err != nil {
		return storeErr(err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id": id,
		"role":    role,
	}).Info("User role updated")

	return nil
}

// GetAllUsers возвращает всех пользователей (admin)
func (s *userService) GetAllUsers(ctx context.Context) ([]*entity.User, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	users, err := s.userRepo.GetAll(storeCtx)
	if err != nil {
		return nil, storeErr(err)
	}
	return users, nil
}
