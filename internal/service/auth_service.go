package service

import (
	"context"
	"errors"

	"github.com/evently/booking-engine/internal/model"
	"github.com/evently/booking-engine/internal/repository"
	"github.com/evently/booking-engine/internal/utils"
)

// ErrInvalidCredentials is returned on login with a wrong email or
// password. The two cases are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid email or password")

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, q repository.Querier, u *model.User) error
	GetByEmail(ctx context.Context, q repository.Querier, email string) (*model.User, error)
	GetByID(ctx context.Context, q repository.Querier, id uint64) (*model.User, error)
}

// AuthService registers accounts and issues access tokens.
type AuthService struct {
	runner     repository.TxRunner
	users      UserStore
	jwtSecret  string
	ttlMinutes int
	bcryptCost int
}

// NewAuthService constructs an AuthService.
func NewAuthService(runner repository.TxRunner, users UserStore, jwtSecret string, ttlMinutes, bcryptCost int) *AuthService {
	if runner == nil || users == nil {
		panic("nil dependency passed to NewAuthService")
	}
	return &AuthService{
		runner:     runner,
		users:      users,
		jwtSecret:  jwtSecret,
		ttlMinutes: ttlMinutes,
		bcryptCost: bcryptCost,
	}
}

// Register creates a customer account. Duplicate emails surface as
// repository.ErrEmailExists.
func (s *AuthService) Register(ctx context.Context, email, name, password string) (*model.User, error) {
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		Email:        email,
		Name:         name,
		Role:         model.RoleCustomer,
		PasswordHash: hash,
	}
	err = s.runner.InTx(ctx, func(q repository.Querier) error {
		return s.users.Create(ctx, q, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies the credentials and returns a signed access token
// together with the account.
func (s *AuthService) Login(ctx context.Context, email, password string) (utils.AccessToken, *model.User, error) {
	var u *model.User
	err := s.runner.InTx(ctx, func(q repository.Querier) error {
		var err error
		u, err = s.users.GetByEmail(ctx, q, email)
		return err
	})
	if errors.Is(err, repository.ErrUserNotFound) {
		return utils.AccessToken{}, nil, ErrInvalidCredentials
	}
	if err != nil {
		return utils.AccessToken{}, nil, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return utils.AccessToken{}, nil, ErrInvalidCredentials
	}
	token, err := utils.NewAccessToken(s.jwtSecret, u.ID, u.Role, s.ttlMinutes)
	if err != nil {
		return utils.AccessToken{}, nil, err
	}
	return token, u, nil
}

// GetUser loads one account by ID.
func (s *AuthService) GetUser(ctx context.Context, id uint64) (*model.User, error) {
	var u *model.User
	err := s.runner.InTx(ctx, func(q repository.Querier) error {
		var err error
		u, err = s.users.GetByID(ctx, q, id)
		return err
	})
	return u, err
}
