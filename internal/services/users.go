package services

import (
	"context"

	"go.uber.org/zap"

	"healthcare-companion-server/internal/models"
	"healthcare-companion-server/internal/repository"
)

// UserService covers admin user management and the directory listings.
type UserService struct {
	users repository.UserRepository
	log   *zap.Logger
}

func NewUserService(users repository.UserRepository, log *zap.Logger) *UserService {
	return &UserService{users: users, log: log}
}

// CreateUserInput is an admin-created account.
type CreateUserInput struct {
	FirstName string `json:"firstName" binding:"required,max=100"`
	LastName  string `json:"lastName" binding:"required,max=100"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
	Role      string `json:"role" binding:"required,oneof=patient doctor admin"`
	Specialty string `json:"specialty,omitempty" binding:"max=100"`
}

func (in *CreateUserInput) Normalize() {
	in.Email = NormalizeEmail(in.Email)
}

func (s *UserService) Create(ctx context.Context, caller Caller, in CreateUserInput) (*models.User, error) {
	if err := caller.require(models.RoleAdmin); err != nil {
		return nil, err
	}
	in.Normalize()
	if err := validateCommand(in); err != nil {
		return nil, err
	}
	return createUser(ctx, s.users, s.log, in.FirstName, in.LastName, in.Email, in.Password, models.Role(in.Role), in.Specialty)
}

func (s *UserService) List(ctx context.Context, caller Caller) ([]models.User, error) {
	if err := caller.require(models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.users.List(ctx)
}

func (s *UserService) Get(ctx context.Context, caller Caller, id string) (*models.User, error) {
	if err := caller.require(models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, id)
}

// UpdateUserInput is an admin edit. Empty fields are left unchanged.
type UpdateUserInput struct {
	FirstName string `json:"firstName" binding:"max=100"`
	LastName  string `json:"lastName" binding:"max=100"`
	Email     string `json:"email,omitempty" binding:"omitempty,email"`
	Role      string `json:"role,omitempty" binding:"omitempty,oneof=patient doctor admin"`
	Specialty string `json:"specialty,omitempty" binding:"max=100"`
}

func (in *UpdateUserInput) Normalize() {
	in.Email = NormalizeEmail(in.Email)
}

// Update edits a user. The unique index on email still backs the pre-check.
func (s *UserService) Update(ctx context.Context, caller Caller, id string, in UpdateUserInput) (*models.User, error) {
	if err := caller.require(models.RoleAdmin); err != nil {
		return nil, err
	}
	in.Normalize()
	if err := validateCommand(in); err != nil {
		return nil, err
	}
	email := in.Email
	if email != "" {
		taken, err := s.users.EmailInUse(ctx, email, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, repository.ErrEmailTaken
		}
	}
	return s.users.Update(ctx, id, func(u *models.User) error {
		setIfNotEmpty(&u.FirstName, in.FirstName)
		setIfNotEmpty(&u.LastName, in.LastName)
		setIfNotEmpty(&u.Email, email)
		setIfNotEmpty(&u.Specialty, in.Specialty)
		if in.Role != "" {
			u.Role = models.Role(in.Role)
		}
		return nil
	})
}

func (s *UserService) Delete(ctx context.Context, caller Caller, id string) error {
	if err := caller.require(models.RoleAdmin); err != nil {
		return err
	}
	if caller.ID == id {
		return invalid("id: admins cannot delete their own account")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("user deleted", zap.String("user_id", id), zap.String("by", caller.ID))
	return nil
}

// Doctors lists every doctor; any signed-in user may browse them to book.
func (s *UserService) Doctors(ctx context.Context, caller Caller) ([]models.User, error) {
	if caller.ID == "" {
		return nil, ErrUnauthenticated
	}
	return s.users.ListByRole(ctx, models.RoleDoctor)
}

// Patients lists every patient for doctors and admins.
func (s *UserService) Patients(ctx context.Context, caller Caller) ([]models.User, error) {
	if err := caller.require(models.RoleDoctor, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.users.ListByRole(ctx, models.RolePatient)
}

// Sanitize maps users to their public representation.
func Sanitize(users []models.User) []models.UserSanitized {
	out := make([]models.UserSanitized, len(users))
	for i := range users {
		out[i] = users[i].Sanitize()
	}
	return out
}
