package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"healthcare-companion-server/internal/achievements"
	"healthcare-companion-server/internal/config"
	"healthcare-companion-server/internal/models"
	"healthcare-companion-server/internal/repository"
	"healthcare-companion-server/internal/utils"
)

// AuthService handles registration, token issue and rotation, and the
// caller's own profile.
type AuthService struct {
	users        repository.UserRepository
	tokens       repository.TokenRepository
	achievements *AchievementService
	cfg          *config.Config
	log          *zap.Logger
	now          Clock
}

func NewAuthService(users repository.UserRepository, tokens repository.TokenRepository, achievementSvc *AchievementService, cfg *config.Config, log *zap.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, achievements: achievementSvc, cfg: cfg, log: log, now: systemClock}
}

// RegisterInput is a self-service sign-up. Admin accounts are created by
// other admins only.
type RegisterInput struct {
	FirstName string `json:"firstName" binding:"required,max=100"`
	LastName  string `json:"lastName" binding:"required,max=100"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
	Role      string `json:"role" binding:"required,oneof=patient doctor"`
	Specialty string `json:"specialty,omitempty" binding:"max=100"`
}

// Normalize folds the email so padded or mixed-case input validates.
func (in *RegisterInput) Normalize() {
	in.Email = NormalizeEmail(in.Email)
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Normalize()
	if err := validateCommand(in); err != nil {
		return nil, err
	}
	return createUser(ctx, s.users, s.log, in.FirstName, in.LastName, in.Email, in.Password, models.Role(in.Role), in.Specialty)
}

func createUser(ctx context.Context, users repository.UserRepository, log *zap.Logger, first, last, email, password string, role models.Role, specialty string) (*models.User, error) {
	user := &models.User{
		FirstName: first,
		LastName:  last,
		Email:     NormalizeEmail(email),
		Role:      role,
	}
	if role == models.RoleDoctor {
		user.Specialty = specialty
	}
	if err := user.SetPassword(password); err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	log.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return user, nil
}

// LoginResult is returned by Login.
type LoginResult struct {
	utils.TokenPair
	User models.UserSanitized `json:"user"`
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// equalize timing with the wrong-password path
			_, _ = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{TokenPair: pair, User: user.Sanitize()}, nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (utils.TokenPair, error) {
	pair, err := utils.GenerateTokens(user, s.cfg, s.now())
	if err != nil {
		return utils.TokenPair{}, err
	}
	stored := &models.RefreshToken{
		UserID:    user.ID,
		Token:     pair.RefreshToken,
		ExpiresAt: pair.RefreshExpiresAt.UTC(),
	}
	if err := s.tokens.Create(ctx, stored); err != nil {
		return utils.TokenPair{}, fmt.Errorf("storing refresh token: %w", err)
	}
	return pair, nil
}

// Refresh exchanges a usable refresh token for a new pair and revokes the
// old token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (utils.TokenPair, error) {
	claims, err := utils.ValidateToken(refreshToken, s.cfg.JWTRefreshSecret)
	if err != nil {
		return utils.TokenPair{}, ErrInvalidToken
	}

	now := s.now().UTC()
	stored, err := s.tokens.FindUsable(ctx, refreshToken, claims.UserID, now)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return utils.TokenPair{}, ErrInvalidToken
		}
		return utils.TokenPair{}, err
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return utils.TokenPair{}, ErrInvalidToken
		}
		return utils.TokenPair{}, err
	}

	stored.Revoke(now)
	if err := s.tokens.Save(ctx, stored); err != nil {
		return utils.TokenPair{}, fmt.Errorf("revoking refresh token: %w", err)
	}
	return s.issue(ctx, user)
}

// Logout revokes the refresh token. Unknown or spent tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	stored, err := s.tokens.FindByToken(ctx, refreshToken)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	stored.Revoke(s.now().UTC())
	return s.tokens.Save(ctx, stored)
}

func (s *AuthService) Profile(ctx context.Context, caller Caller) (*models.User, error) {
	if caller.ID == "" {
		return nil, ErrUnauthenticated
	}
	return s.users.GetByID(ctx, caller.ID)
}

// UpdateProfileInput holds the self-editable profile fields. Empty values
// leave the stored value unchanged.
type UpdateProfileInput struct {
	FirstName    string     `json:"firstName" binding:"max=100"`
	LastName     string     `json:"lastName" binding:"max=100"`
	PhoneNumber  string     `json:"phoneNumber" binding:"max=30"`
	Address      string     `json:"address" binding:"max=255"`
	ProfileImage string     `json:"profileImage" binding:"omitempty,url"`
	Specialty    string     `json:"specialty" binding:"max=100"`
	DateOfBirth  *time.Time `json:"dateOfBirth"`
}

// UpdateProfile edits the caller's profile. Filling in the profile
// completely counts toward the profile_completed achievement.
func (s *AuthService) UpdateProfile(ctx context.Context, caller Caller, in UpdateProfileInput) (*models.User, error) {
	if caller.ID == "" {
		return nil, ErrUnauthenticated
	}
	if err := validateCommand(in); err != nil {
		return nil, err
	}
	if in.DateOfBirth != nil && in.DateOfBirth.After(s.now()) {
		return nil, invalid("dateOfBirth: must be in the past")
	}

	user, err := s.users.Update(ctx, caller.ID, func(u *models.User) error {
		setIfNotEmpty(&u.FirstName, in.FirstName)
		setIfNotEmpty(&u.LastName, in.LastName)
		setIfNotEmpty(&u.PhoneNumber, in.PhoneNumber)
		setIfNotEmpty(&u.Address, in.Address)
		setIfNotEmpty(&u.ProfileImage, in.ProfileImage)
		if u.Role == models.RoleDoctor {
			setIfNotEmpty(&u.Specialty, in.Specialty)
		}
		if in.DateOfBirth != nil {
			dob := in.DateOfBirth.UTC()
			u.DateOfBirth = &dob
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if profileComplete(user) && !counterReached(user, achievements.KeyProfileCompleted) {
		s.achievements.track(ctx, user.ID, achievements.KeyProfileCompleted, achievements.Set(1))
	}
	return user, nil
}

// NormalizeEmail trims and lowercases an address. Emails are stored in this
// form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func profileComplete(u *models.User) bool {
	if u.FirstName == "" || u.LastName == "" || u.PhoneNumber == "" {
		return false
	}
	if u.Role == models.RoleDoctor {
		return u.Specialty != ""
	}
	return u.DateOfBirth != nil
}

func counterReached(u *models.User, key string) bool {
	return u.Achievements.Progress[key] >= 1
}

// ResetAccountData deletes the calling patient's medications and reports
// and clears their achievement progress.
func (s *AuthService) ResetAccountData(ctx context.Context, caller Caller) error {
	if err := caller.require(models.RolePatient); err != nil {
		return err
	}
	if err := s.users.ResetPatientData(ctx, caller.ID); err != nil {
		return err
	}
	s.log.Info("account data reset", zap.String("patient_id", caller.ID))
	return nil
}
