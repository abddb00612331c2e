package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"healthcare-companion-server/internal/models"
)

// UserRepository stores accounts, doctor availability and achievement progress.
type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByRole(ctx context.Context, id string, role models.Role) (*models.User, error)
	EmailInUse(ctx context.Context, email, excludeID string) (bool, error)
	List(ctx context.Context) ([]models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
	Save(ctx context.Context, u *models.User) error
	Update(ctx context.Context, id string, fn func(u *models.User) error) (*models.User, error)
	Delete(ctx context.Context, id string) error
	ResetPatientData(ctx context.Context, patientID string) error
}

// Users implements UserRepository with gorm.
type Users struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (r *Users) Create(ctx context.Context, u *models.User) error {
	err := r.db.WithContext(ctx).Create(u).Error
	if isDuplicate(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *Users) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &u, nil
}

func (r *Users) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &u, nil
}

// GetByRole finds a user only if they hold the role.
func (r *Users) GetByRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("id = ? AND role = ?", id, role).First(&u).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &u, nil
}

func (r *Users) EmailInUse(ctx context.Context, email, excludeID string) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Users) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Order("created_at asc").Find(&users).Error
	return users, err
}

func (r *Users) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Where("role = ?", role).Order("last_name asc, first_name asc").Find(&users).Error
	return users, err
}

func (r *Users) Save(ctx context.Context, u *models.User) error {
	err := r.db.WithContext(ctx).Save(u).Error
	if isDuplicate(err) {
		return ErrEmailTaken
	}
	return err
}

// Update applies fn to the row-locked user and saves it. Achievement
// progress goes through here so concurrent counter updates serialize.
func (r *Users) Update(ctx context.Context, id string, fn func(u *models.User) error) (*models.User, error) {
	var out models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&out, "id = ?", id).Error; err != nil {
			return notFound(err, ErrUserNotFound)
		}
		if err := fn(&out); err != nil {
			return err
		}
		return tx.Save(&out).Error
	})
	if isDuplicate(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Users) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ResetPatientData removes a patient's medications and reports and clears
// their achievement progress in one transaction.
func (r *Users) ResetPatientData(ctx context.Context, patientID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.Clauses(forUpdate).First(&u, "id = ?", patientID).Error; err != nil {
			return notFound(err, ErrUserNotFound)
		}
		if err := tx.Where("patient_id = ?", patientID).Delete(&models.Medication{}).Error; err != nil {
			return err
		}
		if err := tx.Where("patient_id = ?", patientID).Delete(&models.HealthReport{}).Error; err != nil {
			return err
		}
		u.Achievements = models.AchievementProgress{}
		return tx.Save(&u).Error
	})
}

// TokenRepository stores refresh tokens for rotation and revocation.
type TokenRepository interface {
	Create(ctx context.Context, t *models.RefreshToken) error
	FindUsable(ctx context.Context, token, userID string, now time.Time) (*models.RefreshToken, error)
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, error)
	Save(ctx context.Context, t *models.RefreshToken) error
}

// Tokens implements TokenRepository with gorm.
type Tokens struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *Tokens {
	return &Tokens{db: db}
}

func (r *Tokens) Create(ctx context.Context, t *models.RefreshToken) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(t).Error
}

func (r *Tokens) FindUsable(ctx context.Context, token, userID string, now time.Time) (*models.RefreshToken, error) {
	var t models.RefreshToken
	err := r.db.WithContext(ctx).
		Where("token = ? AND user_id = ? AND is_revoked = ? AND expires_at > ?", token, userID, false, now).
		First(&t).Error
	if err != nil {
		return nil, notFound(err, ErrTokenNotFound)
	}
	return &t, nil
}

func (r *Tokens) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var t models.RefreshToken
	err := r.db.WithContext(ctx).Where("token = ? AND is_revoked = ?", token, false).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Tokens) Save(ctx context.Context, t *models.RefreshToken) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(t).Error
}
