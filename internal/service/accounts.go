package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"quizmaster/internal/models"
	"quizmaster/internal/throttle"
)

const duplicateEmailMsg = "This email address is already registered. Please use a different email or login."

// ---------- forms ----------

type RegisterForm struct {
	Email           string `form:"email" validate:"required,email,max=150"`
	Password        string `form:"password" validate:"required,min=8"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
	FullName        string `form:"full_name" validate:"required,min=2,max=150"`
	Qualification   string `form:"qualification" validate:"required,max=150"`
	DOB             string `form:"dob" validate:"required,datetime=2006-01-02,notfuture"`
}

func (f *RegisterForm) normalize() {
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.FullName = strings.TrimSpace(f.FullName)
	f.Qualification = strings.TrimSpace(f.Qualification)
	f.DOB = strings.TrimSpace(f.DOB)
}

type ProfileForm struct {
	FullName           string `form:"full_name" validate:"required,min=2,max=150"`
	Qualification      string `form:"qualification" validate:"required,min=2,max=150"`
	DOB                string `form:"dob" validate:"required,datetime=2006-01-02,notfuture"`
	CurrentPassword    string `form:"current_password" validate:"required"`
	NewPassword        string `form:"new_password" validate:"omitempty,min=6"`
	ConfirmNewPassword string `form:"confirm_new_password" validate:"eqfield=NewPassword"`
}

func (f *ProfileForm) normalize() {
	f.FullName = strings.TrimSpace(f.FullName)
	f.Qualification = strings.TrimSpace(f.Qualification)
	f.DOB = strings.TrimSpace(f.DOB)
}

// UserEditForm is what an admin may change on a regular user.
type UserEditForm struct {
	FullName      string `form:"full_name" validate:"required,min=2,max=150"`
	Qualification string `form:"qualification" validate:"required,min=2,max=150"`
	DOB           string `form:"dob" validate:"required,datetime=2006-01-02,notfuture"`
	NewPassword   string `form:"new_password" validate:"omitempty,min=6"`
}

func (f *UserEditForm) normalize() {
	f.FullName = strings.TrimSpace(f.FullName)
	f.Qualification = strings.TrimSpace(f.Qualification)
	f.DOB = strings.TrimSpace(f.DOB)
}

// UserEditFormFor prefills the edit form from a stored user.
func UserEditFormFor(u models.User) UserEditForm {
	return UserEditForm{
		FullName:      u.FullName,
		Qualification: u.Qualification,
		DOB:           dateString(u.DOB),
	}
}

// ProfileFormFor prefills the profile form. Password fields stay empty.
func ProfileFormFor(u models.User) ProfileForm {
	return ProfileForm{
		FullName:      u.FullName,
		Qualification: u.Qualification,
		DOB:           dateString(u.DOB),
	}
}

func dateString(d datatypes.Date) string {
	return time.Time(d).Format(dateLayout)
}

// ---------- service ----------

type Accounts struct {
	db      *gorm.DB
	limiter throttle.LoginLimiter
	log     logrus.FieldLogger
	cost    int
	compare func(hash, password []byte) error

	dummyOnce sync.Once
	dummy     []byte
}

// NewAccounts builds the account service. limiter may be nil to disable throttling.
func NewAccounts(db *gorm.DB, limiter throttle.LoginLimiter, log logrus.FieldLogger) *Accounts {
	return &Accounts{
		db:      db,
		limiter: limiter,
		log:     log,
		cost:    bcrypt.DefaultCost,
		compare: bcrypt.CompareHashAndPassword,
	}
}

func (a *Accounts) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// dummyHash is compared against when the email is unknown so that a miss
// costs the same bcrypt round as a wrong password.
func (a *Accounts) dummyHash() []byte {
	a.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("quizmaster-no-such-user"), a.cost)
		if err != nil {
			a.log.WithError(err).Warn("generate dummy password hash")
			return
		}
		a.dummy = h
	})
	return a.dummy
}

// Register validates the form and creates a regular user. The uniqueness
// check and the insert share one transaction.
func (a *Accounts) Register(ctx context.Context, form RegisterForm) (*models.User, error) {
	form.normalize()
	if err := validateForm(form); err != nil {
		return nil, err
	}
	dob, err := parseDate(form.DOB)
	if err != nil {
		return nil, models.NewValidationError("dob", "Use the YYYY-MM-DD format.")
	}
	hash, err := a.hash(form.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:         form.Email,
		PasswordHash:  hash,
		FullName:      form.FullName,
		Qualification: form.Qualification,
		DOB:           datatypes.Date(dob),
	}
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cnt int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&cnt).Error; err != nil {
			return err
		}
		if cnt > 0 {
			return models.NewValidationError("email", duplicateEmailMsg)
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return models.NewValidationError("email", duplicateEmailMsg)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, dbErr("register user", err)
	}
	return &user, nil
}

// Login checks credentials. Unknown email and wrong password give the same error.
func (a *Accounts) Login(ctx context.Context, email, password string) (Principal, error) {
	key := throttle.Key(email)
	if a.limiter != nil {
		ok, err := a.limiter.Allow(ctx, key)
		if err != nil {
			a.log.WithError(err).Warn("login limiter unavailable, allowing attempt")
		} else if !ok {
			return Principal{}, models.ErrTooManyAttempts
		}
	}

	var user models.User
	err := a.db.WithContext(ctx).Where("email = ?", key).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		_ = a.compare(a.dummyHash(), []byte(password))
		a.recordFailure(ctx, key)
		return Principal{}, models.ErrInvalidCredentials
	case err != nil:
		return Principal{}, dbErr("login", err)
	}

	if err := a.compare([]byte(user.PasswordHash), []byte(password)); err != nil {
		a.recordFailure(ctx, key)
		return Principal{}, models.ErrInvalidCredentials
	}

	if a.limiter != nil {
		if err := a.limiter.Reset(ctx, key); err != nil {
			a.log.WithError(err).Warn("reset login failures")
		}
	}
	return PrincipalFor(user), nil
}

func (a *Accounts) recordFailure(ctx context.Context, key string) {
	if a.limiter == nil {
		return
	}
	if err := a.limiter.Fail(ctx, key); err != nil {
		a.log.WithError(err).Warn("record login failure")
	}
}

// PrincipalByID resolves a session's user id. A missing user is ErrUnauthenticated.
func (a *Accounts) PrincipalByID(ctx context.Context, id uint) (Principal, error) {
	var user models.User
	err := a.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Principal{}, models.ErrUnauthenticated
	}
	if err != nil {
		return Principal{}, dbErr("load principal", err)
	}
	return PrincipalFor(user), nil
}

// Profile returns the principal's own user record.
func (a *Accounts) Profile(ctx context.Context, p Principal) (*models.User, error) {
	if p.UserID == 0 {
		return nil, models.ErrUnauthenticated
	}
	var user models.User
	if err := a.db.WithContext(ctx).First(&user, p.UserID).Error; err != nil {
		return nil, dbErr("load profile", err)
	}
	return &user, nil
}

// UpdateProfile lets a regular user edit their own details after
// re-entering the current password.
func (a *Accounts) UpdateProfile(ctx context.Context, p Principal, form ProfileForm) error {
	if p.UserID == 0 {
		return models.ErrUnauthenticated
	}
	if p.IsAdmin {
		return models.ErrProtectedAccount
	}
	form.normalize()
	if err := validateForm(form); err != nil {
		return err
	}
	dob, err := parseDate(form.DOB)
	if err != nil {
		return models.NewValidationError("dob", "Use the YYYY-MM-DD format.")
	}

	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, p.UserID).Error; err != nil {
			return err
		}
		if a.compare([]byte(user.PasswordHash), []byte(form.CurrentPassword)) != nil {
			return models.NewValidationError("current_password", "Current password is incorrect.")
		}
		updates := map[string]any{
			"full_name":     form.FullName,
			"qualification": form.Qualification,
			"dob":           datatypes.Date(dob),
		}
		if form.NewPassword != "" {
			hash, err := a.hash(form.NewPassword)
			if err != nil {
				return err
			}
			updates["password_hash"] = hash
		}
		return tx.Model(&user).Updates(updates).Error
	})
	return dbErr("update profile", err)
}

// ---------- user management (admin) ----------

// ListUsers returns the regular users ordered by id.
func (a *Accounts) ListUsers(ctx context.Context, p Principal) ([]models.User, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	var users []models.User
	err := a.db.WithContext(ctx).Where("is_admin = ?", false).Order("id").Find(&users).Error
	return users, dbErr("list users", err)
}

func (a *Accounts) GetUser(ctx context.Context, p Principal, id uint) (*models.User, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	var user models.User
	if err := a.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, dbErr("get user", err)
	}
	return &user, nil
}

// AdminUpdateUser edits a regular user. The admin account is always refused.
func (a *Accounts) AdminUpdateUser(ctx context.Context, p Principal, id uint, form UserEditForm) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	form.normalize()

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			return err
		}
		if user.IsAdmin {
			return models.ErrProtectedAccount
		}
		if err := validateForm(form); err != nil {
			return err
		}
		dob, err := parseDate(form.DOB)
		if err != nil {
			return models.NewValidationError("dob", "Use the YYYY-MM-DD format.")
		}
		updates := map[string]any{
			"full_name":     form.FullName,
			"qualification": form.Qualification,
			"dob":           datatypes.Date(dob),
		}
		if form.NewPassword != "" {
			hash, err := a.hash(form.NewPassword)
			if err != nil {
				return err
			}
			updates["password_hash"] = hash
		}
		return tx.Model(&user).Updates(updates).Error
	})
	return dbErr("update user", err)
}

// DeleteUser removes a regular user and their attempts in one transaction.
func (a *Accounts) DeleteUser(ctx context.Context, p Principal, id uint) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			return err
		}
		if user.IsAdmin {
			return models.ErrProtectedAccount
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.QuizAttempt{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	return dbErr("delete user", err)
}
