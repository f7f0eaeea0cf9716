package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"quizmaster/internal/config"
	"quizmaster/internal/models"
)

// ---------- connection ----------

// Open connects to the configured database. The dialect is chosen by cfg.Type.
func Open(cfg config.Database, log *logrus.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{TranslateError: true}
	if log != nil {
		gormCfg.Logger = gormlogger.New(log, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	} else {
		gormCfg.Logger = gormlogger.Discard
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Type, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(config.Duration(cfg.ConnMaxLifetime, 5*time.Minute))

	return db, nil
}

func dialectorFor(cfg config.Database) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "sqlite":
		dsn := cfg.URL
		if dsn == "" {
			dsn = "quizmaster.db"
		}
		return sqlite.Open(withForeignKeys(dsn)), nil
	case "postgres", "postgresql":
		if cfg.URL == "" {
			return nil, errors.New("postgres requires database url")
		}
		return postgres.Open(cfg.URL), nil
	case "mysql":
		if cfg.URL == "" {
			return nil, errors.New("mysql requires database url")
		}
		return mysql.Open(cfg.URL), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
}

// withForeignKeys turns on SQLite foreign key enforcement for the connection.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

// ---------- migrations ----------

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

// SeedAdmin creates the admin account when no user with that email exists.
func SeedAdmin(ctx context.Context, db *gorm.DB, admin config.Admin, log *logrus.Logger) error {
	if admin.Email == "" || admin.Password == "" {
		log.Warn("seedAdmin: admin email/password not set, skipping")
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(admin.Email))

	var cnt int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&cnt).Error; err != nil {
		return fmt.Errorf("seedAdmin: check existing admin: %w", err)
	}
	if cnt > 0 {
		log.WithField("email", email).Debug("seedAdmin: admin already exists")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seedAdmin: hash password: %w", err)
	}

	user := models.User{
		Email:         email,
		PasswordHash:  string(hash),
		FullName:      "Admin",
		Qualification: "Administrator",
		DOB:           datatypes.Date(time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)),
		IsAdmin:       true,
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return fmt.Errorf("seedAdmin: create admin: %w", err)
	}

	log.WithField("email", email).Info("seedAdmin: admin created")
	return nil
}
