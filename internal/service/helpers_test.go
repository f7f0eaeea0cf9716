package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"quizmaster/internal/config"
	"quizmaster/internal/logger"
	"quizmaster/internal/models"
	"quizmaster/internal/store"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := store.Open(config.Database{Type: "sqlite", URL: filepath.Join(t.TempDir(), "test.db")}, nil)
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestAccounts(db *gorm.DB) *Accounts {
	a := NewAccounts(db, nil, logger.Discard())
	a.cost = bcrypt.MinCost
	return a
}

func createUser(t *testing.T, db *gorm.DB, email string, admin bool) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	u := models.User{
		Email:         email,
		PasswordHash:  string(hash),
		FullName:      "User " + email,
		Qualification: "BSc",
		DOB:           datatypes.Date(time.Date(1995, 6, 1, 0, 0, 0, 0, time.UTC)),
		IsAdmin:       admin,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// fixture is a small content tree:
//
//	Maths
//	  Algebra: quiz A (2 questions), quiz B (1 question)
//	  Geometry: quiz C (0 questions)
//	Physics
//	  Motion: quiz D (1 question)
type fixture struct {
	admin, user    Principal
	maths, physics models.Subject
	algebra        models.Chapter
	geometry       models.Chapter
	motion         models.Chapter
	quizA, quizB   models.Quiz
	quizC, quizD   models.Quiz
	a1, a2, b1, d1 models.Question
}

func question(quizID uint, statement, correct string) models.Question {
	return models.Question{
		QuizID:        quizID,
		Statement:     statement,
		Option1:       "alpha",
		Option2:       "beta",
		Option3:       "gamma",
		Option4:       "delta",
		CorrectOption: correct,
	}
}

func seedFixture(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	f := &fixture{}
	admin := createUser(t, db, "admin@example.com", true)
	user := createUser(t, db, "jane@example.com", false)
	f.admin, f.user = PrincipalFor(admin), PrincipalFor(user)

	f.maths = models.Subject{Name: "Maths"}
	f.physics = models.Subject{Name: "Physics"}
	require.NoError(t, db.Create(&f.maths).Error)
	require.NoError(t, db.Create(&f.physics).Error)

	f.algebra = models.Chapter{SubjectID: f.maths.ID, Name: "Algebra"}
	f.geometry = models.Chapter{SubjectID: f.maths.ID, Name: "Geometry"}
	f.motion = models.Chapter{SubjectID: f.physics.ID, Name: "Motion"}
	for _, c := range []*models.Chapter{&f.algebra, &f.geometry, &f.motion} {
		require.NoError(t, db.Create(c).Error)
	}

	f.quizA = models.Quiz{ChapterID: f.algebra.ID, TimeDuration: 10, Remarks: "Quiz A"}
	f.quizB = models.Quiz{ChapterID: f.algebra.ID, TimeDuration: 10}
	f.quizC = models.Quiz{ChapterID: f.geometry.ID, TimeDuration: 5, Remarks: "Quiz C"}
	f.quizD = models.Quiz{ChapterID: f.motion.ID, TimeDuration: 15, Remarks: "Quiz D"}
	for _, q := range []*models.Quiz{&f.quizA, &f.quizB, &f.quizC, &f.quizD} {
		require.NoError(t, db.Create(q).Error)
	}

	f.a1 = question(f.quizA.ID, "First algebra question", "beta")
	f.a2 = question(f.quizA.ID, "Second algebra question", "delta")
	f.b1 = question(f.quizB.ID, "Only question of quiz B", "alpha")
	f.d1 = question(f.quizD.ID, "Only question of quiz D", "gamma")
	for _, q := range []*models.Question{&f.a1, &f.a2, &f.b1, &f.d1} {
		require.NoError(t, db.Create(q).Error)
	}
	return f
}

func addAttempt(t *testing.T, db *gorm.DB, userID, quizID uint, score, total int, at time.Time) models.QuizAttempt {
	t.Helper()
	a := models.QuizAttempt{UserID: userID, QuizID: quizID, Score: score, TotalQuestions: total, AttemptDate: at}
	require.NoError(t, db.Create(&a).Error)
	return a
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

var bg = context.Background()
