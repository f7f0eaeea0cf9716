package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizmaster/internal/models"
)

func TestListAvailableQuizzes(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	s := NewQuizzes(db)
	addAttempt(t, db, f.user.UserID, f.quizB.ID, 1, 1, time.Now())

	list, err := s.ListAvailableQuizzes(bg, f.user.UserID)
	require.NoError(t, err)
	require.Len(t, list, 3, "quiz C has no questions")

	assert.Equal(t, f.quizA.ID, list[0].Quiz.ID)
	assert.Equal(t, 2, list[0].QuestionCount)
	assert.False(t, list[0].Attempted)
	assert.Equal(t, "Algebra", list[0].Quiz.Chapter.Name)
	assert.Equal(t, "Maths", list[0].Quiz.Chapter.Subject.Name)

	assert.Equal(t, f.quizB.ID, list[1].Quiz.ID)
	assert.True(t, list[1].Attempted)
	assert.Equal(t, f.quizD.ID, list[2].Quiz.ID)
}

func TestListAvailableQuizzesEmpty(t *testing.T) {
	db := newTestDB(t)
	list, err := NewQuizzes(db).ListAvailableQuizzes(bg, 1)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSubmitAttempt(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	s := NewQuizzes(db)
	fixed := time.Date(2024, 2, 10, 9, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	t.Run("scores by resolved slot text", func(t *testing.T) {
		res, err := s.SubmitAttempt(bg, f.user, f.quizA.ID, map[uint]string{
			f.a1.ID: "option2", // beta, correct
			f.a2.ID: "option1", // alpha, wrong
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Score)
		assert.Equal(t, 2, res.Total)
		assert.Equal(t, 50.0, res.Percentage)

		var saved models.QuizAttempt
		require.NoError(t, db.First(&saved, res.AttemptID).Error)
		assert.Equal(t, f.user.UserID, saved.UserID)
		assert.Equal(t, 2, saved.TotalQuestions)
		assert.True(t, fixed.Equal(saved.AttemptDate))
	})

	t.Run("skipped and garbage answers score zero", func(t *testing.T) {
		res, err := s.SubmitAttempt(bg, f.user, f.quizA.ID, map[uint]string{
			f.a1.ID: "beta",
			f.d1.ID: "option3", // belongs to another quiz
		})
		require.NoError(t, err)
		assert.Equal(t, 0, res.Score)
		assert.Equal(t, 2, res.Total)
	})

	t.Run("quiz without questions records zero percent", func(t *testing.T) {
		res, err := s.SubmitAttempt(bg, f.user, f.quizC.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, AttemptResult{AttemptID: res.AttemptID}, res)
	})

	t.Run("admins cannot attempt", func(t *testing.T) {
		before := count(t, db, &models.QuizAttempt{})
		_, err := s.SubmitAttempt(bg, f.admin, f.quizA.ID, map[uint]string{f.a1.ID: "option2"})
		assert.ErrorIs(t, err, models.ErrForbidden)
		assert.Equal(t, before, count(t, db, &models.QuizAttempt{}))
	})

	t.Run("unknown quiz", func(t *testing.T) {
		_, err := s.SubmitAttempt(bg, f.user, 999, nil)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestQuizForAttemptAndHistory(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	s := NewQuizzes(db)

	q, err := s.QuizForAttempt(bg, f.user, f.quizA.ID)
	require.NoError(t, err)
	require.Len(t, q.Questions, 2)
	assert.Equal(t, f.a1.ID, q.Questions[0].ID)

	_, err = s.QuizForAttempt(bg, f.admin, f.quizA.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	older := addAttempt(t, db, f.user.UserID, f.quizA.ID, 1, 2, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := addAttempt(t, db, f.user.UserID, f.quizD.ID, 1, 1, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	history, err := s.Attempts(bg, f.user)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, newer.ID, history[0].ID)
	assert.Equal(t, older.ID, history[1].ID)
	assert.Equal(t, "Physics", history[0].Quiz.Chapter.Subject.Name)
}
