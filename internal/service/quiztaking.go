package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"quizmaster/internal/models"
)

// AvailableQuiz is a quiz a user can take, tagged with whether they already did.
type AvailableQuiz struct {
	Quiz          models.Quiz
	QuestionCount int
	Attempted     bool
}

// AttemptResult is the outcome of one submission.
type AttemptResult struct {
	AttemptID  uint
	Score      int
	Total      int
	Percentage float64
}

type Quizzes struct {
	db  *gorm.DB
	now func() time.Time
}

func NewQuizzes(db *gorm.DB) *Quizzes {
	return &Quizzes{db: db, now: time.Now}
}

// ListAvailableQuizzes returns every quiz with at least one question.
func (s *Quizzes) ListAvailableQuizzes(ctx context.Context, userID uint) ([]AvailableQuiz, error) {
	return availableQuizzes(s.db.WithContext(ctx), userID)
}

func availableQuizzes(db *gorm.DB, userID uint) ([]AvailableQuiz, error) {
	type countRow struct {
		QuizID uint
		N      int
	}
	var counts []countRow
	if err := db.Model(&models.Question{}).
		Select("quiz_id, COUNT(*) AS n").
		Group("quiz_id").
		Scan(&counts).Error; err != nil {
		return nil, dbErr("count questions", err)
	}
	if len(counts) == 0 {
		return nil, nil
	}
	byQuiz := make(map[uint]int, len(counts))
	ids := make([]uint, 0, len(counts))
	for _, c := range counts {
		byQuiz[c.QuizID] = c.N
		ids = append(ids, c.QuizID)
	}

	var quizzes []models.Quiz
	if err := db.Preload("Chapter.Subject").
		Where("id IN ?", ids).
		Order("id").
		Find(&quizzes).Error; err != nil {
		return nil, dbErr("list quizzes", err)
	}

	attempted, err := attemptedQuizIDs(db, userID)
	if err != nil {
		return nil, err
	}

	out := make([]AvailableQuiz, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, AvailableQuiz{
			Quiz:          q,
			QuestionCount: byQuiz[q.ID],
			Attempted:     attempted[q.ID],
		})
	}
	return out, nil
}

func attemptedQuizIDs(db *gorm.DB, userID uint) (map[uint]bool, error) {
	var ids []uint
	if err := db.Model(&models.QuizAttempt{}).
		Where("user_id = ?", userID).
		Distinct().
		Pluck("quiz_id", &ids).Error; err != nil {
		return nil, dbErr("list attempted quizzes", err)
	}
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// QuizForAttempt loads a quiz and its questions in id order for a regular user.
func (s *Quizzes) QuizForAttempt(ctx context.Context, p Principal, quizID uint) (*models.Quiz, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	var quiz models.Quiz
	err := s.db.WithContext(ctx).
		Preload("Chapter.Subject").
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("questions.id") }).
		First(&quiz, quizID).Error
	if err != nil {
		return nil, dbErr("load quiz", err)
	}
	return &quiz, nil
}

// SubmitAttempt scores answers (question id -> slot key) and records the attempt.
// Unanswered, unknown or invalid answers score zero.
func (s *Quizzes) SubmitAttempt(ctx context.Context, p Principal, quizID uint, answers map[uint]string) (AttemptResult, error) {
	if err := requireUser(p); err != nil {
		return AttemptResult{}, err
	}

	var result AttemptResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quiz models.Quiz
		if err := tx.First(&quiz, quizID).Error; err != nil {
			return err
		}
		var questions []models.Question
		if err := tx.Where("quiz_id = ?", quizID).Order("id").Find(&questions).Error; err != nil {
			return err
		}

		score := 0
		for _, q := range questions {
			if q.IsCorrect(answers[q.ID]) {
				score++
			}
		}

		attempt := models.QuizAttempt{
			UserID:         p.UserID,
			QuizID:         quizID,
			Score:          score,
			TotalQuestions: len(questions),
			AttemptDate:    s.now(),
		}
		if err := tx.Create(&attempt).Error; err != nil {
			return err
		}
		result = AttemptResult{
			AttemptID:  attempt.ID,
			Score:      score,
			Total:      len(questions),
			Percentage: Percent(score, len(questions)),
		}
		return nil
	})
	if err != nil {
		return AttemptResult{}, dbErr("submit attempt", err)
	}
	return result, nil
}

// Attempts returns the user's attempts, newest first.
func (s *Quizzes) Attempts(ctx context.Context, p Principal) ([]models.QuizAttempt, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	var attempts []models.QuizAttempt
	err := s.db.WithContext(ctx).
		Preload("Quiz.Chapter.Subject").
		Where("user_id = ?", p.UserID).
		Order("attempt_date DESC, id DESC").
		Find(&attempts).Error
	return attempts, dbErr("list attempts", err)
}
