package service

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"quizmaster/internal/models"
)

// ---------- forms ----------

type SubjectForm struct {
	Name        string `form:"name" validate:"required,max=150"`
	Description string `form:"description"`
}

type ChapterForm struct {
	Name        string `form:"name" validate:"required,max=150"`
	Description string `form:"description"`
}

type QuizForm struct {
	TimeDuration int    `form:"time_duration" validate:"required,min=1,max=180"`
	Remarks      string `form:"remarks" validate:"omitempty,min=3,max=200"`
}

// QuestionForm names the correct answer by slot key ("option1".."option4").
type QuestionForm struct {
	Statement     string `form:"question_statement" validate:"required,min=10"`
	Option1       string `form:"option1" validate:"required,max=150"`
	Option2       string `form:"option2" validate:"required,max=150"`
	Option3       string `form:"option3" validate:"required,max=150"`
	Option4       string `form:"option4" validate:"required,max=150"`
	CorrectOption string `form:"correct_option" validate:"required,oneof=option1 option2 option3 option4"`
}

func (f *SubjectForm) normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
}

func (f *ChapterForm) normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
}

func (f *QuizForm) normalize() {
	f.Remarks = strings.TrimSpace(f.Remarks)
}

func (f *QuestionForm) normalize() {
	f.Statement = strings.TrimSpace(f.Statement)
	f.Option1 = strings.TrimSpace(f.Option1)
	f.Option2 = strings.TrimSpace(f.Option2)
	f.Option3 = strings.TrimSpace(f.Option3)
	f.Option4 = strings.TrimSpace(f.Option4)
}

// apply copies the form onto q and resolves the chosen slot to its text.
func (f QuestionForm) apply(q *models.Question) error {
	q.Statement = f.Statement
	q.Option1, q.Option2, q.Option3, q.Option4 = f.Option1, f.Option2, f.Option3, f.Option4
	slot, ok := models.ParseOptionSlot(f.CorrectOption)
	if !ok {
		return models.NewValidationError("correct_option", "Not a valid choice.")
	}
	q.CorrectOption, _ = q.OptionText(slot)
	return nil
}

func SubjectFormFor(s models.Subject) SubjectForm {
	return SubjectForm{Name: s.Name, Description: s.Description}
}

func ChapterFormFor(c models.Chapter) ChapterForm {
	return ChapterForm{Name: c.Name, Description: c.Description}
}

func QuizFormFor(q models.Quiz) QuizForm {
	return QuizForm{TimeDuration: q.TimeDuration, Remarks: q.Remarks}
}

// QuestionFormFor prefills the edit form. A stale answer leaves the slot empty.
func QuestionFormFor(q models.Question) QuestionForm {
	return QuestionForm{
		Statement:     q.Statement,
		Option1:       q.Option1,
		Option2:       q.Option2,
		Option3:       q.Option3,
		Option4:       q.Option4,
		CorrectOption: q.CorrectSlot().Key(),
	}
}

// ---------- service ----------

// Content is the admin CRUD surface for subjects, chapters, quizzes and questions.
type Content struct {
	db *gorm.DB
}

func NewContent(db *gorm.DB) *Content {
	return &Content{db: db}
}

// ---------- subjects ----------

// Subjects returns all subjects with their chapters.
func (s *Content) Subjects(ctx context.Context, p Principal) ([]models.Subject, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	var subjects []models.Subject
	err := s.db.WithContext(ctx).
		Preload("Chapters", func(db *gorm.DB) *gorm.DB { return db.Order("chapters.id") }).
		Order("id").
		Find(&subjects).Error
	return subjects, dbErr("list subjects", err)
}

// Tree returns subjects with chapters, quizzes and their questions.
func (s *Content) Tree(ctx context.Context, p Principal) ([]models.Subject, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	var subjects []models.Subject
	err := s.db.WithContext(ctx).
		Preload("Chapters", func(db *gorm.DB) *gorm.DB { return db.Order("chapters.id") }).
		Preload("Chapters.Quizzes", func(db *gorm.DB) *gorm.DB { return db.Order("quizzes.id") }).
		Preload("Chapters.Quizzes.Questions", func(db *gorm.DB) *gorm.DB { return db.Order("questions.id") }).
		Order("id").
		Find(&subjects).Error
	return subjects, dbErr("load content tree", err)
}

func (s *Content) Subject(ctx context.Context, p Principal, id uint) (*models.Subject, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	var subject models.Subject
	if err := s.db.WithContext(ctx).First(&subject, id).Error; err != nil {
		return nil, dbErr("get subject", err)
	}
	return &subject, nil
}

func (s *Content) CreateSubject(ctx context.Context, p Principal, form SubjectForm) (*models.Subject, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	form.normalize()
	if err := validateForm(form); err != nil {
		return nil, err
	}
	subject := models.Subject{Name: form.Name, Description: form.Description}
	if err := s.db.WithContext(ctx).Create(&subject).Error; err != nil {
		return nil, dbErr("create subject", err)
	}
	return &subject, nil
}

func (s *Content) UpdateSubject(ctx context.Context, p Principal, id uint, form SubjectForm) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	form.normalize()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subject models.Subject
		if err := tx.First(&subject, id).Error; err != nil {
			return err
		}
		if err := validateForm(form); err != nil {
			return err
		}
		return tx.Model(&subject).Updates(map[string]any{
			"name":        form.Name,
			"description": form.Description,
		}).Error
	})
	return dbErr("update subject", err)
}

// DeleteSubject removes the subject, its chapters, their quizzes, and each
// quiz's questions and attempts. All or nothing.
func (s *Content) DeleteSubject(ctx context.Context, p Principal, id uint) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subject models.Subject
		if err := tx.First(&subject, id).Error; err != nil {
			return err
		}
		var chapterIDs []uint
		if err := tx.Model(&models.Chapter{}).Where("subject_id = ?", id).Pluck("id", &chapterIDs).Error; err != nil {
			return err
		}
		if err := deleteChapters(tx, chapterIDs); err != nil {
			return err
		}
		return tx.Delete(&subject).Error
	})
	return dbErr("delete subject", err)
}

// ---------- chapters ----------

func (s *Content) Chapter(ctx context.Context, p Principal, id uint) (*models.Chapter, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	var chapter models.Chapter
	if err := s.db.WithContext(ctx).Preload("Subject").First(&chapter, id).Error; err != nil {
		return nil, dbErr("get chapter", err)
	}
	return &chapter, nil
}

func (s *Content) CreateChapter(ctx context.Context, p Principal, subjectID uint, form ChapterForm) (*models.Chapter, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	form.normalize()
	chapter := models.Chapter{SubjectID: subjectID, Name: form.Name, Description: form.Description}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subject models.Subject
		if err := tx.First(&subject, subjectID).Error; err != nil {
			return err
		}
		if err := validateForm(form); err != nil {
			return err
		}
		return tx.Create(&chapter).Error
	})
	if err != nil {
		return nil, dbErr("create chapter", err)
	}
	return &chapter, nil
}

func (s *Content) UpdateChapter(ctx context.Context, p Principal, id uint, form ChapterForm) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	form.normalize()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chapter models.Chapter
		if err := tx.First(&chapter, id).Error; err != nil {
			return err
		}
		if err := validateForm(form); err != nil {
			return err
		}
		return tx.Model(&chapter).Updates(map[string]any{
			"name":        form.Name,
			"description": form.Description,
		}).Error
	})
	return dbErr("update chapter", err)
}

func (s *Content) DeleteChapter(ctx context.Context, p Principal, id uint) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chapter models.Chapter
		if err := tx.First(&chapter, id).Error; err != nil {
			return err
		}
		return deleteChapters(tx, []uint{chapter.ID})
	})
	return dbErr("delete chapter", err)
}

// ---------- quizzes ----------

// Quiz loads a quiz with its chapter, subject and questions.
func (s *Content) Quiz(ctx context.Context, p Principal, id uint) (*models.Quiz, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	var quiz models.Quiz
	err := s.db.WithContext(ctx).
		Preload("Chapter.Subject").
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("questions.id") }).
		First(&quiz, id).Error
	if err != nil {
		return nil, dbErr("get quiz", err)
	}
	return &quiz, nil
}

func (s *Content) CreateQuiz(ctx context.Context, p Principal, chapterID uint, form QuizForm) (*models.Quiz, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	form.normalize()
	quiz := models.Quiz{ChapterID: chapterID, TimeDuration: form.TimeDuration, Remarks: form.Remarks}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chapter models.Chapter
		if err := tx.First(&chapter, chapterID).Error; err != nil {
			return err
		}
		if err := validateForm(form); err != nil {
			return err
		}
		return tx.Create(&quiz).Error
	})
	if err != nil {
		return nil, dbErr("create quiz", err)
	}
	return &quiz, nil
}

func (s *Content) UpdateQuiz(ctx context.Context, p Principal, id uint, form QuizForm) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	form.normalize()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quiz models.Quiz
		if err := tx.First(&quiz, id).Error; err != nil {
			return err
		}
		if err := validateForm(form); err != nil {
			return err
		}
		return tx.Model(&quiz).Updates(map[string]any{
			"time_duration": form.TimeDuration,
			"remarks":       form.Remarks,
		}).Error
	})
	return dbErr("update quiz", err)
}

func (s *Content) DeleteQuiz(ctx context.Context, p Principal, id uint) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quiz models.Quiz
		if err := tx.First(&quiz, id).Error; err != nil {
			return err
		}
		return deleteQuizzes(tx, []uint{quiz.ID})
	})
	return dbErr("delete quiz", err)
}

// ---------- questions ----------

func (s *Content) Question(ctx context.Context, p Principal, id uint) (*models.Question, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	var question models.Question
	if err := s.db.WithContext(ctx).Preload("Quiz").First(&question, id).Error; err != nil {
		return nil, dbErr("get question", err)
	}
	return &question, nil
}

func (s *Content) CreateQuestion(ctx context.Context, p Principal, quizID uint, form QuestionForm) (*models.Question, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	form.normalize()
	question := models.Question{QuizID: quizID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quiz models.Quiz
		if err := tx.First(&quiz, quizID).Error; err != nil {
			return err
		}
		if err := validateForm(form); err != nil {
			return err
		}
		if err := form.apply(&question); err != nil {
			return err
		}
		return tx.Create(&question).Error
	})
	if err != nil {
		return nil, dbErr("create question", err)
	}
	return &question, nil
}

// UpdateQuestion rewrites the question and re-resolves the chosen slot
// against the new option texts.
func (s *Content) UpdateQuestion(ctx context.Context, p Principal, id uint, form QuestionForm) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	form.normalize()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var question models.Question
		if err := tx.First(&question, id).Error; err != nil {
			return err
		}
		if err := validateForm(form); err != nil {
			return err
		}
		if err := form.apply(&question); err != nil {
			return err
		}
		return tx.Model(&question).Updates(map[string]any{
			"statement":      question.Statement,
			"option1":        question.Option1,
			"option2":        question.Option2,
			"option3":        question.Option3,
			"option4":        question.Option4,
			"correct_option": question.CorrectOption,
		}).Error
	})
	return dbErr("update question", err)
}

// DeleteQuestion removes a single question and returns the quiz it belonged to.
func (s *Content) DeleteQuestion(ctx context.Context, p Principal, id uint) (uint, error) {
	if err := requireAdmin(p); err != nil {
		return 0, err
	}
	var quizID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var question models.Question
		if err := tx.First(&question, id).Error; err != nil {
			return err
		}
		quizID = question.QuizID
		return tx.Delete(&question).Error
	})
	return quizID, dbErr("delete question", err)
}

// ---------- cascade helpers ----------

func deleteChapters(tx *gorm.DB, chapterIDs []uint) error {
	if len(chapterIDs) == 0 {
		return nil
	}
	var quizIDs []uint
	if err := tx.Model(&models.Quiz{}).Where("chapter_id IN ?", chapterIDs).Pluck("id", &quizIDs).Error; err != nil {
		return err
	}
	if err := deleteQuizzes(tx, quizIDs); err != nil {
		return err
	}
	return tx.Where("id IN ?", chapterIDs).Delete(&models.Chapter{}).Error
}

// deleteQuizzes removes attempts and questions before the quizzes themselves.
func deleteQuizzes(tx *gorm.DB, quizIDs []uint) error {
	if len(quizIDs) == 0 {
		return nil
	}
	if err := tx.Where("quiz_id IN ?", quizIDs).Delete(&models.QuizAttempt{}).Error; err != nil {
		return err
	}
	if err := tx.Where("quiz_id IN ?", quizIDs).Delete(&models.Question{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", quizIDs).Delete(&models.Quiz{}).Error
}
