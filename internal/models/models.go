// models.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// ---------- Users ----------

type User struct {
	ID            uint           `gorm:"primaryKey"`
	Email         string         `gorm:"size:150;uniqueIndex;not null"`
	PasswordHash  string         `gorm:"size:255;not null"`
	FullName      string         `gorm:"size:150;not null"`
	Qualification string         `gorm:"size:150;not null"`
	DOB           datatypes.Date `gorm:"not null"`
	IsAdmin       bool           `gorm:"not null;default:false"`
	CreatedAt     time.Time

	Attempts []QuizAttempt `gorm:"foreignKey:UserID"`
}

// ---------- Subject / Chapter / Quiz / Question ----------

type Subject struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:150;not null"`
	Description string `gorm:"type:text"`
	CreatedAt   time.Time

	Chapters []Chapter `gorm:"foreignKey:SubjectID"`
}

type Chapter struct {
	ID          uint   `gorm:"primaryKey"`
	SubjectID   uint   `gorm:"index;not null"`
	Name        string `gorm:"size:150;not null"`
	Description string `gorm:"type:text"`
	CreatedAt   time.Time

	Subject Subject `gorm:"constraint:OnDelete:CASCADE;"`
	Quizzes []Quiz  `gorm:"foreignKey:ChapterID"`
}

type Quiz struct {
	ID           uint   `gorm:"primaryKey"`
	ChapterID    uint   `gorm:"index;not null"`
	TimeDuration int    `gorm:"not null"` // minutes
	Remarks      string `gorm:"size:200;not null;default:''"`
	CreatedAt    time.Time

	Chapter   Chapter    `gorm:"constraint:OnDelete:CASCADE;"`
	Questions []Question `gorm:"foreignKey:QuizID"`
}

// Title is the quiz name shown to users. Remarks doubles as the title.
func (q Quiz) Title() string {
	if q.Remarks == "" {
		return "Unknown Quiz"
	}
	return q.Remarks
}

type Question struct {
	ID            uint   `gorm:"primaryKey"`
	QuizID        uint   `gorm:"index;not null"`
	Statement     string `gorm:"type:text;not null"`
	Option1       string `gorm:"size:150;not null"`
	Option2       string `gorm:"size:150;not null"`
	Option3       string `gorm:"size:150;not null"`
	Option4       string `gorm:"size:150;not null"`
	CorrectOption string `gorm:"size:150;not null"` // resolved option text, not the slot key

	Quiz Quiz `gorm:"constraint:OnDelete:CASCADE;"`
}

// ---------- Attempts ----------

type QuizAttempt struct {
	ID             uint      `gorm:"primaryKey"`
	UserID         uint      `gorm:"index;not null"`
	QuizID         uint      `gorm:"index;not null"`
	Score          int       `gorm:"not null"`
	TotalQuestions int       `gorm:"not null"`
	AttemptDate    time.Time `gorm:"autoCreateTime;not null"`

	User User `gorm:"constraint:OnDelete:CASCADE;"`
	Quiz Quiz `gorm:"constraint:OnDelete:CASCADE;"`
}

// All lists every model in migration order.
func All() []any {
	return []any{
		&User{},
		&Subject{},
		&Chapter{},
		&Quiz{},
		&Question{},
		&QuizAttempt{},
	}
}
