package service

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"quizmaster/internal/models"
)

// ---------- result types ----------

type TrendPoint struct {
	QuizName   string
	Score      int
	Total      int
	Date       string // YYYY-MM-DD
	Percentage float64
}

type RecentAttempt struct {
	QuizName   string
	Score      int
	Total      int
	Date       string // YYYY-MM-DD HH:MM:SS
	Percentage float64
}

type SubjectAverage struct {
	Subject  string
	Attempts int
	Average  float64
}

type DashboardStats struct {
	Available []AvailableQuiz
	Trend     []TrendPoint
	Recent    []RecentAttempt
	Subjects  []SubjectAverage
}

type SummaryQuiz struct {
	QuizID    uint
	Name      string
	Chapter   string
	Subject   string
	Attempted bool
}

type SubjectPerformance struct {
	Subject    string
	Percentage float64
}

type MonthStat struct {
	Key           string // YYYY-MM
	Label         string // January 2006
	Attempts      int
	UniqueQuizzes int
	Percentage    float64
}

// UserSummary backs both the summary page and the PDF report.
type UserSummary struct {
	UserName              string
	GeneratedAt           time.Time
	TotalQuizzesAttempted int
	TotalAttempts         int
	AverageScore          float64
	BestScore             float64
	TotalAvailableQuizzes int
	Quizzes               []SummaryQuiz
	Subjects              []SubjectPerformance
	Months                []MonthStat
}

type Counts struct {
	Subjects  int64
	Chapters  int64
	Quizzes   int64
	Questions int64
	Users     int64
}

type TopScore struct {
	QuizID     uint
	QuizName   string
	Chapter    string
	Subject    string
	UserName   string
	Score      int
	Total      int
	Percentage float64
	Date       string
	Attempts   int // distinct users who attempted the quiz
}

type SubjectAttempts struct {
	Subject  string
	Attempts int
}

type AdminSummary struct {
	Counts          Counts
	TopScores       []TopScore
	SubjectAttempts []SubjectAttempts
}

// ---------- service ----------

// Analytics derives statistics per request. Nothing is cached.
type Analytics struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAnalytics(db *gorm.DB) *Analytics {
	return &Analytics{db: db, now: time.Now}
}

func userAttempts(db *gorm.DB, userID uint) ([]models.QuizAttempt, error) {
	var attempts []models.QuizAttempt
	err := db.Preload("Quiz.Chapter.Subject").
		Where("user_id = ?", userID).
		Order("attempt_date, id").
		Find(&attempts).Error
	return attempts, dbErr("load attempts", err)
}

// UserDashboardStats builds the dashboard: available quizzes, score trend,
// the two latest attempts and per-subject averages.
func (a *Analytics) UserDashboardStats(ctx context.Context, p Principal) (*DashboardStats, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	db := a.db.WithContext(ctx)

	available, err := availableQuizzes(db, p.UserID)
	if err != nil {
		return nil, err
	}
	attempts, err := userAttempts(db, p.UserID)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{Available: available}
	for _, at := range attempts {
		stats.Trend = append(stats.Trend, TrendPoint{
			QuizName:   at.Quiz.Title(),
			Score:      at.Score,
			Total:      at.TotalQuestions,
			Date:       at.AttemptDate.Format("2006-01-02"),
			Percentage: Percent(at.Score, at.TotalQuestions),
		})
	}
	for i := len(attempts) - 1; i >= 0 && len(stats.Recent) < 2; i-- {
		at := attempts[i]
		stats.Recent = append(stats.Recent, RecentAttempt{
			QuizName:   at.Quiz.Title(),
			Score:      at.Score,
			Total:      at.TotalQuestions,
			Date:       at.AttemptDate.Format("2006-01-02 15:04:05"),
			Percentage: Percent(at.Score, at.TotalQuestions),
		})
	}

	subjects, err := subjectAverages(db, p.UserID)
	if err != nil {
		return nil, err
	}
	stats.Subjects = subjects
	return stats, nil
}

// subjectAverages is the mean of per-attempt percentages grouped by subject.
func subjectAverages(db *gorm.DB, userID uint) ([]SubjectAverage, error) {
	type row struct {
		SubjectID uint
		Name      string
		Attempts  int
		Average   float64
	}
	var rows []row
	err := db.Table("quiz_attempts").
		Select("subjects.id AS subject_id, subjects.name AS name, COUNT(quiz_attempts.id) AS attempts, " +
			"AVG(CASE WHEN quiz_attempts.total_questions > 0 " +
			"THEN quiz_attempts.score * 100.0 / quiz_attempts.total_questions ELSE 0 END) AS average").
		Joins("JOIN quizzes ON quizzes.id = quiz_attempts.quiz_id").
		Joins("JOIN chapters ON chapters.id = quizzes.chapter_id").
		Joins("JOIN subjects ON subjects.id = chapters.subject_id").
		Where("quiz_attempts.user_id = ?", userID).
		Group("subjects.id, subjects.name").
		Order("subjects.id").
		Scan(&rows).Error
	if err != nil {
		return nil, dbErr("subject averages", err)
	}
	out := make([]SubjectAverage, 0, len(rows))
	for _, r := range rows {
		out = append(out, SubjectAverage{Subject: r.Name, Attempts: r.Attempts, Average: round(r.Average, percentPlaces)})
	}
	return out, nil
}

// UserSummary aggregates a user's attempts into overall, per-subject and
// per-month figures.
func (a *Analytics) UserSummary(ctx context.Context, p Principal) (*UserSummary, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	db := a.db.WithContext(ctx)

	attempts, err := userAttempts(db, p.UserID)
	if err != nil {
		return nil, err
	}
	var quizzes []models.Quiz
	if err := db.Preload("Chapter.Subject").Order("id").Find(&quizzes).Error; err != nil {
		return nil, dbErr("list quizzes", err)
	}

	summary := summarize(attempts)
	summary.UserName = p.FullName
	summary.GeneratedAt = a.now()
	summary.TotalAvailableQuizzes = len(quizzes)

	attempted := make(map[uint]bool)
	for _, at := range attempts {
		attempted[at.QuizID] = true
	}
	for _, q := range quizzes {
		summary.Quizzes = append(summary.Quizzes, SummaryQuiz{
			QuizID:    q.ID,
			Name:      q.Title(),
			Chapter:   q.Chapter.Name,
			Subject:   q.Chapter.Subject.Name,
			Attempted: attempted[q.ID],
		})
	}
	return summary, nil
}

type tally struct {
	score, total int64
}

func (t *tally) add(at models.QuizAttempt) {
	t.score += int64(at.Score)
	t.total += int64(at.TotalQuestions)
}

// summarize computes the attempt-derived part of a UserSummary. Averages are
// weighted by question count.
func summarize(attempts []models.QuizAttempt) *UserSummary {
	s := &UserSummary{TotalAttempts: len(attempts)}

	var overall tally
	unique := make(map[uint]bool)

	type subjectAcc struct {
		id   uint
		name string
		tally
	}
	subjects := make(map[uint]*subjectAcc)

	type monthAcc struct {
		key, label string
		attempts   int
		quizzes    map[uint]bool
		tally
	}
	months := make(map[string]*monthAcc)

	for _, at := range attempts {
		overall.add(at)
		unique[at.QuizID] = true
		if p := Percent(at.Score, at.TotalQuestions); p > s.BestScore {
			s.BestScore = p
		}

		subj := at.Quiz.Chapter.Subject
		acc, ok := subjects[subj.ID]
		if !ok {
			acc = &subjectAcc{id: subj.ID, name: subj.Name}
			subjects[subj.ID] = acc
		}
		acc.add(at)

		key := at.AttemptDate.Format("2006-01")
		m, ok := months[key]
		if !ok {
			m = &monthAcc{key: key, label: at.AttemptDate.Format("January 2006"), quizzes: make(map[uint]bool)}
			months[key] = m
		}
		m.attempts++
		m.quizzes[at.QuizID] = true
		m.add(at)
	}

	s.TotalQuizzesAttempted = len(unique)
	s.AverageScore = percent(overall.score, overall.total, percentPlaces)

	subjectList := make([]*subjectAcc, 0, len(subjects))
	for _, acc := range subjects {
		subjectList = append(subjectList, acc)
	}
	sort.Slice(subjectList, func(i, j int) bool { return subjectList[i].id < subjectList[j].id })
	for _, acc := range subjectList {
		s.Subjects = append(s.Subjects, SubjectPerformance{
			Subject:    acc.name,
			Percentage: percent(acc.score, acc.total, percentPlaces),
		})
	}

	for _, m := range months {
		s.Months = append(s.Months, MonthStat{
			Key:           m.key,
			Label:         m.label,
			Attempts:      m.attempts,
			UniqueQuizzes: len(m.quizzes),
			Percentage:    percent(m.score, m.total, percentPlaces),
		})
	}
	sort.Slice(s.Months, func(i, j int) bool { return s.Months[i].Key > s.Months[j].Key })

	return s
}

// AdminSummary reports content counts, the best attempt per quiz and
// attempts per subject.
func (a *Analytics) AdminSummary(ctx context.Context, p Principal) (*AdminSummary, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	db := a.db.WithContext(ctx)

	var out AdminSummary
	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&out.Counts.Subjects, db.Model(&models.Subject{})},
		{&out.Counts.Chapters, db.Model(&models.Chapter{})},
		{&out.Counts.Quizzes, db.Model(&models.Quiz{})},
		{&out.Counts.Questions, db.Model(&models.Question{})},
		{&out.Counts.Users, db.Model(&models.User{}).Where("is_admin = ?", false)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, dbErr("count records", err)
		}
	}

	top, err := topScores(db)
	if err != nil {
		return nil, err
	}
	out.TopScores = top

	subjects, err := subjectAttemptTotals(db)
	if err != nil {
		return nil, err
	}
	out.SubjectAttempts = subjects
	return &out, nil
}

// topScores picks each quiz's highest-scoring attempt, compared as exact
// fractions. Ties keep the earliest.
func topScores(db *gorm.DB) ([]TopScore, error) {
	var attempts []models.QuizAttempt
	if err := db.Preload("User").
		Preload("Quiz.Chapter.Subject").
		Order("attempt_date, id").
		Find(&attempts).Error; err != nil {
		return nil, dbErr("load attempts", err)
	}

	best := make(map[uint]*TopScore)
	users := make(map[uint]map[uint]bool)
	var order []uint
	for _, at := range attempts {
		if users[at.QuizID] == nil {
			users[at.QuizID] = make(map[uint]bool)
		}
		users[at.QuizID][at.UserID] = true

		cur, ok := best[at.QuizID]
		if ok && compareFraction(int64(at.Score), int64(at.TotalQuestions), int64(cur.Score), int64(cur.Total)) <= 0 {
			continue
		}
		if !ok {
			order = append(order, at.QuizID)
		}
		best[at.QuizID] = &TopScore{
			QuizID:     at.QuizID,
			QuizName:   at.Quiz.Title(),
			Chapter:    at.Quiz.Chapter.Name,
			Subject:    at.Quiz.Chapter.Subject.Name,
			UserName:   at.User.FullName,
			Score:      at.Score,
			Total:      at.TotalQuestions,
			Percentage: Percent(at.Score, at.TotalQuestions),
			Date:       at.AttemptDate.Format("2006-01-02"),
		}
	}

	out := make([]TopScore, 0, len(order))
	for _, id := range order {
		ts := *best[id]
		ts.Attempts = len(users[id])
		out = append(out, ts)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := compareFraction(int64(out[i].Score), int64(out[i].Total), int64(out[j].Score), int64(out[j].Total)); c != 0 {
			return c > 0
		}
		return out[i].QuizID < out[j].QuizID
	})
	return out, nil
}

// subjectAttemptTotals omits subjects without attempts.
func subjectAttemptTotals(db *gorm.DB) ([]SubjectAttempts, error) {
	type row struct {
		Name     string
		Attempts int
	}
	var rows []row
	err := db.Table("subjects").
		Select("subjects.name AS name, COUNT(quiz_attempts.id) AS attempts").
		Joins("JOIN chapters ON chapters.subject_id = subjects.id").
		Joins("JOIN quizzes ON quizzes.chapter_id = chapters.id").
		Joins("JOIN quiz_attempts ON quiz_attempts.quiz_id = quizzes.id").
		Group("subjects.id, subjects.name").
		Order("attempts DESC, subjects.id").
		Scan(&rows).Error
	if err != nil {
		return nil, dbErr("subject attempts", err)
	}
	out := make([]SubjectAttempts, 0, len(rows))
	for _, r := range rows {
		if r.Attempts > 0 {
			out = append(out, SubjectAttempts{Subject: r.Name, Attempts: r.Attempts})
		}
	}
	return out, nil
}
