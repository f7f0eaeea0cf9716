package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"quizmaster/internal/report"
)

const answerPrefix = "question_"

func (s *Server) registerUserRoutes(r *gin.Engine) {
	r.GET("/user_dashboard", authRequired(), userOnly(msgAdminOnly), s.userDashboardHandler)

	quiz := r.Group("/attempt_quiz", authRequired(), userOnly("Admins cannot attempt quizzes."))
	{
		quiz.GET("/:quiz_id", s.attemptQuizGetHandler)
		quiz.POST("/:quiz_id", s.attemptQuizPostHandler)
	}

	user := r.Group("/user", authRequired(), userOnly(msgAdminOnly))
	{
		user.GET("/scores", s.userScoresHandler)
		user.GET("/summary", s.userSummaryHandler)
		user.GET("/summary/download", s.userSummaryDownloadHandler)
	}
}

func (s *Server) userDashboardHandler(c *gin.Context) {
	stats, err := s.analytics.UserDashboardStats(c.Request.Context(), principal(c))
	if err != nil {
		s.handleError(c, err, "/")
		return
	}
	s.render(c, http.StatusOK, "user_dashboard.html", gin.H{
		"Title": "Dashboard",
		"Stats": stats,
	})
}

// ---------- quiz attempts ----------

func (s *Server) attemptQuizGetHandler(c *gin.Context) {
	quizID, ok := paramID(c, "quiz_id")
	if !ok {
		return
	}
	quiz, err := s.quizzes.QuizForAttempt(c.Request.Context(), principal(c), quizID)
	if err != nil {
		s.handleError(c, err, "/user_dashboard")
		return
	}
	if len(quiz.Questions) == 0 {
		setFlash(c, "warning", "This quiz has no questions yet.")
		c.Redirect(http.StatusFound, "/user_dashboard")
		return
	}
	s.render(c, http.StatusOK, "attempt_quiz.html", gin.H{
		"Title": quiz.Title(),
		"Quiz":  quiz,
	})
}

// answersFrom collects question_<id> fields. Malformed names are ignored.
func answersFrom(c *gin.Context) map[uint]string {
	answers := map[uint]string{}
	if err := c.Request.ParseForm(); err != nil {
		return answers
	}
	for name, values := range c.Request.PostForm {
		if !strings.HasPrefix(name, answerPrefix) || len(values) == 0 {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimPrefix(name, answerPrefix), 10, 64)
		if err != nil {
			continue
		}
		answers[uint(id)] = values[0]
	}
	return answers
}

func (s *Server) attemptQuizPostHandler(c *gin.Context) {
	quizID, ok := paramID(c, "quiz_id")
	if !ok {
		return
	}
	p := principal(c)

	result, err := s.quizzes.SubmitAttempt(c.Request.Context(), p, quizID, answersFrom(c))
	if err != nil {
		s.handleError(c, err, fmt.Sprintf("/attempt_quiz/%d", quizID))
		return
	}
	s.mx.AttemptsSubmitted.Inc()
	s.logFor(c).WithFields(logrus.Fields{
		"quiz_id": quizID,
		"score":   result.Score,
		"total":   result.Total,
	}).Info("quiz attempt recorded")

	setFlash(c, "success", fmt.Sprintf("Quiz submitted successfully! Your score: %d/%d (%.1f%%)",
		result.Score, result.Total, result.Percentage))
	c.Redirect(http.StatusFound, "/user_dashboard")
}

// ---------- scores and summary ----------

func (s *Server) userScoresHandler(c *gin.Context) {
	attempts, err := s.quizzes.Attempts(c.Request.Context(), principal(c))
	if err != nil {
		s.handleError(c, err, "/user_dashboard")
		return
	}
	s.render(c, http.StatusOK, "user_scores.html", gin.H{
		"Title":    "My Scores",
		"Attempts": attempts,
	})
}

func (s *Server) userSummaryHandler(c *gin.Context) {
	summary, err := s.analytics.UserSummary(c.Request.Context(), principal(c))
	if err != nil {
		s.handleError(c, err, "/user_dashboard")
		return
	}
	s.render(c, http.StatusOK, "user_summary.html", gin.H{
		"Title":   "My Summary",
		"Summary": summary,
	})
}

func (s *Server) userSummaryDownloadHandler(c *gin.Context) {
	summary, err := s.analytics.UserSummary(c.Request.Context(), principal(c))
	if err != nil {
		s.handleError(c, err, "/user/summary")
		return
	}
	pdf, err := report.SummaryPDF(summary)
	if err != nil {
		s.logFor(c).WithError(err).Error("render summary pdf")
		setFlash(c, "danger", "Could not generate the PDF report.")
		c.Redirect(http.StatusFound, "/user/summary")
		return
	}
	s.mx.ReportsGenerated.Inc()

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.Filename(summary.GeneratedAt)))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
