// routes_admin.go
package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"quizmaster/internal/models"
	"quizmaster/internal/service"
)

func (s *Server) registerAdminRoutes(r *gin.Engine) {
	admin := r.Group("/", authRequired(), adminRequired())
	{
		// DASHBOARD
		admin.GET("/admin_dashboard", s.adminDashboardHandler)
		admin.GET("/quiz_management", s.adminQuizManagementHandler)
		admin.GET("/manage_questions/:quiz_id", s.adminManageQuestionsHandler)
		admin.GET("/admin_summary", s.adminSummaryHandler)

		// SUBJECTS
		admin.GET("/add_subject", s.adminSubjectNewGetHandler)
		admin.POST("/add_subject", s.adminSubjectNewPostHandler)
		admin.GET("/edit_subject/:id", s.adminSubjectEditGetHandler)
		admin.POST("/edit_subject/:id", s.adminSubjectEditPostHandler)
		admin.POST("/delete_subject/:id", s.adminSubjectDeleteHandler)

		// CHAPTERS
		admin.GET("/add_chapter/:subject_id", s.adminChapterNewGetHandler)
		admin.POST("/add_chapter/:subject_id", s.adminChapterNewPostHandler)
		admin.GET("/edit_chapter/:id", s.adminChapterEditGetHandler)
		admin.POST("/edit_chapter/:id", s.adminChapterEditPostHandler)
		admin.POST("/delete_chapter/:id", s.adminChapterDeleteHandler)

		// QUIZZES
		admin.GET("/add_quiz/:chapter_id", s.adminQuizNewGetHandler)
		admin.POST("/add_quiz/:chapter_id", s.adminQuizNewPostHandler)
		admin.GET("/edit_quiz/:id", s.adminQuizEditGetHandler)
		admin.POST("/edit_quiz/:id", s.adminQuizEditPostHandler)
		admin.POST("/delete_quiz/:id", s.adminQuizDeleteHandler)

		// QUESTIONS
		admin.GET("/add_question/:quiz_id", s.adminQuestionNewGetHandler)
		admin.POST("/add_question/:quiz_id", s.adminQuestionNewPostHandler)
		admin.GET("/edit_question/:id", s.adminQuestionEditGetHandler)
		admin.POST("/edit_question/:id", s.adminQuestionEditPostHandler)
		admin.POST("/delete_question/:id", s.adminQuestionDeleteHandler)

		// USERS
		admin.GET("/edit_user/:id", s.adminUserEditGetHandler)
		admin.POST("/edit_user/:id", s.adminUserEditPostHandler)
		admin.POST("/delete_user/:id", s.adminUserDeleteHandler)
	}
}

// bindForm binds the posted form. A malformed submission (say a non-numeric
// duration) is reported like any other validation failure.
func bindForm(c *gin.Context, form any) error {
	if err := c.ShouldBind(form); err != nil {
		return models.NewValidationError("form", "Invalid form submission.")
	}
	return nil
}

// renderForm re-renders a form page after a failed submission. It returns
// false when err is not a validation error and still needs handling.
func (s *Server) renderForm(c *gin.Context, err error, name string, data gin.H) bool {
	fields, ok := validationFields(err)
	if !ok {
		return false
	}
	data["Errors"] = fields
	s.render(c, http.StatusBadRequest, name, data)
	return true
}

///////////////////////////////////////////////////////
// DASHBOARD
///////////////////////////////////////////////////////

func (s *Server) adminDashboardHandler(c *gin.Context) {
	p := principal(c)
	ctx := c.Request.Context()

	subjects, err := s.content.Subjects(ctx, p)
	if err != nil {
		s.handleError(c, err, "/")
		return
	}
	users, err := s.accounts.ListUsers(ctx, p)
	if err != nil {
		s.handleError(c, err, "/")
		return
	}

	tab := c.DefaultQuery("tab", "subjects")
	if tab != "users" {
		tab = "subjects"
	}
	s.render(c, http.StatusOK, "admin_dashboard.html", gin.H{
		"Title":    "Admin Dashboard",
		"Tab":      tab,
		"Subjects": subjects,
		"Users":    users,
	})
}

func (s *Server) adminQuizManagementHandler(c *gin.Context) {
	subjects, err := s.content.Tree(c.Request.Context(), principal(c))
	if err != nil {
		s.handleError(c, err, "/admin_dashboard")
		return
	}
	s.render(c, http.StatusOK, "quiz_management.html", gin.H{
		"Title":    "Quiz Management",
		"Subjects": subjects,
	})
}

func (s *Server) adminManageQuestionsHandler(c *gin.Context) {
	quizID, ok := paramID(c, "quiz_id")
	if !ok {
		return
	}
	quiz, err := s.content.Quiz(c.Request.Context(), principal(c), quizID)
	if err != nil {
		s.handleError(c, err, "/quiz_management")
		return
	}
	s.render(c, http.StatusOK, "manage_questions.html", gin.H{
		"Title": "Manage Questions",
		"Quiz":  quiz,
	})
}

func (s *Server) adminSummaryHandler(c *gin.Context) {
	summary, err := s.analytics.AdminSummary(c.Request.Context(), principal(c))
	if err != nil {
		s.handleError(c, err, "/admin_dashboard")
		return
	}
	s.render(c, http.StatusOK, "admin_summary.html", gin.H{
		"Title":   "Admin Summary",
		"Summary": summary,
	})
}

///////////////////////////////////////////////////////
// SUBJECTS
///////////////////////////////////////////////////////

func (s *Server) adminSubjectNewGetHandler(c *gin.Context) {
	s.render(c, http.StatusOK, "subject_form.html", gin.H{
		"Title":  "Add Subject",
		"Action": "/add_subject",
		"Form":   service.SubjectForm{},
	})
}

func (s *Server) adminSubjectNewPostHandler(c *gin.Context) {
	var form service.SubjectForm
	err := bindForm(c, &form)
	if err == nil {
		_, err = s.content.CreateSubject(c.Request.Context(), principal(c), form)
	}
	if err != nil {
		if !s.renderForm(c, err, "subject_form.html", gin.H{
			"Title":  "Add Subject",
			"Action": "/add_subject",
			"Form":   form,
		}) {
			s.handleError(c, err, "/admin_dashboard")
		}
		return
	}
	setFlash(c, "success", "Subject added successfully!")
	c.Redirect(http.StatusFound, "/admin_dashboard")
}

func (s *Server) adminSubjectEditGetHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	subject, err := s.content.Subject(c.Request.Context(), principal(c), id)
	if err != nil {
		s.handleError(c, err, "/admin_dashboard")
		return
	}
	s.render(c, http.StatusOK, "subject_form.html", gin.H{
		"Title":  "Edit Subject",
		"Action": fmt.Sprintf("/edit_subject/%d", id),
		"Form":   service.SubjectFormFor(*subject),
	})
}

func (s *Server) adminSubjectEditPostHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var form service.SubjectForm
	err := bindForm(c, &form)
	if err == nil {
		err = s.content.UpdateSubject(c.Request.Context(), principal(c), id, form)
	}
	if err != nil {
		if !s.renderForm(c, err, "subject_form.html", gin.H{
			"Title":  "Edit Subject",
			"Action": fmt.Sprintf("/edit_subject/%d", id),
			"Form":   form,
		}) {
			s.handleError(c, err, "/admin_dashboard")
		}
		return
	}
	setFlash(c, "success", "Subject updated successfully!")
	c.Redirect(http.StatusFound, "/admin_dashboard")
}

func (s *Server) adminSubjectDeleteHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := s.content.DeleteSubject(c.Request.Context(), principal(c), id); err != nil {
		s.handleError(c, err, "/admin_dashboard")
		return
	}
	setFlash(c, "success", "Subject deleted successfully!")
	c.Redirect(http.StatusFound, "/admin_dashboard")
}

///////////////////////////////////////////////////////
// CHAPTERS
///////////////////////////////////////////////////////

func (s *Server) adminChapterNewGetHandler(c *gin.Context) {
	subjectID, ok := paramID(c, "subject_id")
	if !ok {
		return
	}
	subject, err := s.content.Subject(c.Request.Context(), principal(c), subjectID)
	if err != nil {
		s.handleError(c, err, "/admin_dashboard")
		return
	}
	s.render(c, http.StatusOK, "chapter_form.html", gin.H{
		"Title":   "Add Chapter",
		"Action":  fmt.Sprintf("/add_chapter/%d", subjectID),
		"Subject": subject,
		"Form":    service.ChapterForm{},
	})
}

func (s *Server) adminChapterNewPostHandler(c *gin.Context) {
	subjectID, ok := paramID(c, "subject_id")
	if !ok {
		return
	}
	var form service.ChapterForm
	err := bindForm(c, &form)
	if err == nil {
		_, err = s.content.CreateChapter(c.Request.Context(), principal(c), subjectID, form)
	}
	if err != nil {
		if !s.renderForm(c, err, "chapter_form.html", gin.H{
			"Title":  "Add Chapter",
			"Action": fmt.Sprintf("/add_chapter/%d", subjectID),
			"Form":   form,
		}) {
			s.handleError(c, err, "/admin_dashboard")
		}
		return
	}
	setFlash(c, "success", "Chapter added successfully!")
	c.Redirect(http.StatusFound, "/admin_dashboard")
}

func (s *Server) adminChapterEditGetHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	chapter, err := s.content.Chapter(c.Request.Context(), principal(c), id)
	if err != nil {
		s.handleError(c, err, "/admin_dashboard")
		return
	}
	s.render(c, http.StatusOK, "chapter_form.html", gin.H{
		"Title":   "Edit Chapter",
		"Action":  fmt.Sprintf("/edit_chapter/%d", id),
		"Subject": &chapter.Subject,
		"Form":    service.ChapterFormFor(*chapter),
	})
}

func (s *Server) adminChapterEditPostHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var form service.ChapterForm
	err := bindForm(c, &form)
	if err == nil {
		err = s.content.UpdateChapter(c.Request.Context(), principal(c), id, form)
	}
	if err != nil {
		if !s.renderForm(c, err, "chapter_form.html", gin.H{
			"Title":  "Edit Chapter",
			"Action": fmt.Sprintf("/edit_chapter/%d", id),
			"Form":   form,
		}) {
			s.handleError(c, err, "/admin_dashboard")
		}
		return
	}
	setFlash(c, "success", "Chapter updated successfully!")
	c.Redirect(http.StatusFound, "/admin_dashboard")
}

func (s *Server) adminChapterDeleteHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := s.content.DeleteChapter(c.Request.Context(), principal(c), id); err != nil {
		s.handleError(c, err, "/admin_dashboard")
		return
	}
	setFlash(c, "success", "Chapter deleted successfully!")
	c.Redirect(http.StatusFound, "/admin_dashboard")
}

///////////////////////////////////////////////////////
// QUIZZES
///////////////////////////////////////////////////////

func (s *Server) adminQuizNewGetHandler(c *gin.Context) {
	chapterID, ok := paramID(c, "chapter_id")
	if !ok {
		return
	}
	chapter, err := s.content.Chapter(c.Request.Context(), principal(c), chapterID)
	if err != nil {
		s.handleError(c, err, "/quiz_management")
		return
	}
	s.render(c, http.StatusOK, "quiz_form.html", gin.H{
		"Title":   "Add Quiz",
		"Action":  fmt.Sprintf("/add_quiz/%d", chapterID),
		"Chapter": chapter,
		"Form":    service.QuizForm{TimeDuration: 30},
	})
}

func (s *Server) adminQuizNewPostHandler(c *gin.Context) {
	chapterID, ok := paramID(c, "chapter_id")
	if !ok {
		return
	}
	var form service.QuizForm
	err := bindForm(c, &form)
	if err == nil {
		_, err = s.content.CreateQuiz(c.Request.Context(), principal(c), chapterID, form)
	}
	if err != nil {
		if !s.renderForm(c, err, "quiz_form.html", gin.H{
			"Title":  "Add Quiz",
			"Action": fmt.Sprintf("/add_quiz/%d", chapterID),
			"Form":   form,
		}) {
			s.handleError(c, err, "/quiz_management")
		}
		return
	}
	setFlash(c, "success", "Quiz added successfully!")
	c.Redirect(http.StatusFound, "/quiz_management")
}

func (s *Server) adminQuizEditGetHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	quiz, err := s.content.Quiz(c.Request.Context(), principal(c), id)
	if err != nil {
		s.handleError(c, err, "/quiz_management")
		return
	}
	s.render(c, http.StatusOK, "quiz_form.html", gin.H{
		"Title":   "Edit Quiz",
		"Action":  fmt.Sprintf("/edit_quiz/%d", id),
		"Chapter": &quiz.Chapter,
		"Form":    service.QuizFormFor(*quiz),
	})
}

func (s *Server) adminQuizEditPostHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var form service.QuizForm
	err := bindForm(c, &form)
	if err == nil {
		err = s.content.UpdateQuiz(c.Request.Context(), principal(c), id, form)
	}
	if err != nil {
		if !s.renderForm(c, err, "quiz_form.html", gin.H{
			"Title":  "Edit Quiz",
			"Action": fmt.Sprintf("/edit_quiz/%d", id),
			"Form":   form,
		}) {
			s.handleError(c, err, "/quiz_management")
		}
		return
	}
	setFlash(c, "success", "Quiz updated successfully!")
	c.Redirect(http.StatusFound, "/quiz_management")
}

func (s *Server) adminQuizDeleteHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := s.content.DeleteQuiz(c.Request.Context(), principal(c), id); err != nil {
		s.handleError(c, err, "/quiz_management")
		return
	}
	setFlash(c, "success", "Quiz deleted successfully!")
	c.Redirect(http.StatusFound, "/quiz_management")
}

///////////////////////////////////////////////////////
// QUESTIONS
///////////////////////////////////////////////////////

func manageQuestionsURL(quizID uint) string {
	return fmt.Sprintf("/manage_questions/%d", quizID)
}

func (s *Server) adminQuestionNewGetHandler(c *gin.Context) {
	quizID, ok := paramID(c, "quiz_id")
	if !ok {
		return
	}
	quiz, err := s.content.Quiz(c.Request.Context(), principal(c), quizID)
	if err != nil {
		s.handleError(c, err, "/quiz_management")
		return
	}
	s.render(c, http.StatusOK, "question_form.html", gin.H{
		"Title":   "Add Question",
		"Action":  fmt.Sprintf("/add_question/%d", quizID),
		"Cancel":  manageQuestionsURL(quizID),
		"Quiz":    quiz,
		"Form":    service.QuestionForm{},
		"Options": models.OptionSlots,
	})
}

func (s *Server) adminQuestionNewPostHandler(c *gin.Context) {
	quizID, ok := paramID(c, "quiz_id")
	if !ok {
		return
	}
	var form service.QuestionForm
	err := bindForm(c, &form)
	if err == nil {
		_, err = s.content.CreateQuestion(c.Request.Context(), principal(c), quizID, form)
	}
	if err != nil {
		if !s.renderForm(c, err, "question_form.html", gin.H{
			"Title":   "Add Question",
			"Action":  fmt.Sprintf("/add_question/%d", quizID),
			"Cancel":  manageQuestionsURL(quizID),
			"Form":    form,
			"Options": models.OptionSlots,
		}) {
			s.handleError(c, err, manageQuestionsURL(quizID))
		}
		return
	}
	setFlash(c, "success", "Question added successfully!")
	c.Redirect(http.StatusFound, manageQuestionsURL(quizID))
}

func (s *Server) adminQuestionEditGetHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	question, err := s.content.Question(c.Request.Context(), principal(c), id)
	if err != nil {
		s.handleError(c, err, "/quiz_management")
		return
	}
	s.render(c, http.StatusOK, "question_form.html", gin.H{
		"Title":   "Edit Question",
		"Action":  fmt.Sprintf("/edit_question/%d", id),
		"Cancel":  manageQuestionsURL(question.QuizID),
		"Quiz":    &question.Quiz,
		"Form":    service.QuestionFormFor(*question),
		"Options": models.OptionSlots,
		"Stale":   question.StaleAnswer(),
	})
}

func (s *Server) adminQuestionEditPostHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	p := principal(c)

	question, err := s.content.Question(ctx, p, id)
	if err != nil {
		s.handleError(c, err, "/quiz_management")
		return
	}
	back := manageQuestionsURL(question.QuizID)

	var form service.QuestionForm
	err = bindForm(c, &form)
	if err == nil {
		err = s.content.UpdateQuestion(ctx, p, id, form)
	}
	if err != nil {
		if !s.renderForm(c, err, "question_form.html", gin.H{
			"Title":   "Edit Question",
			"Action":  fmt.Sprintf("/edit_question/%d", id),
			"Cancel":  back,
			"Quiz":    &question.Quiz,
			"Form":    form,
			"Options": models.OptionSlots,
		}) {
			s.handleError(c, err, back)
		}
		return
	}
	setFlash(c, "success", "Question updated successfully!")
	c.Redirect(http.StatusFound, back)
}

func (s *Server) adminQuestionDeleteHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	quizID, err := s.content.DeleteQuestion(c.Request.Context(), principal(c), id)
	if err != nil {
		s.handleError(c, err, "/quiz_management")
		return
	}
	setFlash(c, "success", "Question deleted successfully!")
	c.Redirect(http.StatusFound, manageQuestionsURL(quizID))
}

///////////////////////////////////////////////////////
// USERS
///////////////////////////////////////////////////////

const usersTab = "/admin_dashboard?tab=users"

func (s *Server) adminUserEditGetHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, err := s.accounts.GetUser(c.Request.Context(), principal(c), id)
	if err != nil {
		s.handleError(c, err, usersTab)
		return
	}
	if user.IsAdmin {
		setFlash(c, "danger", "Cannot edit admin user.")
		c.Redirect(http.StatusFound, usersTab)
		return
	}
	s.render(c, http.StatusOK, "user_form.html", gin.H{
		"Title":  "Edit User",
		"Action": fmt.Sprintf("/edit_user/%d", id),
		"User":   user,
		"Form":   service.UserEditFormFor(*user),
	})
}

func (s *Server) adminUserEditPostHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	p := principal(c)

	var form service.UserEditForm
	err := bindForm(c, &form)
	if err == nil {
		err = s.accounts.AdminUpdateUser(ctx, p, id, form)
	}
	switch {
	case err == nil:
		setFlash(c, "success", "User updated successfully!")
		c.Redirect(http.StatusFound, usersTab)
	case errors.Is(err, models.ErrProtectedAccount):
		setFlash(c, "danger", "Cannot edit admin user.")
		c.Redirect(http.StatusFound, usersTab)
	default:
		if _, ok := validationFields(err); !ok {
			s.handleError(c, err, usersTab)
			return
		}
		user, getErr := s.accounts.GetUser(ctx, p, id)
		if getErr != nil {
			s.handleError(c, getErr, usersTab)
			return
		}
		form.NewPassword = ""
		s.renderForm(c, err, "user_form.html", gin.H{
			"Title":  "Edit User",
			"Action": fmt.Sprintf("/edit_user/%d", id),
			"User":   user,
			"Form":   form,
		})
	}
}

func (s *Server) adminUserDeleteHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	err := s.accounts.DeleteUser(c.Request.Context(), principal(c), id)
	switch {
	case errors.Is(err, models.ErrProtectedAccount):
		setFlash(c, "danger", "Cannot delete admin user.")
	case err != nil:
		s.handleError(c, err, usersTab)
		return
	default:
		setFlash(c, "success", "User deleted successfully!")
	}
	c.Redirect(http.StatusFound, usersTab)
}
