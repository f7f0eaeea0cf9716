package web

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"quizmaster/internal/config"
	"quizmaster/internal/logger"
	"quizmaster/internal/metrics"
	"quizmaster/internal/models"
	"quizmaster/internal/store"
	"quizmaster/internal/throttle"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin123"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	t   *testing.T
	db  *gorm.DB
	srv *Server
	ts  *httptest.Server
}

func newTestEnv(t *testing.T, tweak func(*Options)) *testEnv {
	t.Helper()

	db, err := store.Open(config.Database{Type: "sqlite", URL: filepath.Join(t.TempDir(), "web.db")}, nil)
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))
	require.NoError(t, store.SeedAdmin(context.Background(), db,
		config.Admin{Email: adminEmail, Password: adminPassword}, logger.Discard().Logger))

	opts := Options{
		SecretKey: "test-secret",
		Logger:    logger.Discard(),
		Metrics:   metrics.New(),
	}
	if tweak != nil {
		tweak(&opts)
	}
	srv, err := New(db, opts)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return &testEnv{t: t, db: db, srv: srv, ts: ts}
}

// client is a browser stand-in that keeps cookies and does not follow redirects.
type client struct {
	env *testEnv
	hc  *http.Client
}

func (e *testEnv) client() *client {
	jar, err := cookiejar.New(nil)
	require.NoError(e.t, err)
	return &client{env: e, hc: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

type response struct {
	status   int
	location string
	header   http.Header
	body     string
}

func (c *client) do(req *http.Request) response {
	t := c.env.t
	t.Helper()
	resp, err := c.hc.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{
		status:   resp.StatusCode,
		location: resp.Header.Get("Location"),
		header:   resp.Header,
		body:     string(body),
	}
}

func (c *client) get(path string) response {
	c.env.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.env.ts.URL+path, nil)
	require.NoError(c.env.t, err)
	return c.do(req)
}

func (c *client) post(path string, form url.Values) response {
	c.env.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.env.ts.URL+path, strings.NewReader(form.Encode()))
	require.NoError(c.env.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *client) login(email, password string) response {
	c.env.t.Helper()
	return c.post("/login", url.Values{"email": {email}, "password": {password}})
}

func (c *client) register(email string) {
	t := c.env.t
	t.Helper()
	resp := c.post("/register", url.Values{
		"email":            {email},
		"password":         {"password123"},
		"confirm_password": {"password123"},
		"full_name":        {"Jane Doe"},
		"qualification":    {"BSc"},
		"dob":              {"1995-06-01"},
	})
	require.Equal(t, http.StatusFound, resp.status, resp.body)
	require.Equal(t, "/login", resp.location)
}

// seedQuiz adds Maths > Algebra > "Basics" with a single question whose
// answer is option2.
func (e *testEnv) seedQuiz() models.Quiz {
	t := e.t
	t.Helper()
	subject := models.Subject{Name: "Maths"}
	require.NoError(t, e.db.Create(&subject).Error)
	chapter := models.Chapter{SubjectID: subject.ID, Name: "Algebra"}
	require.NoError(t, e.db.Create(&chapter).Error)
	quiz := models.Quiz{ChapterID: chapter.ID, TimeDuration: 10, Remarks: "Basics"}
	require.NoError(t, e.db.Create(&quiz).Error)
	q := models.Question{
		QuizID:        quiz.ID,
		Statement:     "What is two plus two?",
		Option1:       "3",
		Option2:       "4",
		Option3:       "5",
		Option4:       "22",
		CorrectOption: "4",
	}
	require.NoError(t, e.db.Create(&q).Error)
	quiz.Questions = []models.Question{q}
	return quiz
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client()

	resp := c.get("/health")
	assert.Equal(t, http.StatusOK, resp.status)
	assert.JSONEq(t, `{"status":"ok"}`, resp.body)
	assert.NotEmpty(t, resp.header.Get("X-Request-ID"))

	resp = c.get("/metrics")
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, "quizmaster_http_requests_total")
}

func TestLandingAndNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client()

	resp := c.get("/")
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, "Create an account")

	resp = c.get("/no/such/page")
	assert.Equal(t, http.StatusNotFound, resp.status)
	assert.Contains(t, resp.body, "does not exist")
}

func TestProtectedPagesRedirectToLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client()

	for _, path := range []string{"/admin_dashboard", "/user_dashboard", "/user/summary/download", "/profile"} {
		t.Run(path, func(t *testing.T) {
			resp := c.get(path)
			assert.Equal(t, http.StatusFound, resp.status)
			assert.Equal(t, "/login", resp.location)
		})
	}

	resp := c.post("/delete_subject/1", nil)
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/login", resp.location)

	resp = c.get("/login")
	assert.Contains(t, resp.body, msgLoginRequired)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("bad credentials", func(t *testing.T) {
		resp := env.client().login(adminEmail, "nope")
		assert.Equal(t, http.StatusUnauthorized, resp.status)
		assert.Contains(t, resp.body, "Invalid credentials")
	})

	t.Run("admin lands on the admin dashboard", func(t *testing.T) {
		c := env.client()
		resp := c.login("ADMIN@example.com", adminPassword)
		require.Equal(t, http.StatusFound, resp.status)
		assert.Equal(t, "/admin_dashboard", resp.location)

		resp = c.get("/admin_dashboard")
		assert.Equal(t, http.StatusOK, resp.status)
		assert.Contains(t, resp.body, "Login successful!")

		resp = c.get("/login")
		assert.Equal(t, http.StatusFound, resp.status, "already logged in")
	})

	t.Run("logout clears the session", func(t *testing.T) {
		c := env.client()
		c.login(adminEmail, adminPassword)
		resp := c.get("/logout")
		assert.Equal(t, http.StatusFound, resp.status)
		assert.Equal(t, http.StatusFound, c.get("/admin_dashboard").status)
	})
}

func TestRememberMeSurvivesFlash(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client()

	resp := c.post("/login", url.Values{
		"email":    {adminEmail},
		"password": {adminPassword},
		"remember": {"true"},
	})
	require.Equal(t, http.StatusFound, resp.status)
	assert.Contains(t, resp.header.Get("Set-Cookie"), "Max-Age=2592000")

	// Rendering the dashboard consumes the flash and rewrites the cookie.
	resp = c.get("/admin_dashboard")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.header.Get("Set-Cookie"), "Max-Age=2592000")
}

func TestLoginThrottle(t *testing.T) {
	mx := metrics.New()
	env := newTestEnv(t, func(o *Options) {
		o.Limiter = throttle.NewMemoryLimiter(2, time.Minute)
		o.Metrics = mx
	})
	c := env.client()

	assert.Equal(t, http.StatusUnauthorized, c.login(adminEmail, "x").status)
	assert.Equal(t, http.StatusUnauthorized, c.login(adminEmail, "y").status)

	resp := c.login(adminEmail, adminPassword)
	assert.Equal(t, http.StatusTooManyRequests, resp.status)
	assert.Contains(t, resp.body, "Too many failed login attempts")
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client()

	resp := c.post("/register", url.Values{
		"email":            {"not-an-email"},
		"password":         {"short"},
		"confirm_password": {"other"},
		"full_name":        {"J"},
		"qualification":    {"BSc"},
		"dob":              {"1995-06-01"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Contains(t, resp.body, "Invalid email address.")
	assert.Contains(t, resp.body, "Passwords must match.")

	c.register("jane@example.com")
	resp = c.post("/register", url.Values{
		"email":            {"jane@example.com"},
		"password":         {"password123"},
		"confirm_password": {"password123"},
		"full_name":        {"Jane Again"},
		"qualification":    {"BSc"},
		"dob":              {"1995-06-01"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Contains(t, resp.body, "already registered")
}

func TestAdminContentFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client()
	c.login(adminEmail, adminPassword)

	resp := c.post("/add_subject", url.Values{"name": {""}})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Contains(t, resp.body, "This field is required.")

	resp = c.post("/add_subject", url.Values{"name": {"Chemistry"}, "description": {"Atoms"}})
	require.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/admin_dashboard", resp.location)

	var subject models.Subject
	require.NoError(t, env.db.Where("name = ?", "Chemistry").First(&subject).Error)
	assert.Contains(t, c.get("/admin_dashboard").body, "Subject added successfully!")

	resp = c.post("/add_chapter/"+itoa(subject.ID), url.Values{"name": {"Bonds"}})
	require.Equal(t, http.StatusFound, resp.status)
	var chapter models.Chapter
	require.NoError(t, env.db.Where("subject_id = ?", subject.ID).First(&chapter).Error)

	resp = c.post("/add_quiz/"+itoa(chapter.ID), url.Values{"time_duration": {"abc"}})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Contains(t, resp.body, "Invalid form submission.")

	resp = c.post("/add_quiz/"+itoa(chapter.ID), url.Values{"time_duration": {"15"}, "remarks": {"Bond types"}})
	require.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/quiz_management", resp.location)
	var quiz models.Quiz
	require.NoError(t, env.db.Where("chapter_id = ?", chapter.ID).First(&quiz).Error)

	resp = c.post("/add_question/"+itoa(quiz.ID), url.Values{
		"question_statement": {"Which bond shares electrons?"},
		"option1":            {"Ionic"},
		"option2":            {"Covalent"},
		"option3":            {"Metallic"},
		"option4":            {"Hydrogen"},
		"correct_option":     {"option2"},
	})
	require.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/manage_questions/"+itoa(quiz.ID), resp.location)

	var q models.Question
	require.NoError(t, env.db.Where("quiz_id = ?", quiz.ID).First(&q).Error)
	assert.Equal(t, "Covalent", q.CorrectOption)

	page := c.get("/manage_questions/" + itoa(quiz.ID))
	assert.Equal(t, http.StatusOK, page.status)
	assert.Contains(t, page.body, "Which bond shares electrons?")

	assert.Equal(t, http.StatusNotFound, c.get("/edit_subject/9999").status)
	assert.Equal(t, http.StatusBadRequest, c.get("/edit_subject/abc").status)

	resp = c.post("/delete_subject/"+itoa(subject.ID), nil)
	require.Equal(t, http.StatusFound, resp.status)
	var n int64
	env.db.Model(&models.Question{}).Count(&n)
	assert.Zero(t, n, "cascade removes questions")
}

func TestAdminCannotTouchAdminAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client()
	c.login(adminEmail, adminPassword)

	var admin models.User
	require.NoError(t, env.db.Where("email = ?", adminEmail).First(&admin).Error)

	resp := c.post("/delete_user/"+itoa(admin.ID), nil)
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Contains(t, c.get("/admin_dashboard?tab=users").body, "Cannot delete admin user.")

	resp = c.get("/edit_user/" + itoa(admin.ID))
	assert.Equal(t, http.StatusFound, resp.status)
}

func TestEditUserRejectedFormForMissingUser(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client()
	c.login(adminEmail, adminPassword)
	c.register("jane@example.com")

	var jane models.User
	require.NoError(t, env.db.Where("email = ?", "jane@example.com").First(&jane).Error)

	// A multipart content type without a boundary fails form binding.
	postBroken := func(id uint) response {
		req, err := http.NewRequest(http.MethodPost, env.ts.URL+"/edit_user/"+itoa(id), strings.NewReader("x"))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "multipart/form-data")
		return c.do(req)
	}

	resp := postBroken(jane.ID)
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Contains(t, resp.body, "Invalid form submission.")

	require.NoError(t, env.db.Delete(&jane).Error)
	resp = postBroken(jane.ID)
	assert.Equal(t, http.StatusNotFound, resp.status)
}

func TestUserQuizFlow(t *testing.T) {
	mx := metrics.New()
	env := newTestEnv(t, func(o *Options) { o.Metrics = mx })
	quiz := env.seedQuiz()
	question := quiz.Questions[0]

	c := env.client()
	c.register("jane@example.com")
	resp := c.login("jane@example.com", "password123")
	require.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/user_dashboard", resp.location)

	dash := c.get("/user_dashboard")
	assert.Equal(t, http.StatusOK, dash.status)
	assert.Contains(t, dash.body, "Basics")

	resp = c.get("/admin_dashboard")
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/", resp.location)
	assert.Contains(t, c.get("/").body, msgAdminOnly)

	page := c.get("/attempt_quiz/" + itoa(quiz.ID))
	assert.Equal(t, http.StatusOK, page.status)
	assert.Contains(t, page.body, "What is two plus two?")

	resp = c.post("/attempt_quiz/"+itoa(quiz.ID), url.Values{
		"question_" + itoa(question.ID): {"option2"},
	})
	require.Equal(t, http.StatusFound, resp.status)
	assert.Contains(t, c.get("/user_dashboard").body, "Your score: 1/1 (100.0%)")

	scores := c.get("/user/scores")
	assert.Equal(t, http.StatusOK, scores.status)
	assert.Contains(t, scores.body, "1/1")

	summary := c.get("/user/summary")
	assert.Equal(t, http.StatusOK, summary.status)
	assert.Contains(t, summary.body, "100.0%")

	pdf := c.get("/user/summary/download")
	assert.Equal(t, http.StatusOK, pdf.status)
	assert.Equal(t, "application/pdf", pdf.header.Get("Content-Type"))
	assert.Contains(t, pdf.header.Get("Content-Disposition"), "quiz_summary_")
	assert.True(t, strings.HasPrefix(pdf.body, "%PDF"))

	var attempts int64
	env.db.Model(&models.QuizAttempt{}).Count(&attempts)
	assert.Equal(t, int64(1), attempts)
	assert.Contains(t, c.get("/metrics").body, "quizmaster_quiz_attempts_submitted_total 1")
}

func TestAdminCannotAttemptQuiz(t *testing.T) {
	env := newTestEnv(t, nil)
	quiz := env.seedQuiz()
	c := env.client()
	c.login(adminEmail, adminPassword)

	resp := c.get("/attempt_quiz/" + itoa(quiz.ID))
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/admin_dashboard", resp.location)
	assert.Contains(t, c.get("/admin_dashboard").body, "Admins cannot attempt quizzes.")
}

func TestPanicRendersServerError(t *testing.T) {
	for _, details := range []bool{false, true} {
		env := newTestEnv(t, func(o *Options) { o.ShowErrorDetails = details })
		env.srv.engine.GET("/boom", func(*gin.Context) { panic("kaboom") })

		resp := env.client().get("/boom")
		assert.Equal(t, http.StatusInternalServerError, resp.status)
		if details {
			assert.Contains(t, resp.body, "kaboom")
		} else {
			assert.Contains(t, resp.body, "Something went wrong")
			assert.NotContains(t, resp.body, "kaboom")
		}
	}
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
