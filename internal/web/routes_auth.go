package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"quizmaster/internal/models"
	"quizmaster/internal/service"
)

type loginForm struct {
	Email    string `form:"email"`
	Password string `form:"password"`
	Remember bool   `form:"remember"`
}

func (s *Server) registerAuthRoutes(r *gin.Engine) {
	r.GET("/", s.indexHandler)

	r.GET("/register", s.registerGetHandler)
	r.POST("/register", s.registerPostHandler)
	r.GET("/login", s.loginGetHandler)
	r.POST("/login", s.loginPostHandler)
	r.GET("/logout", authRequired(), s.logoutHandler)

	r.GET("/profile", authRequired(), s.profileGetHandler)
	r.POST("/profile", authRequired(), s.profilePostHandler)
}

func (s *Server) indexHandler(c *gin.Context) {
	s.render(c, http.StatusOK, "index.html", gin.H{"Title": "Quiz Master"})
}

// ---------- register ----------

func (s *Server) registerGetHandler(c *gin.Context) {
	if p, ok := currentPrincipal(c); ok {
		c.Redirect(http.StatusFound, homeFor(p))
		return
	}
	s.render(c, http.StatusOK, "register.html", gin.H{"Title": "Register", "Form": service.RegisterForm{}})
}

func (s *Server) registerPostHandler(c *gin.Context) {
	var form service.RegisterForm
	_ = c.ShouldBind(&form)

	_, err := s.accounts.Register(c.Request.Context(), form)
	if fields, ok := validationFields(err); ok {
		form.Password, form.ConfirmPassword = "", ""
		s.render(c, http.StatusBadRequest, "register.html", gin.H{
			"Title":  "Register",
			"Form":   form,
			"Errors": fields,
		})
		return
	}
	if err != nil {
		s.handleError(c, err, "/register")
		return
	}

	setFlash(c, "success", "Registration successful! Please login.")
	c.Redirect(http.StatusFound, "/login")
}

// ---------- login / logout ----------

func (s *Server) loginGetHandler(c *gin.Context) {
	if p, ok := currentPrincipal(c); ok {
		c.Redirect(http.StatusFound, homeFor(p))
		return
	}
	s.render(c, http.StatusOK, "login.html", gin.H{"Title": "Login"})
}

func (s *Server) loginPostHandler(c *gin.Context) {
	var form loginForm
	_ = c.ShouldBind(&form)

	p, err := s.accounts.Login(c.Request.Context(), form.Email, form.Password)
	switch {
	case errors.Is(err, models.ErrTooManyAttempts):
		s.mx.LoginsThrottled.Inc()
		s.render(c, http.StatusTooManyRequests, "login.html", gin.H{
			"Title": "Login",
			"Email": form.Email,
			"Error": "Too many failed login attempts. Please try again later.",
		})
		return
	case errors.Is(err, models.ErrInvalidCredentials):
		s.render(c, http.StatusUnauthorized, "login.html", gin.H{
			"Title": "Login",
			"Email": form.Email,
			"Error": "Invalid credentials",
		})
		return
	case err != nil:
		s.handleError(c, err, "/login")
		return
	}

	if err := startSession(c, p, form.Remember); err != nil {
		s.serverError(c, err)
		return
	}
	setFlash(c, "success", "Login successful!")
	c.Redirect(http.StatusFound, homeFor(p))
}

func (s *Server) logoutHandler(c *gin.Context) {
	endSession(c)
	setFlash(c, "info", "You have been logged out.")
	c.Redirect(http.StatusFound, "/")
}

// ---------- profile ----------

func (s *Server) profileGetHandler(c *gin.Context) {
	p := principal(c)
	if p.IsAdmin {
		setFlash(c, "warning", "Admin profile cannot be modified.")
		c.Redirect(http.StatusFound, "/admin_dashboard")
		return
	}
	user, err := s.accounts.Profile(c.Request.Context(), p)
	if err != nil {
		s.handleError(c, err, "/user_dashboard")
		return
	}
	s.render(c, http.StatusOK, "profile.html", gin.H{
		"Title": "Profile",
		"User":  user,
		"Form":  service.ProfileFormFor(*user),
	})
}

func (s *Server) profilePostHandler(c *gin.Context) {
	p := principal(c)
	var form service.ProfileForm
	_ = c.ShouldBind(&form)

	err := s.accounts.UpdateProfile(c.Request.Context(), p, form)
	if errors.Is(err, models.ErrProtectedAccount) {
		setFlash(c, "warning", "Admin profile cannot be modified.")
		c.Redirect(http.StatusFound, "/admin_dashboard")
		return
	}
	if fields, ok := validationFields(err); ok {
		form.CurrentPassword, form.NewPassword, form.ConfirmNewPassword = "", "", ""
		s.render(c, http.StatusBadRequest, "profile.html", gin.H{
			"Title":  "Profile",
			"User":   gin.H{"Email": p.Email},
			"Form":   form,
			"Errors": fields,
		})
		return
	}
	if err != nil {
		s.handleError(c, err, "/profile")
		return
	}

	setFlash(c, "success", "Profile updated successfully!")
	c.Redirect(http.StatusFound, "/user_dashboard")
}
