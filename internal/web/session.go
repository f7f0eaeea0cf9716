package web

import (
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"quizmaster/internal/service"
)

const rememberMaxAge = 30 * 24 * 60 * 60

type Flash struct {
	Kind string // "success" | "warning" | "danger" | "info"
	Msg  string
}

func setFlash(c *gin.Context, kind, msg string) {
	sess := sessions.Default(c)
	sess.Set("flash_kind", kind)
	sess.Set("flash_msg", msg)
	_ = save(sess)
}

func popFlash(c *gin.Context) *Flash {
	sess := sessions.Default(c)
	k, _ := sess.Get("flash_kind").(string)
	m, _ := sess.Get("flash_msg").(string)
	if k == "" || m == "" {
		return nil
	}
	sess.Delete("flash_kind")
	sess.Delete("flash_msg")
	_ = save(sess)
	return &Flash{Kind: k, Msg: m}
}

// save writes the session cookie. Every save re-applies the cookie options
// so a remembered login keeps its 30 day lifetime.
func save(sess sessions.Session) error {
	opts := sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode}
	if remember, _ := sess.Get("remember").(bool); remember {
		opts.MaxAge = rememberMaxAge
	}
	sess.Options(opts)
	return sess.Save()
}

// startSession stores the principal in a fresh session. remember keeps the
// cookie for 30 days instead of the browser session.
func startSession(c *gin.Context, p service.Principal, remember bool) error {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Set("user_id", p.UserID)
	if remember {
		sess.Set("remember", true)
	}
	return save(sess)
}

func endSession(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	_ = save(sess)
}

// render adds the principal and pending flash to data and writes the template.
func (s *Server) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if p, ok := currentPrincipal(c); ok {
		data["Principal"] = &p
	}
	data["Flash"] = popFlash(c)
	c.HTML(status, name, data)
}

func homeFor(p service.Principal) string {
	if p.IsAdmin {
		return "/admin_dashboard"
	}
	return "/user_dashboard"
}

// paramID parses a positive numeric path parameter, writing 400 on failure.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.String(http.StatusBadRequest, "invalid %s", name)
		return 0, false
	}
	return uint(id), true
}
