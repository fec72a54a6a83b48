package handlers

import (
	"errors"
	"net/http"

	"stocks-trader/password"
	"stocks-trader/quote"
	"stocks-trader/session"
	"stocks-trader/trading"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Handler serves the web front end.
type Handler struct {
	Trading  *trading.Service
	Quotes   quote.Provider
	Sessions *session.Manager
	Logger   *logrus.Entry
}

func (h *Handler) render(c *gin.Context, status int, page, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["title"] = title
	if s := session.Default(c); s != nil {
		_, ok := s.UserID()
		data["loggedIn"] = ok
	}
	c.HTML(status, page, data)
}

// apology renders the error page with the status code and its text.
func (h *Handler) apology(c *gin.Context, status int, message string) {
	h.render(c, status, "apology.html", "Apology", gin.H{
		"code":    status,
		"status":  http.StatusText(status),
		"message": message,
	})
}

// fail maps err to a status and renders the apology page. A session whose
// user no longer exists is dropped and the browser sent back to log in.
func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, trading.ErrUserNotFound) {
		if cerr := h.Sessions.Clear(c); cerr != nil {
			h.Logger.Warnf("Clearing stale session failed: %v", cerr)
		}
		c.Redirect(http.StatusFound, "/login")
		return
	}

	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.WithField("path", c.Request.URL.Path).Errorf("Request failed: %v", err)
		_ = c.Error(err)
	}
	h.apology(c, status, message)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, trading.ErrNotEnoughCash):
		return http.StatusBadRequest, "you can't afford that"
	case errors.Is(err, trading.ErrNotEnoughShares):
		return http.StatusBadRequest, "you don't own that many shares"
	case errors.Is(err, trading.ErrUsernameTaken):
		return http.StatusBadRequest, "username is already registered"
	case errors.Is(err, trading.ErrInvalidCredentials):
		return http.StatusForbidden, "invalid username and/or password"
	case errors.Is(err, trading.ErrInvalidShares):
		return http.StatusBadRequest, "shares must be a positive integer"
	case errors.Is(err, password.ErrTooLong):
		return http.StatusBadRequest, "password is too long"
	case errors.Is(err, errPasswordMismatch):
		return http.StatusBadRequest, "passwords don't match"
	case errors.Is(err, quote.ErrNotFound):
		return http.StatusBadRequest, "invalid symbol"
	case errors.Is(err, quote.ErrRateLimited):
		return http.StatusServiceUnavailable, "quote service is busy, try again in a minute"
	case errors.Is(err, quote.ErrUnavailable):
		return http.StatusBadGateway, "quote service unavailable"
	default:
		return http.StatusInternalServerError, "something went wrong"
	}
}
