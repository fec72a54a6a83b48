package handlers

import (
	"errors"
	"net/http"

	"stocks-trader/password"

	"github.com/gin-gonic/gin"
)

func (h *Handler) RegisterForm(c *gin.Context) {
	h.render(c, http.StatusOK, "register.html", "Register", nil)
}

// Register creates the account and logs the new user in.
func (h *Handler) Register(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		h.render(c, http.StatusBadRequest, "register.html", "Register", gin.H{
			"error":    formError(err),
			"username": form.Username,
		})
		return
	}

	if form.Password != form.Confirmation {
		h.fail(c, errPasswordMismatch)
		return
	}

	user, err := h.Trading.Register(c.Request.Context(), form.Username, form.Password)
	if errors.Is(err, password.ErrTooLong) {
		h.render(c, http.StatusBadRequest, "register.html", "Register", gin.H{
			"error":    "password is too long",
			"username": form.Username,
		})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	if _, err := h.Sessions.Start(c, user.ID); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) LoginForm(c *gin.Context) {
	if err := h.Sessions.Clear(c); err != nil {
		h.Logger.Warnf("Clearing session failed: %v", err)
	}
	h.render(c, http.StatusOK, "login.html", "Log In", nil)
}

// Login clears any existing session, checks the credentials and rebuilds the
// user's holdings from the ledger before starting the new session.
func (h *Handler) Login(c *gin.Context) {
	if err := h.Sessions.Clear(c); err != nil {
		h.Logger.Warnf("Clearing session failed: %v", err)
	}

	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		h.render(c, http.StatusBadRequest, "login.html", "Log In", gin.H{
			"error":    formError(err),
			"username": form.Username,
		})
		return
	}

	ctx := c.Request.Context()
	user, err := h.Trading.Authenticate(ctx, form.Username, form.Password)
	if err != nil {
		status, message := errorStatus(err)
		if status >= http.StatusInternalServerError {
			h.fail(c, err)
			return
		}
		h.render(c, status, "login.html", "Log In", gin.H{
			"error":    message,
			"username": form.Username,
		})
		return
	}

	if err := h.Trading.RebuildHoldings(ctx, user.ID); err != nil {
		h.fail(c, err)
		return
	}

	if _, err := h.Sessions.Start(c, user.ID); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.Sessions.Clear(c); err != nil {
		h.Logger.Warnf("Clearing session failed: %v", err)
	}
	c.Redirect(http.StatusFound, "/login")
}
