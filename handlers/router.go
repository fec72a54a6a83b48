package handlers

import (
	"fmt"
	"html/template"
	"net/http"

	"stocks-trader/middleware"
	"stocks-trader/session"

	"github.com/gin-gonic/gin"
)

// NewRouter wires every route of the site onto a fresh gin engine.
func NewRouter(h *Handler, tmpl *template.Template) *gin.Engine {
	registerValidators()

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.SetHTMLTemplate(tmpl)

	r.Use(middleware.RequestLogger(h.Logger))
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		h.Logger.WithField("path", c.Request.URL.Path).Errorf("Panic: %v", recovered)
		_ = c.Error(fmt.Errorf("panic: %v", recovered))
		h.apology(c, http.StatusInternalServerError, "something went wrong")
		c.Abort()
	}))
	r.Use(session.Sessions(h.Sessions))
	r.Use(middleware.NoCache())

	r.NoRoute(func(c *gin.Context) {
		h.apology(c, http.StatusNotFound, "page not found")
	})
	r.NoMethod(func(c *gin.Context) {
		h.apology(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.GET("/register", h.RegisterForm)
	r.POST("/register", h.Register)
	r.GET("/login", h.LoginForm)
	r.POST("/login", h.Login)
	r.GET("/logout", h.Logout)

	auth := r.Group("/")
	auth.Use(middleware.LoginRequired())
	{
		auth.GET("/", h.Index)
		auth.GET("/quote", h.QuoteForm)
		auth.POST("/quote", h.Quote)
		auth.GET("/buy", h.BuyForm)
		auth.POST("/buy", h.Buy)
		auth.GET("/sell", h.SellForm)
		auth.POST("/sell", h.Sell)
		auth.GET("/history", h.History)
	}

	return r
}
