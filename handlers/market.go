package handlers

import (
	"net/http"

	"stocks-trader/middleware"
	"stocks-trader/quote"

	"github.com/gin-gonic/gin"
)

// QuoteForm greets the user by name above the lookup form.
func (h *Handler) QuoteForm(c *gin.Context) {
	user, err := h.Trading.User(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "quote.html", "Quote", gin.H{"user": user.Username})
}

func (h *Handler) Quote(c *gin.Context) {
	var form quoteForm
	if err := c.ShouldBind(&form); err != nil {
		h.render(c, http.StatusBadRequest, "quote.html", "Quote", gin.H{
			"error":  formError(err),
			"symbol": form.Symbol,
		})
		return
	}

	q, err := h.Quotes.Lookup(c.Request.Context(), quote.Normalize(form.Symbol))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "quoted.html", "Quoted", gin.H{"quote": q})
}
