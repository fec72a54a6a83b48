package handlers

import (
	"net/http"

	"stocks-trader/middleware"

	"github.com/gin-gonic/gin"
)

// Index shows holdings at current prices, cash and the grand total.
func (h *Handler) Index(c *gin.Context) {
	view, err := h.Trading.Portfolio(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "index.html", "Portfolio", gin.H{"portfolio": view})
}

func (h *Handler) BuyForm(c *gin.Context) {
	h.render(c, http.StatusOK, "buy.html", "Buy", gin.H{"symbol": c.Query("symbol")})
}

func (h *Handler) Buy(c *gin.Context) {
	var form tradeForm
	if err := c.ShouldBind(&form); err != nil {
		h.render(c, http.StatusBadRequest, "buy.html", "Buy", gin.H{
			"error":  formError(err),
			"symbol": form.Symbol,
			"shares": form.Shares,
		})
		return
	}

	shares, err := parseShares(form.Shares)
	if err != nil {
		h.render(c, http.StatusBadRequest, "buy.html", "Buy", gin.H{
			"error":  err.Error(),
			"symbol": form.Symbol,
			"shares": form.Shares,
		})
		return
	}

	if _, err := h.Trading.Buy(c.Request.Context(), middleware.UserID(c), form.Symbol, shares); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) SellForm(c *gin.Context) {
	h.renderSell(c, http.StatusOK, gin.H{"symbol": c.Query("symbol")})
}

func (h *Handler) renderSell(c *gin.Context, status int, data gin.H) {
	holdings, err := h.Trading.Holdings(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	data["holdings"] = holdings
	h.render(c, status, "sell.html", "Sell", data)
}

func (h *Handler) Sell(c *gin.Context) {
	var form tradeForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderSell(c, http.StatusBadRequest, gin.H{
			"error":  formError(err),
			"symbol": form.Symbol,
			"shares": form.Shares,
		})
		return
	}

	shares, err := parseShares(form.Shares)
	if err != nil {
		h.renderSell(c, http.StatusBadRequest, gin.H{
			"error":  err.Error(),
			"symbol": form.Symbol,
			"shares": form.Shares,
		})
		return
	}

	if _, err := h.Trading.Sell(c.Request.Context(), middleware.UserID(c), form.Symbol, shares); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) History(c *gin.Context) {
	txs, err := h.Trading.History(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "history.html", "History", gin.H{"transactions": txs})
}
