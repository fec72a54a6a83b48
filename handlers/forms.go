package handlers

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var errPasswordMismatch = errors.New("password and confirmation differ")

var (
	tickerPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.\-]{0,15}$`)
	registerOnce  sync.Once
)

// registerValidators adds the "ticker" rule to gin's validator.
func registerValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("ticker", func(fl validator.FieldLevel) bool {
				return tickerPattern.MatchString(strings.TrimSpace(fl.Field().String()))
			})
		}
	})
}

type registerForm struct {
	Username     string `form:"username" binding:"required"`
	Password     string `form:"password" binding:"required,max=72"`
	Confirmation string `form:"confirmation" binding:"required"`
}

type loginForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type quoteForm struct {
	Symbol string `form:"symbol" binding:"required,ticker"`
}

type tradeForm struct {
	Symbol string `form:"symbol" binding:"required,ticker"`
	Shares string `form:"shares" binding:"required"`
}

// parseShares accepts a positive whole number of shares.
func parseShares(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.New("shares must be a positive integer")
	}
	return n, nil
}

// formError turns a binding error into a message fit for the form.
func formError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid form submission"
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("must provide %s", field)
	case "max":
		return fmt.Sprintf("%s is too long", field)
	case "ticker":
		return "symbol may only contain letters, digits, dots and dashes"
	default:
		return fmt.Sprintf("invalid %s", field)
	}
}
