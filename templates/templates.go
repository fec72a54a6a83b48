// Package templates holds the HTML pages of the web front end.
package templates

import (
	"embed"
	"html/template"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

//go:embed html/*.html
var files embed.FS

// Funcs are the helpers available inside every page.
var Funcs = template.FuncMap{
	"usd": USD,
	"abs": Abs,
}

// Load parses all pages. Each page is addressed by its file name, e.g. "buy.html".
func Load() (*template.Template, error) {
	return template.New("").Funcs(Funcs).ParseFS(files, "html/*.html")
}

// USD formats an amount as US dollars, e.g. $1,234.50.
func USD(amount decimal.Decimal) string {
	cents := amount.Shift(2).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}

func Abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
