// Package pages renders the HTML views of the import server as templ
// components.
package pages

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

const styles = `body{font-family:system-ui,sans-serif;margin:2rem auto;max-width:60rem;color:#222}
table{border-collapse:collapse;width:100%}th,td{padding:.35rem .6rem;border-bottom:1px solid #ddd;text-align:left}
.failed{color:#b00020}.finished{color:#1b5e20}progress{width:100%}code{background:#f4f4f4;padding:0 .2rem}`

// printer writes formatted output and keeps the first error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// esc escapes s for use in HTML text and attribute values.
func esc(s string) string {
	return templ.EscapeString(s)
}

// Layout wraps body in the page chrome.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.printf(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>%s</title><style>%s</style></head><body>`,
			esc(title), styles)
		p.printf(`<header><h1><a href="/">Geocache import</a></h1></header><main>`)
		if p.err != nil {
			return p.err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		p.printf(`</main></body></html>`)
		return p.err
	})
}
