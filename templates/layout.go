package templates

import "github.com/a-h/templ"

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.865 generate

const (
	htmxScript    = "https://unpkg.com/htmx.org@1.9.12"
	htmxSSEScript = "https://unpkg.com/htmx.org@1.9.12/dist/ext/sse.js"
	htmxWSScript  = "https://unpkg.com/htmx.org@1.9.12/dist/ext/ws.js"
	StripeScript  = "https://js.stripe.com/v3/"
)

// Layout wraps body in the HTML document shell with htmx and the toast/alert handlers.
func Layout(title string, body templ.Component, extraScripts ...string) templ.Component {
	return page(title, body, append([]string{htmxScript, htmxSSEScript, htmxWSScript}, extraScripts...))
}
