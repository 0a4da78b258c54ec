// Package pages renders the login, signup and dashboard pages.
package pages

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"bizview/internal/views/layout"
)

func alert(message string) string {
	if message == "" {
		return ""
	}
	return `<div class="alert" role="alert">` + templ.EscapeString(message) + `</div>`
}

func field(label, name, kind, value string) string {
	return `<label for="` + name + `">` + label + `</label><input id="` + name + `" name="` + name + `" type="` + kind +
		`" value="` + templ.EscapeString(value) + `" required>`
}

// LoginPartial renders the login form on its own for HTMX swaps.
func LoginPartial(message, email string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<section id="auth" class="card"><h1>Sign in</h1>`+alert(message)+
			`<form method="post" action="/login" hx-post="/login" hx-target="#auth" hx-swap="outerHTML">`+
			field("Email", "email", "email", email)+
			field("Password", "password", "password", "")+
			`<button type="submit">Sign in</button></form><p class="muted">New here? <a href="/signup">Create an account</a></p></section>`)
		return err
	})
}

// Login renders the full login page.
func Login(message, email string) templ.Component {
	return layout.Layout("Sign in | BizView", LoginPartial(message, email))
}

// SignupPartial renders the registration form on its own for HTMX swaps.
func SignupPartial(message, name, business, email string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<section id="auth" class="card"><h1>Create your account</h1>`+alert(message)+
			`<form method="post" action="/signup" hx-post="/signup" hx-target="#auth" hx-swap="outerHTML">`+
			field("Your name", "name", "text", name)+
			field("Business name", "business_name", "text", business)+
			field("Email", "email", "email", email)+
			field("Password", "password", "password", "")+
			field("Confirm password", "confirm_password", "password", "")+
			`<button type="submit">Create account</button></form><p class="muted">Already registered? <a href="/login">Sign in</a></p></section>`)
		return err
	})
}

// Signup renders the full registration page.
func Signup(message, name, business, email string) templ.Component {
	return layout.Layout("Create account | BizView", SignupPartial(message, name, business, email))
}
