// Package middleware holds request-scoped preferences: language, theme and
// one-shot flash messages.
package middleware

import (
	"context"
	"net/http"
	"net/url"

	"github.com/diewo77/microloan/i18n"
)

type ctxKey string

const (
	ctxLang  ctxKey = "pref_lang"
	ctxTheme ctxKey = "pref_theme"
	ctxFlash ctxKey = "flash"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"

	prefMaxAge = 86400 * 365
)

// Prefs extracts language and theme (query > cookie > header) and stores
// them in context. Query-provided values are persisted in cookies. It also
// consumes the flash cookie so a message shows exactly once.
func Prefs(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := ""
		if c, err := r.Cookie("lang"); err == nil {
			lang = c.Value
		}
		if ql := r.URL.Query().Get("lang"); i18n.Supported(ql) {
			lang = ql
			http.SetCookie(w, &http.Cookie{Name: "lang", Value: lang, Path: "/", MaxAge: prefMaxAge, SameSite: http.SameSiteLaxMode})
		}
		if !i18n.Supported(lang) {
			lang = i18n.DetectLanguage(r.Header.Get("Accept-Language"))
		}

		theme := ThemeLight
		if c, err := r.Cookie("theme"); err == nil && c.Value == ThemeDark {
			theme = ThemeDark
		}

		ctx := context.WithValue(r.Context(), ctxLang, lang)
		ctx = context.WithValue(ctx, ctxTheme, theme)
		if c, err := r.Cookie("flash"); err == nil && c.Value != "" {
			if code, err := url.QueryUnescape(c.Value); err == nil {
				ctx = context.WithValue(ctx, ctxFlash, code)
			}
			http.SetCookie(w, &http.Cookie{Name: "flash", Value: "", Path: "/", MaxAge: -1})
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LangFrom returns language preference from context or fallback.
func LangFrom(r *http.Request) string {
	if v, ok := r.Context().Value(ctxLang).(string); ok && v != "" {
		return v
	}
	return i18n.Default
}

// ThemeFrom returns theme preference from context or fallback.
func ThemeFrom(r *http.Request) string {
	if v, ok := r.Context().Value(ctxTheme).(string); ok && v != "" {
		return v
	}
	return ThemeLight
}

// ToggleTheme flips the persisted theme and returns the new value.
func ToggleTheme(w http.ResponseWriter, r *http.Request) string {
	next := ThemeDark
	if ThemeFrom(r) == ThemeDark {
		next = ThemeLight
	}
	http.SetCookie(w, &http.Cookie{Name: "theme", Value: next, Path: "/", MaxAge: prefMaxAge, SameSite: http.SameSiteLaxMode})
	return next
}

// Flash stores a translation code shown on the next rendered page.
func Flash(w http.ResponseWriter, code string) {
	http.SetCookie(w, &http.Cookie{Name: "flash", Value: url.QueryEscape(code), Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// FlashFrom returns the flash code consumed by Prefs for this request.
func FlashFrom(r *http.Request) string {
	v, _ := r.Context().Value(ctxFlash).(string)
	return v
}
