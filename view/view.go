// Package view renders html/template pages inside the shared layout.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/diewo77/microloan/i18n"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

//go:embed templates
var embedded embed.FS

//go:embed static
var static embed.FS

// Static serves the stylesheet and other assets under /static/.
func Static() http.Handler {
	sub, _ := fs.Sub(static, "static")
	return http.StripPrefix("/static/", http.FileServerFS(sub))
}

// Options wires the request-scoped parts of rendering.
type Options struct {
	// Dir, when set, reads templates from disk instead of the embedded copy.
	Dir string
	// Dev re-parses templates on every render.
	Dev bool
	// Lang returns the request language.
	Lang func(*http.Request) string
	// Theme returns "light" or "dark".
	Theme func(*http.Request) string
	// Can backs the "can" template func (resource, action).
	Can func(r *http.Request, resource, action string) bool
	// Defaults adds common keys (identity, navigation, flash) to data.
	Defaults func(r *http.Request, data map[string]any)
}

// Renderer is safe for concurrent use.
type Renderer struct {
	fsys   fs.FS
	opts   Options
	logger *zap.Logger

	mu    sync.RWMutex
	pages map[string]*template.Template
}

// New creates a renderer and parses every page eagerly so broken templates
// fail at startup.
func New(opts Options, logger *zap.Logger) (*Renderer, error) {
	var fsys fs.FS
	if opts.Dir != "" {
		fsys = os.DirFS(opts.Dir)
	} else {
		sub, err := fs.Sub(embedded, "templates")
		if err != nil {
			return nil, err
		}
		fsys = sub
	}
	if opts.Lang == nil {
		opts.Lang = func(*http.Request) string { return i18n.Default }
	}
	if opts.Theme == nil {
		opts.Theme = func(*http.Request) string { return "light" }
	}
	v := &Renderer{fsys: fsys, opts: opts, logger: logger, pages: map[string]*template.Template{}}
	if err := v.parseAll(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Renderer) parseAll() error {
	names, err := fs.Glob(v.fsys, "pages/*.html")
	if err != nil {
		return err
	}
	pages := make(map[string]*template.Template, len(names))
	for _, n := range names {
		t, err := v.parse(n)
		if err != nil {
			return fmt.Errorf("parse %s: %w", n, err)
		}
		pages[strings.TrimSuffix(path.Base(n), ".html")] = t
	}
	v.mu.Lock()
	v.pages = pages
	v.mu.Unlock()
	return nil
}

func (v *Renderer) parse(page string) (*template.Template, error) {
	t := template.New("layout.html").Funcs(v.funcs(nil))
	t, err := t.ParseFS(v.fsys, "layout.html", "partials/*.html")
	if err != nil {
		return nil, err
	}
	return t.ParseFS(v.fsys, page)
}

func (v *Renderer) page(name string) (*template.Template, error) {
	if v.opts.Dev {
		if err := v.parseAll(); err != nil {
			return nil, err
		}
	}
	v.mu.RLock()
	t, ok := v.pages[name]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("view: unknown page %q", name)
	}
	return t, nil
}

// Render executes page name with data and writes it with status. Output is
// buffered so a template error never leaves a half-written page.
func (v *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Year"]; !ok {
		data["Year"] = time.Now().Year()
	}
	data["Lang"] = v.opts.Lang(r)
	data["Theme"] = v.opts.Theme(r)
	data["Path"] = r.URL.Path
	if v.opts.Defaults != nil {
		v.opts.Defaults(r, data)
	}

	base, err := v.page(name)
	if err != nil {
		v.fail(w, r, err)
		return
	}
	t, err := base.Clone()
	if err != nil {
		v.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := t.Funcs(v.funcs(r)).Execute(&buf, data); err != nil {
		v.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (v *Renderer) fail(w http.ResponseWriter, r *http.Request, err error) {
	v.logger.Error("render failed", zap.String("path", r.URL.Path), zap.Error(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// funcs returns the template func map. With a nil request it returns
// placeholders used at parse time.
func (v *Renderer) funcs(r *http.Request) template.FuncMap {
	lang, theme := i18n.Default, "light"
	if r != nil {
		lang, theme = v.opts.Lang(r), v.opts.Theme(r)
	}
	return template.FuncMap{
		"t":     func(code string) string { return i18n.T(lang, code) },
		"lang":  func() string { return lang },
		"theme": func() string { return theme },
		"can": func(resource, action string) bool {
			if r == nil || v.opts.Can == nil {
				return false
			}
			return v.opts.Can(r, resource, action)
		},
		"money":   Money,
		"percent": func(f float64) string { return decimal.NewFromFloat(f).StringFixedBank(2) + "%" },
		"date":    FormatDate,
		"year":    func() int { return time.Now().Year() },
		"dict":    dict,
		"join":    strings.Join,
		"selected": func(a, b string) template.HTMLAttr {
			if a == b {
				return "selected"
			}
			return ""
		},
	}
}

// Money formats an amount with two decimals and thousands separators.
func Money(v any) string {
	var d decimal.Decimal
	switch n := v.(type) {
	case decimal.Decimal:
		d = n
	case *decimal.Decimal:
		if n == nil {
			return "0.00"
		}
		d = *n
	case float64:
		d = decimal.NewFromFloat(n)
	case int:
		d = decimal.NewFromInt(int64(n))
	case int64:
		d = decimal.NewFromInt(n)
	case string:
		p, err := decimal.NewFromString(n)
		if err != nil {
			return n
		}
		d = p
	default:
		return fmt.Sprint(v)
	}
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := "$" + b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

// FormatDate renders a time or *time.Time as a short date; nil renders empty.
func FormatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	}
	return ""
}

// dict creates a map from key-value pairs for passing to sub-templates.
// Usage: {{ template "partial" (dict "Key1" val1 "Key2" val2) }}
func dict(values ...any) map[string]any {
	if len(values)%2 != 0 {
		return nil
	}
	m := make(map[string]any, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			continue
		}
		m[key] = values[i+1]
	}
	return m
}
