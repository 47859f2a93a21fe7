package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"billpay/web/logger"
	"billpay/web/middleware"
	"billpay/web/models"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const siteName = "BillPay"

const (
	pageHome       = "home.html"
	pageBills      = "bills.html"
	pageBill       = "bill.html"
	pageSuccess    = "success.html"
	pageMyPayBills = "mypaybills.html"
	pageLogin      = "login.html"
	pageRegister   = "register.html"
	pageWait       = "wait.html"
	pageError      = "error.html"
)

var pageNames = []string{
	pageHome, pageBills, pageBill, pageSuccess, pageMyPayBills,
	pageLogin, pageRegister, pageWait, pageError,
}

// Notice kinds; flashes are stored under the kind as key.
const (
	noticeSuccess = "success"
	noticeError   = "error"
	noticeInfo    = "info"
)

var noticeKinds = []string{noticeSuccess, noticeError, noticeInfo}

var funcs = template.FuncMap{
	"taka": func(d decimal.Decimal) string { return "৳" + d.StringFixed(2) },
	"join": strings.Join,
	"same": strings.EqualFold,
	"inc":  func(i int) int { return i + 1 },
}

type pageSet map[string]*template.Template

func parsePages() (pageSet, error) {
	set := make(pageSet, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/partials.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		set[name] = t
	}
	return set, nil
}

// StaticHandler serves the embedded stylesheet and images under /static/.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

type notice struct {
	Kind    string
	Message string
}

type metaRefresh struct {
	Seconds int
	URL     string
}

// refreshAfter rounds d up to whole seconds; browsers drop the fraction of
// a meta refresh delay.
func refreshAfter(d time.Duration, url string) *metaRefresh {
	secs := 0
	if d > 0 {
		secs = int(math.Ceil(d.Seconds()))
	}
	return &metaRefresh{Seconds: secs, URL: url}
}

// page is what the layout template renders. render fills in everything but
// Title, Notices, Refresh and Data.
type page struct {
	Title          string
	Theme          string
	Path           string
	Location       string
	Identity       *models.Identity
	Loading        bool
	GoogleClientID string
	Notices        []notice
	Refresh        *metaRefresh
	Data           any
}

func pageTitle(title string) string {
	if title == "" {
		return siteName
	}
	return title + " | " + siteName
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	t, ok := h.pages[name]
	if !ok {
		logger.Log.Error().Str("page", name).Msg("unknown page template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	p.Title = pageTitle(p.Title)
	p.Theme = themeOf(r)
	p.Path = r.URL.Path
	p.Location = r.URL.RequestURI()
	p.GoogleClientID = h.googleClientID
	if s := storeOf(r); s != nil {
		snap := s.Snapshot()
		p.Identity = snap.Identity
		p.Loading = snap.Loading
	}
	p.Notices = append(takeFlashes(w, r), p.Notices...)

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		logger.Log.Error().Err(err).Str("page", name).Msg("rendering page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	writeBody(w, &buf, name)
}

// writeBody sends a fully composed body. By now the status is out, so a
// failed write only means the client went away.
func writeBody(w io.Writer, buf *bytes.Buffer, what string) {
	if _, err := buf.WriteTo(w); err != nil {
		logger.Log.Debug().Err(err).Str("body", what).Msg("writing response")
	}
}

// flash queues a notice for the next rendered page.
func flash(w http.ResponseWriter, r *http.Request, kind, message string) {
	cs := middleware.GetCookieSession(r)
	if cs == nil {
		return
	}
	cs.AddFlash(message, kind)
	if err := cs.Save(r, w); err != nil {
		logger.Log.Error().Err(err).Msg("saving flash message")
	}
}

// redirectWith flashes message and sends the browser to location.
func redirectWith(w http.ResponseWriter, r *http.Request, kind, message, location string) {
	flash(w, r, kind, message)
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func takeFlashes(w http.ResponseWriter, r *http.Request) []notice {
	cs := middleware.GetCookieSession(r)
	if cs == nil {
		return nil
	}

	var out []notice
	for _, kind := range noticeKinds {
		for _, f := range cs.Flashes(kind) {
			if msg, ok := f.(string); ok {
				out = append(out, notice{Kind: kind, Message: msg})
			}
		}
	}
	if len(out) > 0 {
		if err := cs.Save(r, w); err != nil {
			logger.Log.Error().Err(err).Msg("clearing flash messages")
		}
	}
	return out
}

func errorNotice(message string) []notice {
	return []notice{{Kind: noticeError, Message: message}}
}
