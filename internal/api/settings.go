package api

import (
	"embed"
	"html/template"
	"net/http"
	"net/url"

	"github.com/TimurManjosov/goplacement/internal/options"
)

//go:embed templates/settings.html
var templateFS embed.FS

var settingsTemplate = template.Must(template.ParseFS(templateFS, "templates/settings.html"))

type settingsField struct {
	Key       string
	Label     string
	Hint      string
	Multiline bool
	Value     string
	Error     string
}

type settingsPage struct {
	Saved  bool
	Errors map[string]string
	Fields []settingsField
}

var fieldMeta = map[string]settingsField{
	options.KeyConfigURL:        {Label: "Remote rules URL", Hint: "JSON document with a \"rules\" array. When it loads, the local settings below are ignored."},
	options.KeyHeadDomains:      {Label: "Head domains", Hint: "Comma-separated hostnames that get the head script."},
	options.KeyHeadScriptURL:    {Label: "Head script URL", Hint: "External script added to the head of matching pages."},
	options.KeyBodyDomains:      {Label: "Body domains", Hint: "Comma-separated hostnames that get the inline body markup."},
	options.KeyBodyScriptInline: {Label: "Body inline markup", Hint: "Printed verbatim at the end of the body of matching pages.", Multiline: true},
}

func (s *Server) handleSettingsForm(w http.ResponseWriter, r *http.Request) {
	values, err := s.currentOptions(r)
	if err != nil {
		s.log.Error().Err(err).Msg("read options")
		InternalError(w, r, "failed to read options")
		return
	}
	s.renderSettings(w, http.StatusOK, settingsPage{Saved: r.URL.Query().Get("saved") == "1"}, values)
}

// handleSettingsSave stores every form field, one per option key, and
// redirects back to the form.
func (s *Server) handleSettingsSave(w http.ResponseWriter, r *http.Request) {
	if !sameOrigin(r) {
		ForbiddenError(w, r, "cross-origin form submission")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxOptionsBody)
	if err := r.ParseForm(); err != nil {
		BadRequestError(w, r, ErrCodeBadRequest, "invalid form data")
		return
	}

	values := make(map[string]string, len(options.Keys))
	for _, k := range options.Keys {
		values[k] = r.PostForm.Get(k)
	}
	values = normalizeOptions(values)

	if fields := options.Validate(values); fields != nil {
		s.renderSettings(w, http.StatusBadRequest, settingsPage{Errors: fields}, values)
		return
	}
	if _, ok := s.saveOptions(w, r, values); !ok {
		return
	}
	http.Redirect(w, r, "/admin/settings?saved=1", http.StatusSeeOther)
}

func (s *Server) renderSettings(w http.ResponseWriter, status int, page settingsPage, values map[string]string) {
	for _, k := range options.Keys {
		f := fieldMeta[k]
		f.Key = k
		f.Value = values[k]
		f.Error = page.Errors[k]
		page.Fields = append(page.Fields, f)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.settings.Execute(w, page); err != nil {
		s.log.Error().Err(err).Msg("render settings form")
	}
}

// sameOrigin rejects form posts whose Origin (or Referer) names another host.
// Requests carrying neither header are allowed.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = r.Header.Get("Referer")
	}
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}
