package inject

import (
	"bytes"
	"context"
	"mime"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goplacement/internal/resolver"
	"github.com/TimurManjosov/goplacement/internal/rules"
)

// Resolver is the part of the rule resolver the injector needs.
type Resolver interface {
	Resolve(ctx context.Context, host string) []resolver.Decision
}

// Injector rewrites HTML responses with the scripts resolved for their host.
type Injector struct {
	res  Resolver
	host string
	log  zerolog.Logger
}

// NewInjector creates an Injector. A non-empty siteHost overrides the
// request Host when resolving.
func NewInjector(res Resolver, siteHost string, log zerolog.Logger) *Injector {
	return &Injector{res: res, host: siteHost, log: log}
}

// Regions resolves and renders the markup for a request.
func (in *Injector) Regions(r *http.Request) Regions {
	host := in.host
	if host == "" {
		host = r.Host
	}
	return Render(in.res.Resolve(r.Context(), rules.NormalizeHost(host)))
}

// Middleware buffers downstream responses and injects scripts into
// uncompressed successful HTML. Anything else passes through unchanged.
func (in *Injector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bw := &bufferedWriter{header: w.Header(), status: http.StatusOK}
		next.ServeHTTP(bw, r)

		body := bw.body.Bytes()
		if injectable(bw.status, w.Header()) {
			body = in.rewrite(r, body)
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			// validators describe the file on disk, not the rewritten page
			w.Header().Del("Last-Modified")
			w.Header().Del("ETag")
		}
		w.WriteHeader(bw.status)
		_, _ = w.Write(body)
	})
}

// NewSiteHandler serves the static files under dir with scripts injected
// into their HTML pages.
func (in *Injector) NewSiteHandler(dir string) http.Handler {
	return in.Middleware(http.FileServer(http.Dir(dir)))
}

func (in *Injector) rewrite(r *http.Request, body []byte) []byte {
	regions := in.Regions(r)
	if regions.Empty() {
		return body
	}
	in.log.Debug().Str("host", r.Host).Str("path", r.URL.Path).Msg("injecting scripts")
	return Document(body, regions)
}

// NewProxy returns a reverse proxy to upstream that injects scripts into the
// HTML it relays. Upstream compression is refused so bodies can be rewritten,
// and the client's Host header is forwarded unchanged.
func (in *Injector) NewProxy(upstream *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
			pr.Out.Header.Set("Accept-Encoding", "identity")
		},
		ModifyResponse: func(resp *http.Response) error {
			if !injectable(resp.StatusCode, resp.Header) {
				return nil
			}
			var buf bytes.Buffer
			if _, err := buf.ReadFrom(resp.Body); err != nil {
				return err
			}
			_ = resp.Body.Close()

			body := in.rewrite(resp.Request, buf.Bytes())
			resp.Body = readCloser{bytes.NewReader(body)}
			resp.ContentLength = int64(len(body))
			resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			in.log.Error().Err(err).Str("path", r.URL.Path).Msg("upstream request failed")
			w.WriteHeader(http.StatusBadGateway)
		},
	}
}

func injectable(status int, h http.Header) bool {
	if status != http.StatusOK {
		return false
	}
	if enc := h.Get("Content-Encoding"); enc != "" && enc != "identity" {
		return false
	}
	mt, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	return err == nil && mt == "text/html"
}

type bufferedWriter struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(code int) {
	if b.wroteHeader {
		return
	}
	b.wroteHeader = true
	b.status = code
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if !b.wroteHeader {
		b.WriteHeader(http.StatusOK)
	}
	return b.body.Write(p)
}

type readCloser struct{ *bytes.Reader }

func (readCloser) Close() error { return nil }
