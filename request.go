package memberAuth

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// Principal describes a site user that is already authenticated by the host
// application, independent of member cookies.
type Principal struct {
	ID            string
	Administrator bool
}

// Request is the part of an HTTP request the auth flow reads. It is passed
// explicitly to [Engine.Begin].
type Request struct {
	Method    string
	Secure    bool
	Async     bool
	Cookies   map[string]string
	Form      url.Values
	Query     url.Values
	ClientIP  string
	UserAgent string
	Principal *Principal
}

// RequestFromHTTP builds a [Request] from r. The form is parsed; a parse
// error leaves Form empty. Async is set for XMLHttpRequest callers.
func RequestFromHTTP(r *http.Request) *Request {
	req := &Request{
		Method:    r.Method,
		Secure:    r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https"),
		Async:     strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest"),
		Cookies:   make(map[string]string),
		Query:     r.URL.Query(),
		ClientIP:  clientIP(r),
		UserAgent: r.UserAgent(),
	}
	for _, c := range r.Cookies() {
		if _, seen := req.Cookies[c.Name]; !seen {
			req.Cookies[c.Name] = c.Value
		}
	}
	if err := r.ParseForm(); err == nil {
		req.Form = r.PostForm
	}
	if req.Form == nil {
		req.Form = url.Values{}
	}
	return req
}

// StateChanging reports whether the request is a POST or an async call.
// Such requests are admitted within the cookie grace period.
func (r *Request) StateChanging() bool {
	if r == nil {
		return false
	}
	return r.Async || strings.EqualFold(r.Method, http.MethodPost)
}

func (r *Request) cookie(name string) (string, bool) {
	if r == nil || r.Cookies == nil {
		return "", false
	}
	v, ok := r.Cookies[name]
	return v, ok
}

func (r *Request) formValue(name string) (string, bool) {
	if r == nil || r.Form == nil {
		return "", false
	}
	vs, ok := r.Form[name]
	if !ok || len(vs) == 0 {
		return "", ok
	}
	return vs[0], true
}

func (r *Request) queryValue(name string) string {
	if r == nil || r.Query == nil {
		return ""
	}
	return r.Query.Get(name)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
