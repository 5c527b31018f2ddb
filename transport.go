package memberAuth

import (
	"net/http"
	"sync"
)

type responseTransport struct {
	w http.ResponseWriter
}

// ResponseTransport returns a [Transport] that writes Set-Cookie headers to w.
func ResponseTransport(w http.ResponseWriter) Transport {
	return responseTransport{w: w}
}

func (t responseTransport) SetCookie(c *http.Cookie) {
	http.SetCookie(t.w, c)
}

// CookieRecorder is a [Transport] that keeps every cookie it receives. The
// last write per name wins in [CookieRecorder.Get].
type CookieRecorder struct {
	mu      sync.Mutex
	cookies []*http.Cookie
}

// SetCookie records c.
func (r *CookieRecorder) SetCookie(c *http.Cookie) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.cookies = append(r.cookies, &cp)
}

// Cookies returns all recorded cookies in write order.
func (r *CookieRecorder) Cookies() []*http.Cookie {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*http.Cookie, len(r.cookies))
	copy(out, r.cookies)
	return out
}

// Get returns the last cookie written with name.
func (r *CookieRecorder) Get(name string) (*http.Cookie, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.cookies) - 1; i >= 0; i-- {
		if r.cookies[i].Name == name {
			return r.cookies[i], true
		}
	}
	return nil, false
}

// Live returns the cookies a browser would keep: the last write per name,
// minus deletions.
func (r *CookieRecorder) Live() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string)
	for _, c := range r.cookies {
		if c.MaxAge < 0 {
			delete(out, c.Name)
			continue
		}
		out[c.Name] = c.Value
	}
	return out
}
