package registry

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
)

const xsrfCookieName = "XSRF-TOKEN"

// CookieStore is the cookie jar of a single session, it must be able to list everything it
// holds (to find the xsrf token) and to forget everything (when the session closes).
type CookieStore interface {
	http.CookieJar
	All() []*http.Cookie
	Clear()
}

type memoryCookieStore struct {
	mutex sync.Mutex
	jar   *cookiejar.Jar
	// every cookie held, keyed by name, domain and path. cookiejar only lists the cookies
	// that would be sent to a given url, so it cannot see cookies scoped to other paths.
	stored map[cookieKey]*http.Cookie
	order  []cookieKey
}

type cookieKey struct {
	name   string
	domain string
	path   string
}

// NewCookieStore creates an in-memory CookieStore backed by net/http/cookiejar.
func NewCookieStore() CookieStore {
	s := &memoryCookieStore{}
	s.Clear()
	return s
}

func (s *memoryCookieStore) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.jar.SetCookies(u, cookies)

	now := time.Now()
	for _, cookie := range cookies {
		key := cookieKey{
			name:   cookie.Name,
			domain: strings.TrimPrefix(strings.ToLower(cookie.Domain), "."),
			path:   cookie.Path,
		}
		host := strings.ToLower(u.Hostname())
		if key.domain == "" {
			key.domain = host
		}
		// the jar drops cookies for domains the host does not belong to
		if key.domain != host && !strings.HasSuffix(host, "."+key.domain) {
			continue
		}
		if key.path == "" || !strings.HasPrefix(key.path, "/") {
			key.path = defaultCookiePath(u.Path)
		}

		expired := cookie.MaxAge < 0 || (!cookie.Expires.IsZero() && !cookie.Expires.After(now))
		if expired {
			s.remove(key)
			continue
		}

		stored := *cookie
		stored.Domain = key.domain
		stored.Path = key.path
		if _, ok := s.stored[key]; !ok {
			s.order = append(s.order, key)
		}
		s.stored[key] = &stored
	}
}

func (s *memoryCookieStore) remove(key cookieKey) {
	if _, ok := s.stored[key]; !ok {
		return
	}
	delete(s.stored, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// defaultCookiePath is the directory of the request path (RFC 6265 section 5.1.4).
func defaultCookiePath(requestPath string) string {
	if requestPath == "" || requestPath[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(requestPath, "/")
	if i == 0 {
		return "/"
	}
	return requestPath[:i]
}

func (s *memoryCookieStore) Cookies(u *url.URL) []*http.Cookie {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.jar.Cookies(u)
}

// All returns every cookie held whatever its domain or path, expired cookies excluded.
func (s *memoryCookieStore) All() []*http.Cookie {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	var out []*http.Cookie
	for _, key := range s.order {
		cookie := s.stored[key]
		if !cookie.Expires.IsZero() && !cookie.Expires.After(now) {
			continue
		}
		copied := *cookie
		out = append(out, &copied)
	}
	return out
}

func (s *memoryCookieStore) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// cookiejar.New only fails when given invalid options
	jar, _ := cookiejar.New(nil)
	s.jar = jar
	s.stored = map[cookieKey]*http.Cookie{}
	s.order = nil
}

// xsrfToken finds the XSRF-TOKEN cookie and returns its url-decoded value.
func xsrfToken(cookies []*http.Cookie) (string, bool) {
	for _, cookie := range cookies {
		if cookie.Name != xsrfCookieName {
			continue
		}
		value, err := url.QueryUnescape(cookie.Value)
		if err != nil {
			value = cookie.Value
		}
		if value == "" {
			return "", false
		}
		return value, true
	}
	return "", false
}
