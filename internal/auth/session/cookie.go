package session

import (
	"net/http"
	"strings"
	"time"
)

// Cookie names. The __Secure- prefix binds the cookie to HTTPS origins,
// so it is only used when the deployment actually serves HTTPS.
const (
	CookieName       = "wr_session"
	SecureCookieName = "__Secure-wr_session"
)

// CookiePolicy decides which cookie variant a deployment uses.
type CookiePolicy struct {
	Secure bool
}

func (p CookiePolicy) name() string {
	if p.Secure {
		return SecureCookieName
	}
	return CookieName
}

// ReadCookie returns the trimmed session token when present. Both cookie
// variants are checked so a deployment can switch policies without
// logging everyone out.
func ReadCookie(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, name := range []string{SecureCookieName, CookieName} {
		cookie, err := r.Cookie(name)
		if err != nil || cookie == nil {
			continue
		}
		if value := strings.TrimSpace(cookie.Value); value != "" {
			return value, true
		}
	}
	return "", false
}

// WriteCookie sets the session cookie.
func WriteCookie(w http.ResponseWriter, policy CookiePolicy, token string, expires time.Time) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     policy.name(),
		Value:    strings.TrimSpace(token),
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   policy.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func ClearCookie(w http.ResponseWriter, policy CookiePolicy) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     policy.name(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   policy.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
