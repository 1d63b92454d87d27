package web

import (
	"net/http"

	"github.com/worldrepublic/republic/internal/auth/session"
	"github.com/worldrepublic/republic/internal/platform/requestctx"
)

// withSession resolves the session cookie, attaches the citizen identity
// to the request context, and refreshes the cookie when the adapter
// renewed the session. Requests without a valid session pass through
// anonymous.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := session.ReadCookie(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		sess, user, err := h.sessions.Resolve(r.Context(), token)
		if err != nil {
			// Expired or unknown; drop the stale cookie.
			session.ClearCookie(w, h.cookies)
			next.ServeHTTP(w, r)
			return
		}
		session.WriteCookie(w, h.cookies, sess.Token, sess.Expires)
		ctx := requestctx.WithIdentity(r.Context(), requestctx.Identity{
			UserID: user.ID,
			UUID:   user.UUID,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireSession rejects anonymous requests with 401.
func requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requestctx.IdentityFromContext(r.Context()); !ok {
			respondError(w, http.StatusUnauthorized, "not signed in")
			return
		}
		next(w, r)
	}
}
