// Package auth groups the sign-in surfaces: WebAuthn passkeys
// (passkey), Google OAuth (oauth), and the web session layer (session).
package auth
