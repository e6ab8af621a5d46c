package controllers

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"gitea.com/go-chi/session"

	"github.com/blogem/planning-tools/authenticator"
	"github.com/blogem/planning-tools/models"
	"github.com/blogem/planning-tools/repositories"
)

// AuthController handles the OpenID Connect login flow. Authenticated users
// are upserted so history entries can attribute mutations to them.
type AuthController struct {
	users repositories.UserRepository
}

// NewAuthController creates a new auth controller
func NewAuthController(users repositories.UserRepository) *AuthController {
	return &AuthController{users: users}
}

// Login initiates the authentication process
func (ac *AuthController) Login(auth authenticator.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := generateRandomState()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		// Save the state in the session to validate in callback
		sess := session.GetSession(r)
		sess.Set("state", state)

		http.Redirect(w, r, auth.GetAuthURL(state), http.StatusTemporaryRedirect)
	}
}

// Callback handles the callback from the identity provider
func (ac *AuthController) Callback(auth authenticator.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := session.GetSession(r)

		// Verify state
		storedState := sess.Get("state")
		if storedState == nil {
			http.Error(w, "State not found in session", http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("state") != storedState.(string) {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		// Exchange the code for a token
		token, err := auth.ExchangeCode(r.Context(), r.URL.Query().Get("code"))
		if err != nil {
			http.Error(w, "Failed to exchange authorization code for a token: "+err.Error(), http.StatusUnauthorized)
			return
		}

		claims, err := auth.GetClaims(r.Context(), token)
		if err != nil {
			http.Error(w, "Failed to verify ID Token: "+err.Error(), http.StatusInternalServerError)
			return
		}

		user := &models.User{
			ID:    claims.Subject(),
			Email: claims.Email(),
			Name:  claims.Name(),
		}
		if err := ac.users.Upsert(r.Context(), user); err != nil {
			http.Error(w, "Failed to store user: "+err.Error(), http.StatusInternalServerError)
			return
		}

		sess.Set("user_id", user.ID)
		sess.Set("user_name", user.DisplayName())
		sess.Delete("state")

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// Logout clears the session
func (ac *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	sess := session.GetSession(r)
	sess.Delete("user_id")
	sess.Delete("user_name")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// generateRandomState generates a random state value for CSRF protection
func generateRandomState() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
