package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const stateCookie = "oauth_state"

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	if s.svc.Drive == nil {
		s.writeError(w, r, notConfigured("drive"))
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/oauth",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSONResponse(w, http.StatusOK, map[string]string{"auth_url": s.svc.Drive.AuthURL(state)})
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if s.svc.Drive == nil {
		s.writeError(w, r, notConfigured("drive"))
		return
	}
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		s.writeError(w, r, errInvalidOAuthState)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		s.writeError(w, r, badRequest("authorization code not provided"))
		return
	}

	token, err := s.svc.Drive.Exchange(r.Context(), code)
	if err != nil {
		s.logger.Error("token exchange failed", zap.Error(err))
		writeJSONResponse(w, http.StatusBadGateway, errorResponse{Error: err.Error(), RequestID: RequestID(r.Context())})
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"access_token": token.AccessToken,
		"token_type":   token.TokenType,
		"expires_in":   int(time.Until(token.Expiry).Seconds()),
	})
}
