package server

import (
	"net/http"

	"github.com/jrsteele09/school-console/sessions"
)

type magicLinkRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

type signInResponse struct {
	Token   string      `json:"token"`
	Session sessionView `json:"session"`
}

// MagicLinkHandler sends a one-time sign-in link. The response does not say
// whether the address has an account.
func (s *Server) MagicLinkHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req magicLinkRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.links.RequestLink(r.Context(), req.Email); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
	}
}

// VerifyHandler redeems a magic link and signs the console session in.
func (s *Server) VerifyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		id, err := s.links.Redeem(r.Context(), req.Email, req.Token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		cs, err := s.signInConsole(w, r, id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, signInResponse{Token: id.Token, Session: newSessionView(cs.machine.Snapshot())})
	}
}

func (s *Server) OIDCLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, err := s.oidc.AuthCodeURL()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		http.Redirect(w, r, url, http.StatusFound)
	}
}

// OIDCCallbackHandler completes an external sign in and sends the browser back
// to the console.
func (s *Server) OIDCCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if errParam := r.FormValue("error"); errParam != "" {
			s.log.Warn().Str("error", errParam).Str("description", r.FormValue("error_description")).Msg("oidc authorization failed")
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "authorization failed: " + errParam})
			return
		}
		id, err := s.oidc.Exchange(r.Context(), r.FormValue("state"), r.FormValue("code"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if _, err := s.signInConsole(w, r, id); err != nil {
			s.writeError(w, r, err)
			return
		}
		http.Redirect(w, r, s.config.GetBaseURL()+"/", http.StatusSeeOther)
	}
}

// LogoutHandler signs the console session out and revokes its session token,
// so neither the token cookie nor a bearer header can sign back in.
// Outstanding operations of the session are discarded.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if raw, ok := bearerToken(r); ok {
			s.revoke(raw)
		}
		if c, err := r.Cookie(consoleTokenCookie); err == nil {
			s.revoke(c.Value)
		}
		if cs, ok := s.existingConsole(r); ok {
			if id := cs.hub.CurrentIdentity(); id != nil {
				s.revoke(id.Token)
			}
			if err := cs.hub.SignOut(r.Context()); err != nil {
				s.writeError(w, r, err)
				return
			}
			s.consoles.remove(cs.id)
		}
		s.clearCookie(w, r, consoleSessionCookie)
		s.clearCookie(w, r, consoleTokenCookie)
		writeJSON(w, http.StatusOK, sessionView{State: sessions.Unauthenticated})
	}
}
