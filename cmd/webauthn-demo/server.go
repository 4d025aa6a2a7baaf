package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/splitsecure/go-webauthn/webauthn"
)

type server struct {
	rp  *webauthn.RelyingParty
	log *slog.Logger
}

type beginRegistrationRequest struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

type finishRegistrationRequest struct {
	UserID   string                        `json:"userId"`
	Response webauthn.RegistrationResponse `json:"response"`
}

type beginLoginRequest struct {
	UserID string `json:"userId"`
}

type loginResult struct {
	UserID string `json:"userId"`
}

type credentialResult struct {
	CredentialID webauthn.URLEncodedBase64 `json:"credentialId"`
	Label        string                    `json:"label"`
}

func (s *server) beginRegistration(w http.ResponseWriter, r *http.Request) {
	var req beginRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	opts, err := s.rp.BeginRegistration(r.Context(), webauthn.User{
		ID:          req.UserID,
		Name:        req.Username,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		s.fail(w, r, "begin registration", err)
		return
	}
	s.respond(w, opts)
}

func (s *server) finishRegistration(w http.ResponseWriter, r *http.Request) {
	var req finishRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	cred, err := s.rp.FinishRegistration(r.Context(), webauthn.User{ID: req.UserID}, &req.Response)
	if err != nil {
		s.fail(w, r, "finish registration", err)
		return
	}
	s.respond(w, credentialResult{
		CredentialID: webauthn.URLEncodedBase64(cred.ID),
		Label:        cred.Label,
	})
}

func (s *server) beginLogin(w http.ResponseWriter, r *http.Request) {
	var req beginLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	opts, err := s.rp.BeginLogin(r.Context(), req.UserID)
	if err != nil {
		s.fail(w, r, "begin login", err)
		return
	}
	s.respond(w, opts)
}

func (s *server) finishLogin(w http.ResponseWriter, r *http.Request) {
	var resp webauthn.AuthenticationResponse
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	userID, err := s.rp.FinishLogin(r.Context(), &resp)
	if err != nil {
		s.fail(w, r, "finish login", err)
		return
	}
	s.respond(w, loginResult{UserID: userID})
}

func (s *server) respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", "err", err)
	}
}

// fail logs the specific verification failure and returns a uniform
// message, so a probing client cannot learn which step rejected it.
func (s *server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.log.Warn(op+" failed", "path", r.URL.Path, "err", err)
	http.Error(w, "verification failed", http.StatusBadRequest)
}
