package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"juicebox/internal/hub"
)

type Handlers struct {
	hub *hub.Hub
	log *zap.SugaredLogger
}

func NewHandlers(h *hub.Hub, log *zap.SugaredLogger) *Handlers {
	return &Handlers{hub: h, log: log}
}

type sessionAuth struct {
	SessionID     int64  `json:"SessionId"`
	HostSecretKey string `json:"HostSecretKey"`
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	reply := make(chan *hub.Session, 1)
	h.hub.Inbox() <- hub.CreateSession{Reply: reply}
	s := <-reply

	writeJSON(w, http.StatusCreated, map[string]any{
		"SessionId":     s.ID,
		"HostSecretKey": s.Secret,
		"JoinPassword":  s.JoinCode,
	})
}

func (h *Handlers) Negotiate(w http.ResponseWriter, r *http.Request) {
	s := h.authorize(w, r)
	if s == nil {
		return
	}

	scheme := "ws"
	if r.TLS != nil {
		scheme = "wss"
	}
	endpoint := fmt.Sprintf("%s://%s/api/sessions/connect?session=%d&secret=%s",
		scheme, r.Host, s.ID, s.Secret)

	writeJSON(w, http.StatusOK, map[string]string{"Endpoint": endpoint})
}

func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	s := h.authorize(w, r)
	if s == nil {
		return
	}

	reply := make(chan []string, 1)
	s.Inbox() <- hub.MemberNames{Reply: reply}

	writeJSON(w, http.StatusOK, map[string][]string{"MemberNames": <-reply})
}

func (h *Handlers) Destroy(w http.ResponseWriter, r *http.Request) {
	var auth sessionAuth
	if err := json.NewDecoder(r.Body).Decode(&auth); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	reply := make(chan bool, 1)
	h.hub.Inbox() <- hub.DestroySession{SessionID: auth.SessionID, Secret: auth.HostSecretKey, Reply: reply}
	if !<-reply {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// authorize resolves the session from the request body, answering 404
// when the id/secret pair is unknown. That 404 is what tells a host its
// session is gone.
func (h *Handlers) authorize(w http.ResponseWriter, r *http.Request) *hub.Session {
	var auth sessionAuth
	if err := json.NewDecoder(r.Body).Decode(&auth); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return nil
	}

	reply := make(chan *hub.Session, 1)
	h.hub.Inbox() <- hub.Authorize{SessionID: auth.SessionID, Secret: auth.HostSecretKey, Reply: reply}
	s := <-reply
	if s == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
