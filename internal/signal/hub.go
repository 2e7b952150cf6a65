package signal

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
)

// errorBody mirrors the operator API error envelope.
type errorBody struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Hub upgrades authenticated requests to websockets and streams the
// caller's events. The account is the subject of the presented token.
type Hub struct {
	Bus    *Bus
	Secret []byte

	upgrader websocket.Upgrader
	allowed  map[string]struct{}
}

// NewHub builds a Hub. An empty allowedOrigins accepts any origin.
func NewHub(bus *Bus, secret string, allowedOrigins []string) *Hub {
	h := &Hub{Bus: bus, Secret: []byte(secret), allowed: map[string]struct{}{}}
	for _, o := range allowedOrigins {
		if o != "" && o != "*" {
			h.allowed[o] = struct{}{}
		}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	_, ok := h.allowed[origin]
	return ok
}

// ServeHTTP authenticates, upgrades, and pumps events until either side
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID, err := ParseToken(h.Secret, TokenFromRequest(r))
	if err != nil {
		unauthorized(w)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Warn().Err(err).Str("account_id", accountID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := h.Bus.Subscribe(accountID)
	defer cancel()

	lg := log.With().Str("account_id", accountID).Logger()
	lg.Info().Msg("signal channel attached")
	defer lg.Info().Msg("signal channel detached")

	closed := make(chan struct{})
	go readPump(conn, closed)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				lg.Debug().Err(err).Msg("signal write failed")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and keeps the read deadline fresh on
// pongs. It closes done when the connection is gone.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// unauthorized writes a 401 in the shared error envelope. The request id is
// the one the HTTP middleware already put on the response, if any.
func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errorBody{
		RequestID: w.Header().Get("X-Request-ID"),
		Code:      "unauthorized",
		Message:   "valid token required",
	})
}
