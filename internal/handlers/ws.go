package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/quickcash/quickcash-gobackend/internal/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Mobile clients connect from app webviews with arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler attaches authenticated clients to the notification hub.
type WSHandler struct {
	hub *notify.Hub
}

func NewWSHandler(hub *notify.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Serve handles GET /ws?token=... — browsers cannot set an Authorization
// header on a websocket handshake, so the token rides the query string.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		writeError(w, http.StatusUnauthorized, "token query parameter required")
		return
	}
	claims, err := parseToken(tokenString)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed for %s: %v", claims.MobileNumber, err)
		return
	}

	h.hub.Register(claims.MobileNumber, conn)
	log.Printf("Websocket connected: %s", claims.MobileNumber)

	// Drain the connection until the client goes away; inbound frames are
	// not part of the protocol.
	go func() {
		defer func() {
			h.hub.Unregister(conn)
			conn.Close()
			log.Printf("Websocket disconnected: %s", claims.MobileNumber)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
