package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/webmeet/internal/config"
	"github.com/BioHazard786/webmeet/internal/meetingid"
	"github.com/BioHazard786/webmeet/internal/protocol"
	"github.com/BioHazard786/webmeet/internal/signaling"
)

// NewRouter registers the relay's HTTP endpoints.
func NewRouter(hub *signaling.Hub, cfg *config.ServerConfig, log *slog.Logger) *http.ServeMux {
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthCheckHandler)
	mux.HandleFunc("GET /rooms/new", newRoomHandler(hub.Rooms()))
	mux.HandleFunc("/ws", ServeWs(hub, newUpgrader(cfg), log))
	return mux
}

func newUpgrader(cfg *config.ServerConfig) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 4 * 1024,
		Subprotocols:    protocol.Subprotocols,
		CheckOrigin: func(r *http.Request) bool {
			return cfg.OriginAllowed(r.Header.Get("Origin"))
		},
	}
}

// Health Check endpoint
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// newRoomHandler suggests a meeting id nobody is using right now.
func newRoomHandler(rooms *signaling.RoomTable) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := meetingid.NewUnique(rooms.Exists)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"room_id": id})
	}
}

// ServeWs returns an http.HandlerFunc that handles websocket requests.
// It takes the hub as a dependency.
func ServeWs(hub *signaling.Hub, upgrader *websocket.Upgrader, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug("failed to upgrade connection", "remote", r.RemoteAddr, "error", err)
			return
		}

		client := signaling.NewClient(hub, conn)
		if !hub.Register(client) {
			conn.Close()
			return
		}

		// The pumps own the connection from here on.
		go client.WritePump()
		go client.ReadPump()
	}
}
