package relay

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/livecap/livecap/internal/config"
	"github.com/livecap/livecap/internal/room"
	"github.com/livecap/livecap/internal/stt"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// No origin allowlist; rooms are joinable from any page
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// TranscriptionBridge is the slice of the STT bridge the handlers use.
// Satisfied by *stt.Bridge.
type TranscriptionBridge interface {
	Open(ctx context.Context) (string, error)
	SendAudio(sessionID string, data []byte) error
	Transcripts(sessionID string) (<-chan stt.Transcript, bool)
	Close(sessionID string)
}

// Handler hosts the broadcaster and viewer WebSocket endpoints and the
// room debug endpoint.
type Handler struct {
	cfg      *config.Config
	registry *room.Registry
	bridge   TranscriptionBridge
	pipeline *CaptionPipeline
	logger   zerolog.Logger
}

// NewHandler wires the endpoint handlers.
func NewHandler(cfg *config.Config, registry *room.Registry, bridge TranscriptionBridge, pipeline *CaptionPipeline, logger zerolog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		registry: registry,
		bridge:   bridge,
		pipeline: pipeline,
		logger:   logger,
	}
}

// debugRoomsResponse is the read-only introspection payload.
type debugRoomsResponse struct {
	ActiveRooms map[string]room.Info `json:"active_rooms"`
	TotalRooms  int                  `json:"total_rooms"`
}

// HandleDebugRooms reports per-room state: broadcaster attached, viewer
// count, configured language. Read-only.
func (h *Handler) HandleDebugRooms(w http.ResponseWriter, r *http.Request) {
	info := h.registry.DebugInfo()
	resp := debugRoomsResponse{
		ActiveRooms: info,
		TotalRooms:  len(info),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
