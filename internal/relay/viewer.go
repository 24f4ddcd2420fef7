package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/livecap/livecap/internal/observability"
	"github.com/livecap/livecap/internal/room"
)

// HandleView is the viewer endpoint: literal ping/pong heartbeat frames
// interleaved with JSON messages. Viewers joining an unknown room get an
// error message and are closed without ever entering the viewer set.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade viewer connection")
		return
	}
	wc := newWSConn(conn)
	defer wc.Close()

	logger := observability.WithCorrelationID(observability.NewCorrelationID()).
		With().
		Str("room_id", roomID).
		Logger()

	if err := h.registry.AddViewer(roomID, wc); err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			wc.WriteJSON(StatusMessage{
				Type:    "error",
				Message: "Room not found",
			})
			logger.Info().Msg("Viewer rejected, room not found")
		}
		return
	}
	observability.ViewerJoined()
	defer func() {
		h.registry.RemoveViewer(roomID, wc)
		observability.ViewerLeft()
		logger.Info().Msg("Viewer disconnected")
	}()

	if err := wc.WriteJSON(StatusMessage{
		Type:    "connection_established",
		RoomID:  roomID,
		Message: "Connected to viewing room",
	}); err != nil {
		return
	}
	logger.Info().Msg("Viewer connected")

	hb := NewHeartbeat(h.cfg.PongTimeout)

	frames := make(chan string, 16)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	// Reader goroutine: the deferred Close unblocks it on exit
	go func() {
		for {
			_, data, err := wc.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- string(data):
			case <-done:
				return
			}
		}
	}()

	pingTicker := time.NewTicker(h.cfg.PingInterval)
	defer pingTicker.Stop()

	// Liveness is re-checked whenever a full ping interval plus grace
	// period passes without an inbound frame
	idle := time.NewTimer(h.cfg.PingInterval + h.cfg.PongTimeout)
	defer idle.Stop()

	resetIdle := func() {
		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(h.cfg.PingInterval + h.cfg.PongTimeout)
	}

	for {
		select {
		case <-pingTicker.C:
			if err := wc.WriteText(pingFrame); err != nil {
				return
			}
			hb.MarkPingSent()

		case frame := <-frames:
			resetIdle()
			switch frame {
			case pingFrame:
				// Peer-initiated heartbeat: answer immediately
				hb.MarkActivity()
				if err := wc.WriteText(pongFrame); err != nil {
					return
				}
			case pongFrame:
				hb.MarkActivity()
			default:
				hb.MarkActivity()
				h.handleCommand(roomID, frame, logger)
			}

		case <-idle.C:
			if hb.CheckExpired() {
				observability.RecordHeartbeatTimeout()
				logger.Info().Msg("Viewer heartbeat timed out")
				return
			}
			idle.Reset(h.cfg.PongTimeout)

		case err := <-readErr:
			logger.Debug().Err(err).Msg("Viewer read loop ended")
			return

		case <-r.Context().Done():
			return
		}
	}
}

// handleCommand parses a JSON frame from a viewer. Malformed or unknown
// frames are ignored.
func (h *Handler) handleCommand(roomID, frame string, logger zerolog.Logger) {
	var cmd Command
	if err := json.Unmarshal([]byte(frame), &cmd); err != nil {
		// Not JSON, ignore
		return
	}

	switch cmd.Type {
	case "set_language":
		if cmd.Language == "" {
			return
		}
		if err := h.registry.SetTargetLanguage(roomID, cmd.Language); err != nil {
			logger.Warn().Err(err).Msg("Failed to set room language")
			return
		}
		logger.Info().
			Str("language", cmd.Language).
			Msg("Room target language changed")
	}
}
