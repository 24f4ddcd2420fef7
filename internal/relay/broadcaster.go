package relay

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/livecap/livecap/internal/observability"
)

// audioQueueSize bounds inbound audio frames waiting for the upstream send.
const audioQueueSize = 100

// HandleStream is the broadcaster endpoint. The connection carries binary
// audio frames in; caption messages are echoed back out by the fan-out.
// One STT session is bound to the lifetime of the connection.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade broadcaster connection")
		return
	}
	wc := newWSConn(conn)
	defer wc.Close()

	logger := observability.WithCorrelationID(observability.NewCorrelationID()).
		With().
		Str("room_id", roomID).
		Logger()

	created := h.registry.UpsertBroadcaster(roomID, wc)
	if created {
		observability.RoomOpened()
		logger.Info().Msg("Room created")
	} else {
		logger.Info().Msg("Broadcaster replaced")
	}
	observability.BroadcasterAttached()
	defer func() {
		h.registry.DetachBroadcaster(roomID, wc)
		observability.BroadcasterDetached()
	}()

	// A rejected session start is terminal for this connection
	sessionID, err := h.bridge.Open(r.Context())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open STT session")
		wc.WriteJSON(StatusMessage{
			Type:    "error",
			RoomID:  roomID,
			Message: "Failed to start transcription",
		})
		return
	}
	defer h.bridge.Close(sessionID)
	logger = logger.With().Str("session_id", sessionID).Logger()

	transcripts, ok := h.bridge.Transcripts(sessionID)
	if !ok {
		logger.Error().Msg("Transcript channel missing for fresh session")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	audioCh := make(chan []byte, audioQueueSize)
	readErr := make(chan error, 1)

	// Reader goroutine: the deferred Close unblocks it on exit
	go func() {
		for {
			msgType, data, err := wc.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			if msgType != websocket.BinaryMessage {
				continue
			}
			select {
			case audioCh <- data:
			default:
				logger.Warn().Msg("Audio queue full, dropping frame")
			}
		}
	}()

	logger.Info().Msg("Broadcast stream started")

	// Single control loop multiplexing audio ingestion and transcript
	// delivery; no polling timeouts
	for {
		select {
		case data := <-audioCh:
			if err := h.bridge.SendAudio(sessionID, data); err != nil {
				// Session errors end this connection's pipeline only;
				// the outer loop keeps running so a transient upstream
				// hiccup does not kill the broadcast
				logger.Error().Err(err).Msg("Failed to forward audio upstream")
			}

		case tr := <-transcripts:
			h.pipeline.Publish(ctx, roomID, tr)

		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("Broadcaster read error")
			} else {
				logger.Info().Msg("Broadcaster disconnected")
			}
			return

		case <-ctx.Done():
			return
		}
	}
}
