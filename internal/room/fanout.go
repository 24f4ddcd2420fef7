package room

import (
	"github.com/rs/zerolog"
)

// Fanout delivers a message to every recipient of a room. Delivery to each
// recipient is independent: one failed write never blocks or fails the rest.
// Viewers whose write fails are pruned from the room after the pass, so a
// failing viewer receives at most the messages sent before the failure was
// detected.
type Fanout struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewFanout creates a fanout bound to a registry.
func NewFanout(registry *Registry, logger zerolog.Logger) *Fanout {
	return &Fanout{registry: registry, logger: logger}
}

// Deliver writes message to every viewer in the room and echoes it to the
// broadcaster if one is attached. Unknown or empty rooms are a no-op.
// Returns the number of successful viewer writes and the number of viewers
// pruned after failed ones.
func (f *Fanout) Deliver(roomID string, message interface{}) (sent, pruned int) {
	snap, err := f.registry.Snapshot(roomID)
	if err != nil {
		return 0, 0
	}

	var failed []Conn
	for _, viewer := range snap.Viewers {
		if err := viewer.WriteJSON(message); err != nil {
			f.logger.Debug().
				Err(err).
				Str("room_id", roomID).
				Msg("Viewer write failed, marking for removal")
			failed = append(failed, viewer)
			continue
		}
		sent++
	}

	// Prune only after the delivery pass completes
	for _, viewer := range failed {
		if f.registry.RemoveViewer(roomID, viewer) {
			pruned++
		}
	}

	if snap.Broadcaster != nil {
		if err := snap.Broadcaster.WriteJSON(message); err != nil {
			// The broadcaster's own receive loop handles its teardown
			f.logger.Debug().
				Err(err).
				Str("room_id", roomID).
				Msg("Broadcaster echo failed")
		}
	}

	return sent, pruned
}
