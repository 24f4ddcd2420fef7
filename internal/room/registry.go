package room

import (
	"errors"
	"sync"
	"time"
)

// ErrRoomNotFound is returned for lookups against an unknown room.
var ErrRoomNotFound = errors.New("room not found")

// Conn is the minimal connection surface the room layer needs. The concrete
// WebSocket wrapper lives in the relay package; the registry and fanout never
// see anything beyond this.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// state is the per-room record. Access only while holding Registry.mu.
type state struct {
	broadcaster    Conn
	viewers        map[Conn]struct{}
	sourceLanguage string
	targetLanguage string
	createdAt      time.Time
	lastActive     time.Time
}

// Snapshot is a point-in-time copy of a room's membership, safe to iterate
// without holding the registry lock.
type Snapshot struct {
	ID             string
	Broadcaster    Conn
	Viewers        []Conn
	SourceLanguage string
	TargetLanguage string
}

// Info is the read-only view exposed by the debug endpoint.
type Info struct {
	HasBroadcaster bool   `json:"has_broadcaster"`
	ViewerCount    int    `json:"viewer_count"`
	Language       string `json:"language"`
}

// Registry is the process-wide table of rooms. Every mutation takes the
// registry mutex, so concurrent broadcaster and viewer control flows never
// observe a half-applied membership change.
type Registry struct {
	mu            sync.RWMutex
	rooms         map[string]*state
	defaultSource string
	defaultTarget string

	now func() time.Time
}

// NewRegistry creates an empty registry with the given default language pair.
func NewRegistry(defaultSource, defaultTarget string) *Registry {
	return &Registry{
		rooms:         make(map[string]*state),
		defaultSource: defaultSource,
		defaultTarget: defaultTarget,
		now:           time.Now,
	}
}

// UpsertBroadcaster creates the room if absent, otherwise overwrites the
// existing broadcaster reference (reconnects replace without an explicit
// close). Returns true when the room was newly created.
func (r *Registry) UpsertBroadcaster(roomID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	st, ok := r.rooms[roomID]
	if !ok {
		r.rooms[roomID] = &state{
			broadcaster:    conn,
			viewers:        make(map[Conn]struct{}),
			sourceLanguage: r.defaultSource,
			targetLanguage: r.defaultTarget,
			createdAt:      now,
			lastActive:     now,
		}
		return true
	}

	st.broadcaster = conn
	st.lastActive = now
	return false
}

// DetachBroadcaster clears the broadcaster reference, but only if conn is
// still the registered one. A reconnect that already replaced the reference
// is left untouched.
func (r *Registry) DetachBroadcaster(roomID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.rooms[roomID]
	if !ok || st.broadcaster != conn {
		return
	}
	st.broadcaster = nil
	st.lastActive = r.now()
}

// AddViewer inserts a viewer into the room's set. Re-adding the same
// connection is a no-op. Unknown rooms return ErrRoomNotFound.
func (r *Registry) AddViewer(roomID string, conn Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	st.viewers[conn] = struct{}{}
	st.lastActive = r.now()
	return nil
}

// RemoveViewer removes a viewer if present. Missing rooms or connections are
// not an error. Returns true when something was actually removed.
func (r *Registry) RemoveViewer(roomID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if _, present := st.viewers[conn]; !present {
		return false
	}
	delete(st.viewers, conn)
	st.lastActive = r.now()
	return true
}

// Snapshot returns a copy of the room's membership and language pair.
func (r *Registry) Snapshot(roomID string) (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.rooms[roomID]
	if !ok {
		return Snapshot{}, ErrRoomNotFound
	}

	snap := Snapshot{
		ID:             roomID,
		Broadcaster:    st.broadcaster,
		Viewers:        make([]Conn, 0, len(st.viewers)),
		SourceLanguage: st.sourceLanguage,
		TargetLanguage: st.targetLanguage,
	}
	for v := range st.viewers {
		snap.Viewers = append(snap.Viewers, v)
	}
	return snap, nil
}

// Languages returns the room's configured language pair.
func (r *Registry) Languages(roomID string) (source, target string, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.rooms[roomID]
	if !ok {
		return "", "", ErrRoomNotFound
	}
	return st.sourceLanguage, st.targetLanguage, nil
}

// SetTargetLanguage updates the room's caption target language. Takes effect
// on the next caption.
func (r *Registry) SetTargetLanguage(roomID, language string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	st.targetLanguage = language
	st.lastActive = r.now()
	return nil
}

// Exists reports whether the room is registered.
func (r *Registry) Exists(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID]
	return ok
}

// Count returns the number of registered rooms.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// DebugInfo returns the read-only per-room view for the debug endpoint.
func (r *Registry) DebugInfo() map[string]Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info := make(map[string]Info, len(r.rooms))
	for id, st := range r.rooms {
		info[id] = Info{
			HasBroadcaster: st.broadcaster != nil,
			ViewerCount:    len(st.viewers),
			Language:       st.targetLanguage,
		}
	}
	return info
}

// EvictIdle removes rooms that have no broadcaster, no viewers, and no
// activity for at least maxIdle. Returns the number of rooms removed.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	evicted := 0
	for id, st := range r.rooms {
		if st.broadcaster != nil || len(st.viewers) > 0 {
			continue
		}
		if now.Sub(st.lastActive) < maxIdle {
			continue
		}
		delete(r.rooms, id)
		evicted++
	}
	return evicted
}
