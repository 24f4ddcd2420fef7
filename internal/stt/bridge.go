package stt

import (
	"context"
	"fmt"
	"sync"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/livecap/livecap/internal/config"
	"github.com/livecap/livecap/internal/observability"
)

// transcriptQueueSize bounds how many finalized transcripts can pile up
// before the consumer drains them.
const transcriptQueueSize = 100

// liveHandle is the slice of the Deepgram streaming client the bridge uses.
type liveHandle interface {
	Write(p []byte) (int, error)
	Finish()
}

// dialFunc opens one upstream streaming session with the given event callback.
type dialFunc func(ctx context.Context, callback msginterfaces.LiveMessageCallback) (liveHandle, error)

// session is the bookkeeping for one broadcaster's streaming session. The
// queue is the synchronization boundary between the SDK's event-delivery
// goroutine (producer) and the broadcaster's control loop (consumer).
type session struct {
	id     string
	handle liveHandle
	queue  chan Transcript
	once   sync.Once
}

// Bridge owns the streaming STT sessions. One session per broadcaster
// connection; each session's external handle is closed exactly once on
// teardown.
type Bridge struct {
	cfg    *config.Config
	logger zerolog.Logger
	dial   dialFunc

	mu       sync.RWMutex
	sessions map[string]*session
}

// messageCallbackHandler implements the LiveMessageCallback interface.
// It embeds the default handler and overrides only the methods we customize.
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	onMessage func(*msginterfaces.MessageResponse)
	onError   func(*msginterfaces.ErrorResponse) error
}

func (m *messageCallbackHandler) Message(message *msginterfaces.MessageResponse) error {
	m.onMessage(message)
	return nil
}

func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	if m.onError != nil {
		return m.onError(errorResponse)
	}
	return m.DefaultCallbackHandler.Error(errorResponse)
}

// NewBridge creates a bridge that dials Deepgram's live transcription API.
func NewBridge(cfg *config.Config, logger zerolog.Logger) *Bridge {
	b := &Bridge{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*session),
	}
	b.dial = b.dialDeepgram
	return b
}

func (b *Bridge) dialDeepgram(ctx context.Context, callback msginterfaces.LiveMessageCallback) (liveHandle, error) {
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:      b.cfg.STTModel,
		Language:   b.cfg.STTLanguage,
		Punctuate:  true,
		Encoding:   b.cfg.Encoding,
		Channels:   b.cfg.Channels,
		SampleRate: b.cfg.SampleRate,
	}

	cOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}

	client, err := listenClient.NewWSUsingCallback(
		ctx,
		b.cfg.DeepgramAPIKey,
		cOptions,
		tOptions,
		callback,
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Open establishes one streaming session and returns its ID. A rejected
// session start is terminal for the caller; the bridge does not retry.
func (b *Bridge) Open(ctx context.Context) (string, error) {
	sessionID := uuid.New().String()

	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		onMessage: func(msg *msginterfaces.MessageResponse) {
			b.handleMessage(sessionID, msg)
		},
		onError: func(errorResponse *msginterfaces.ErrorResponse) error {
			b.logger.Warn().
				Str("session_id", sessionID).
				Interface("response", errorResponse).
				Msg("Upstream STT error")
			return nil
		},
	}

	handle, err := b.dial(ctx, callback)
	if err != nil {
		observability.RecordSTTSession(false)
		return "", fmt.Errorf("failed to start stt session: %w", err)
	}

	s := &session{
		id:     sessionID,
		handle: handle,
		queue:  make(chan Transcript, transcriptQueueSize),
	}

	b.mu.Lock()
	b.sessions[sessionID] = s
	b.mu.Unlock()

	observability.RecordSTTSession(true)
	b.logger.Info().
		Str("session_id", sessionID).
		Str("model", b.cfg.STTModel).
		Str("language", b.cfg.STTLanguage).
		Msg("STT session opened")
	return sessionID, nil
}

// handleMessage runs on the SDK's event-delivery goroutine. Only finalized
// non-empty transcripts reach the session queue.
func (b *Bridge) handleMessage(sessionID string, msg *msginterfaces.MessageResponse) {
	if msg == nil {
		return
	}

	switch msg.Type {
	case "Results", "Message":
		if len(msg.Channel.Alternatives) == 0 {
			return
		}
		alt := msg.Channel.Alternatives[0]
		if alt.Transcript == "" {
			return
		}
		if !msg.IsFinal {
			b.logger.Debug().
				Str("session_id", sessionID).
				Str("text", alt.Transcript).
				Msg("Interim transcript discarded")
			return
		}
		b.enqueue(sessionID, Transcript{Text: alt.Transcript, Confidence: alt.Confidence})

	case "Metadata", "SpeechStarted", "UtteranceEnd":
		// Lifecycle chatter, nothing to surface

	default:
		b.logger.Debug().
			Str("session_id", sessionID).
			Str("type", msg.Type).
			Msg("Unknown upstream message type")
	}
}

// enqueue appends a finalized transcript to the session's queue. Transcripts
// arriving for an unknown (already closed) session are dropped.
func (b *Bridge) enqueue(sessionID string, t Transcript) {
	b.mu.RLock()
	s, ok := b.sessions[sessionID]
	b.mu.RUnlock()
	if !ok {
		b.logger.Debug().
			Str("session_id", sessionID).
			Msg("Transcript for closed session dropped")
		return
	}

	select {
	case s.queue <- t:
		observability.RecordFinalTranscript()
	default:
		b.logger.Warn().
			Str("session_id", sessionID).
			Msg("Transcript queue full, dropping transcript")
	}
}

// SendAudio forwards raw audio bytes to the open session. Chunks below the
// configured minimum size are dropped silently (they are metadata or empty
// frames, not speech). Transport errors are wrapped and propagated; the
// caller decides whether its outer loop continues.
func (b *Bridge) SendAudio(sessionID string, data []byte) error {
	b.mu.RLock()
	s, ok := b.sessions[sessionID]
	b.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	if len(data) < b.cfg.MinAudioChunkBytes {
		observability.RecordDroppedChunk()
		return nil
	}

	if _, err := s.handle.Write(data); err != nil {
		return fmt.Errorf("failed to send audio upstream: %w", err)
	}
	observability.RecordAudioBytes(len(data))
	return nil
}

// Transcripts returns the session's queue for select-based consumption.
// The second return is false for unknown sessions.
func (b *Bridge) Transcripts(sessionID string) (<-chan Transcript, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return s.queue, true
}

// Drain returns and clears whatever transcripts have accumulated since the
// last drain, in arrival order. Unknown or closed sessions yield nil, never
// an error.
func (b *Bridge) Drain(sessionID string) []Transcript {
	b.mu.RLock()
	s, ok := b.sessions[sessionID]
	b.mu.RUnlock()
	if !ok {
		return nil
	}

	var out []Transcript
	for {
		select {
		case t := <-s.queue:
			out = append(out, t)
		default:
			return out
		}
	}
}

// Close finishes the external handle exactly once, discards pending
// transcripts and removes the session. Closing an unknown or already closed
// session is a no-op.
func (b *Bridge) Close(sessionID string) {
	b.mu.Lock()
	s, ok := b.sessions[sessionID]
	if ok {
		delete(b.sessions, sessionID)
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	s.once.Do(func() {
		s.handle.Finish()
		// Discard anything still queued
		for {
			select {
			case <-s.queue:
			default:
				b.logger.Info().
					Str("session_id", sessionID).
					Msg("STT session closed")
				return
			}
		}
	})
}

// ActiveSessions returns the number of open sessions.
func (b *Bridge) ActiveSessions() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}
