package stt

import (
	"context"
	"errors"
	"fmt"
	"testing"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	"github.com/rs/zerolog"

	"github.com/livecap/livecap/internal/config"
)

// fakeHandle records audio writes and can be told to fail.
type fakeHandle struct {
	written  [][]byte
	writeErr error
	finishes int
}

func (f *fakeHandle) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	f.written = append(f.written, buf)
	return len(p), nil
}

func (f *fakeHandle) Finish() { f.finishes++ }

func testBridge(t *testing.T, handle *fakeHandle, dialErr error) *Bridge {
	t.Helper()
	cfg := &config.Config{
		DeepgramAPIKey:     "test",
		STTModel:           "nova-2",
		STTLanguage:        "ko-KR",
		SampleRate:         16000,
		Channels:           1,
		MinAudioChunkBytes: 100,
	}
	b := NewBridge(cfg, zerolog.Nop())
	b.dial = func(ctx context.Context, callback msginterfaces.LiveMessageCallback) (liveHandle, error) {
		if dialErr != nil {
			return nil, dialErr
		}
		return handle, nil
	}
	return b
}

func TestOpen_DialFailureIsTerminal(t *testing.T) {
	b := testBridge(t, nil, errors.New("upstream rejected"))

	_, err := b.Open(context.Background())
	if err == nil {
		t.Fatal("Expected error when upstream rejects session start")
	}
	if b.ActiveSessions() != 0 {
		t.Errorf("Expected no sessions after failed open, got %d", b.ActiveSessions())
	}
}

func TestSendAudio_UnknownSession(t *testing.T) {
	b := testBridge(t, &fakeHandle{}, nil)

	err := b.SendAudio("missing", make([]byte, 200))
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestSendAudio_DropsSmallChunks(t *testing.T) {
	handle := &fakeHandle{}
	b := testBridge(t, handle, nil)

	id, err := b.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	// Below the threshold: silently dropped, no error
	if err := b.SendAudio(id, make([]byte, 50)); err != nil {
		t.Errorf("Small chunk should be dropped without error, got %v", err)
	}
	if len(handle.written) != 0 {
		t.Errorf("Small chunk should not reach upstream, got %d writes", len(handle.written))
	}

	// At the threshold: forwarded
	if err := b.SendAudio(id, make([]byte, 100)); err != nil {
		t.Errorf("SendAudio() failed: %v", err)
	}
	if len(handle.written) != 1 {
		t.Errorf("Expected 1 upstream write, got %d", len(handle.written))
	}
}

func TestSendAudio_PropagatesTransportError(t *testing.T) {
	handle := &fakeHandle{writeErr: errors.New("broken pipe")}
	b := testBridge(t, handle, nil)

	id, _ := b.Open(context.Background())
	err := b.SendAudio(id, make([]byte, 200))
	if err == nil {
		t.Fatal("Expected transport error to propagate")
	}
}

func TestDrain_FIFO(t *testing.T) {
	b := testBridge(t, &fakeHandle{}, nil)
	id, _ := b.Open(context.Background())

	for i := 0; i < 5; i++ {
		b.enqueue(id, Transcript{Text: fmt.Sprintf("utterance-%d", i), Confidence: 0.9})
	}

	got := b.Drain(id)
	if len(got) != 5 {
		t.Fatalf("Expected 5 transcripts, got %d", len(got))
	}
	for i, tr := range got {
		want := fmt.Sprintf("utterance-%d", i)
		if tr.Text != want {
			t.Errorf("Transcript %d = %q, want %q (FIFO order)", i, tr.Text, want)
		}
	}

	// Second drain is empty
	if got := b.Drain(id); len(got) != 0 {
		t.Errorf("Expected empty drain after drain, got %d", len(got))
	}
}

func TestDrain_UnknownSessionIsEmpty(t *testing.T) {
	b := testBridge(t, &fakeHandle{}, nil)

	if got := b.Drain("missing"); len(got) != 0 {
		t.Errorf("Expected empty drain for unknown session, got %d", len(got))
	}
}

func TestTranscripts_SelectableChannel(t *testing.T) {
	b := testBridge(t, &fakeHandle{}, nil)
	id, _ := b.Open(context.Background())

	ch, ok := b.Transcripts(id)
	if !ok {
		t.Fatal("Expected transcript channel for open session")
	}

	b.enqueue(id, Transcript{Text: "안녕하세요", Confidence: 0.95})

	select {
	case tr := <-ch:
		if tr.Text != "안녕하세요" {
			t.Errorf("Got %q, want %q", tr.Text, "안녕하세요")
		}
	default:
		t.Error("Expected transcript available on the channel")
	}

	if _, ok := b.Transcripts("missing"); ok {
		t.Error("Expected no channel for unknown session")
	}
}

func TestClose_Idempotent(t *testing.T) {
	handle := &fakeHandle{}
	b := testBridge(t, handle, nil)
	id, _ := b.Open(context.Background())

	b.enqueue(id, Transcript{Text: "pending"})

	b.Close(id)
	if handle.finishes != 1 {
		t.Errorf("Expected 1 Finish call, got %d", handle.finishes)
	}

	// Closing again, or closing an unknown session, is a no-op
	b.Close(id)
	b.Close("missing")
	if handle.finishes != 1 {
		t.Errorf("Expected Finish exactly once, got %d", handle.finishes)
	}

	if b.ActiveSessions() != 0 {
		t.Errorf("Expected no sessions after close, got %d", b.ActiveSessions())
	}

	// Pending transcripts are discarded
	if got := b.Drain(id); len(got) != 0 {
		t.Errorf("Expected empty drain after close, got %d", len(got))
	}
}

func TestEnqueue_AfterCloseIsDropped(t *testing.T) {
	b := testBridge(t, &fakeHandle{}, nil)
	id, _ := b.Open(context.Background())
	b.Close(id)

	// Late callback from the SDK's goroutine
	b.enqueue(id, Transcript{Text: "late"})

	if got := b.Drain(id); len(got) != 0 {
		t.Errorf("Expected late transcript to be dropped, got %d", len(got))
	}
}
