package relay

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/livecap/livecap/internal/observability"
	"github.com/livecap/livecap/internal/room"
	"github.com/livecap/livecap/internal/stt"
)

// Translator converts text to the target language, degrading internally on
// failure. Satisfied by *translate.Gateway.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) string
}

// Deliverer fans a message out to a room. Satisfied by *room.Fanout.
type Deliverer interface {
	Deliver(roomID string, message interface{}) (sent, pruned int)
}

// CaptionPipeline turns each finalized transcript into one caption message:
// translate with the room's language pair, stamp, fan out.
type CaptionPipeline struct {
	registry   *room.Registry
	translator Translator
	fanout     Deliverer
	logger     zerolog.Logger
}

// NewCaptionPipeline wires the pipeline.
func NewCaptionPipeline(registry *room.Registry, translator Translator, fanout Deliverer, logger zerolog.Logger) *CaptionPipeline {
	return &CaptionPipeline{
		registry:   registry,
		translator: translator,
		fanout:     fanout,
		logger:     logger,
	}
}

// Publish processes one finalized transcript for a room. Whitespace-only
// transcripts produce no message.
func (p *CaptionPipeline) Publish(ctx context.Context, roomID string, transcript stt.Transcript) {
	if strings.TrimSpace(transcript.Text) == "" {
		return
	}

	source, target, err := p.registry.Languages(roomID)
	if err != nil {
		p.logger.Warn().
			Str("room_id", roomID).
			Msg("Transcript for unknown room dropped")
		return
	}

	translated := p.translator.Translate(ctx, transcript.Text, source, target)
	msg := NewCaption(transcript.Text, translated)

	sent, pruned := p.fanout.Deliver(roomID, msg)
	observability.RecordCaption()
	if pruned > 0 {
		observability.RecordPrunedViewers(pruned)
	}

	p.logger.Debug().
		Str("room_id", roomID).
		Str("original", transcript.Text).
		Int("sent", sent).
		Int("pruned", pruned).
		Msg("Caption broadcast")
}
