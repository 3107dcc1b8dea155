package flow

import "context"

// Choice is one selectable option attached to an outbound text.
type Choice struct {
	Label   string
	Key     string
	Payload string
}

// MediaItem is one image of a media group. Source is a local path or URL.
type MediaItem struct {
	Source  string
	Caption string
}

// EffectKind selects the messenger call used to deliver an effect.
type EffectKind int

const (
	EffectText EffectKind = iota
	EffectFile
	EffectMedia
	EffectBroadcast
)

func (k EffectKind) String() string {
	switch k {
	case EffectText:
		return "text"
	case EffectFile:
		return "file"
	case EffectMedia:
		return "media"
	case EffectBroadcast:
		return "broadcast"
	}
	return "unknown"
}

// Effect is an outbound message produced by a turn. Effects are delivered
// after the per-user lock is released; a failed delivery never rolls back
// the ledger writes of the turn that produced it.
type Effect struct {
	Kind    EffectKind
	To      int64
	Text    string
	Choices []Choice
	FileRef string
	Media   []MediaItem

	// Recipients is the fan-out list of a broadcast.
	Recipients []int64

	// ReportTo receives OnSuccess or OnFailure once the delivery outcome is known.
	ReportTo  int64
	OnSuccess string
	OnFailure string

	// Release names a bridge token dropped after a successful delivery.
	Release string
}

// Messenger is the outbound side of the chat transport.
type Messenger interface {
	SendText(ctx context.Context, to int64, text string, choices []Choice) error
	SendFile(ctx context.Context, to int64, fileRef, caption string) error
	SendMediaGroup(ctx context.Context, to int64, items []MediaItem) error
}
