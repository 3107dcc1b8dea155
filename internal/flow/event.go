package flow

import "strings"

// EventKind is the shape of an inbound event.
type EventKind int

const (
	EventCommand EventKind = iota
	EventChoice
	EventText
	EventFile
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventChoice:
		return "choice"
	case EventText:
		return "text"
	case EventFile:
		return "file"
	}
	return "unknown"
}

// Event is a transport-neutral inbound message.
//
// For commands Name is the command without the leading slash and Payload the
// remaining arguments. For choices Name is the choice key and Payload the bound
// value. Text and file events carry the body in Payload (caption for files).
type Event struct {
	Kind    EventKind
	Sender  int64
	Handle  string
	Name    string
	Payload string
	FileRef string
}

// Command builds a command event. The name may include the leading slash.
func Command(sender int64, name, args string) Event {
	return Event{Kind: EventCommand, Sender: sender, Name: normalizeName(name), Payload: strings.TrimSpace(args)}
}

// Pick builds a choice event.
func Pick(sender int64, key, payload string) Event {
	return Event{Kind: EventChoice, Sender: sender, Name: key, Payload: payload}
}

// Text builds a free-text event.
func Text(sender int64, body string) Event {
	return Event{Kind: EventText, Sender: sender, Payload: body}
}

// File builds a file-upload event.
func File(sender int64, ref, caption string) Event {
	return Event{Kind: EventFile, Sender: sender, FileRef: ref, Payload: caption}
}

// IsCommand reports whether e is the named command.
func (e Event) IsCommand(name string) bool {
	return e.Kind == EventCommand && e.Name == normalizeName(name)
}

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}
