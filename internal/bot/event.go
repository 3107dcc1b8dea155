// Package bot adapts telebot updates and sends to the transport-neutral flow engine.
package bot

import (
	"strings"

	"github.com/m3rciful/vpnshop/core/telegram/callbacks"
	"github.com/m3rciful/vpnshop/internal/flow"

	tele "gopkg.in/telebot.v4"
)

// photoRefPrefix marks file references that must be sent back as photos.
const photoRefPrefix = "photo:"

// EventFrom converts an update into a flow event. It reports false for
// updates the engine has no use for (edits, stickers, service messages).
func EventFrom(c tele.Context) (flow.Event, bool) {
	sender := c.Sender()
	if sender == nil {
		return flow.Event{}, false
	}
	ev, ok := convert(sender.ID, c.Callback(), c.Message())
	if !ok {
		return flow.Event{}, false
	}
	ev.Handle = sender.Username
	return ev, true
}

func convert(sender int64, cb *tele.Callback, msg *tele.Message) (flow.Event, bool) {
	if cb != nil {
		key, payload := callbacks.ParseCallbackData(cb)
		if key == "" {
			return flow.Event{}, false
		}
		return flow.Pick(sender, key, payload), true
	}
	if msg == nil {
		return flow.Event{}, false
	}
	switch {
	case msg.Document != nil:
		return flow.File(sender, msg.Document.FileID, msg.Caption), true
	case msg.Photo != nil:
		return flow.File(sender, photoRefPrefix+msg.Photo.FileID, msg.Caption), true
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return flow.Event{}, false
	}
	if strings.HasPrefix(text, "/") {
		name, args, _ := strings.Cut(text, " ")
		// Group chats address commands as /cmd@botname.
		name, _, _ = strings.Cut(name, "@")
		return flow.Command(sender, name, args), true
	}
	return flow.Text(sender, msg.Text), true
}
