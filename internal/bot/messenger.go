package bot

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/m3rciful/vpnshop/core/telegram/keyboard"
	"github.com/m3rciful/vpnshop/internal/flow"

	tele "gopkg.in/telebot.v4"
)

// ErrNotAttached is returned by sends issued before the bot is running.
var ErrNotAttached = errors.New("bot: messenger not attached")

const buttonsPerRow = 2

// Messenger implements flow.Messenger over a telebot instance. The bot is
// attached on start because the engine is built before the bot exists.
type Messenger struct {
	bot atomic.Pointer[tele.Bot]
}

var _ flow.Messenger = (*Messenger)(nil)

// NewMessenger returns a detached Messenger.
func NewMessenger() *Messenger { return &Messenger{} }

// Attach binds the running bot.
func (m *Messenger) Attach(b *tele.Bot) { m.bot.Store(b) }

func (m *Messenger) client(ctx context.Context) (*tele.Bot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := m.bot.Load()
	if b == nil {
		return nil, ErrNotAttached
	}
	return b, nil
}

func (m *Messenger) SendText(ctx context.Context, to int64, text string, choices []flow.Choice) error {
	b, err := m.client(ctx)
	if err != nil {
		return err
	}
	var opts []interface{}
	if markup := Markup(choices); markup != nil {
		opts = append(opts, markup)
	}
	_, err = b.Send(tele.ChatID(to), text, opts...)
	return err
}

func (m *Messenger) SendFile(ctx context.Context, to int64, fileRef, caption string) error {
	b, err := m.client(ctx)
	if err != nil {
		return err
	}
	_, err = b.Send(tele.ChatID(to), fileMessage(fileRef, caption))
	return err
}

func (m *Messenger) SendMediaGroup(ctx context.Context, to int64, items []flow.MediaItem) error {
	b, err := m.client(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	_, err = b.SendAlbum(tele.ChatID(to), album(items))
	return err
}

// Markup lays choices out as an inline keyboard, nil when there are none.
func Markup(choices []flow.Choice) *tele.ReplyMarkup {
	if len(choices) == 0 {
		return nil
	}
	buttons := make([]keyboard.InlineBtn, 0, len(choices))
	for _, ch := range choices {
		buttons = append(buttons, keyboard.InlineBtn{Text: ch.Label, Unique: ch.Key, Data: ch.Payload})
	}
	return keyboard.InlineButtonsNPerRow(buttons, buttonsPerRow)
}

func fileMessage(ref, caption string) tele.Sendable {
	if id, ok := strings.CutPrefix(ref, photoRefPrefix); ok {
		return &tele.Photo{File: tele.File{FileID: id}, Caption: caption}
	}
	return &tele.Document{File: tele.File{FileID: ref}, Caption: caption}
}

func album(items []flow.MediaItem) tele.Album {
	out := make(tele.Album, 0, len(items))
	for _, it := range items {
		file := tele.FromDisk(it.Source)
		if strings.HasPrefix(it.Source, "http://") || strings.HasPrefix(it.Source, "https://") {
			file = tele.FromURL(it.Source)
		}
		out = append(out, &tele.Photo{File: file, Caption: it.Caption})
	}
	return out
}
