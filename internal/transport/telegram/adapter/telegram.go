package adapter

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "classbot/internal/transport"
	"classbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

// Adapter bridges Telegram (via telebot long polling) to the neutral
// transport types consumed by the core.
type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	out     atomic.Value // stores (chan<- kit.Update)
	runMu   sync.Mutex
	running bool

	// droppedUpdates counts updates dropped because the consumer was slower
	// than the Telegram poll loop. Logged periodically to avoid per-update spam.
	droppedUpdates uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, bot: b}
	// Ensure atomic.Value is initialized with a stable dynamic type.
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	// Handlers forward to the CURRENT output channel. Start() may swap it.
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		a.sendUpdate(kit.Update{Kind: kit.UpdateMessage, Message: baseMessage(m)})
		return nil
	})

	media := func(kind kit.ContentKind, extract func(m *tele.Message) (fileID, fileName, mime string)) func(tele.Context) error {
		return func(c tele.Context) error {
			m := c.Message()
			if m == nil || m.Sender == nil {
				return nil
			}
			fileID, fileName, mime := extract(m)
			msg := baseMessage(m)
			msg.Media = &kit.Media{
				Kind:     kind,
				FileID:   fileID,
				FileName: fileName,
				MIME:     mime,
				Caption:  m.Caption,
				GroupID:  m.AlbumID,
			}
			a.sendUpdate(kit.Update{Kind: kit.UpdateMessage, Message: msg})
			return nil
		}
	}

	a.bot.Handle(tele.OnPhoto, media(kit.KindPhoto, func(m *tele.Message) (string, string, string) {
		if m.Photo == nil {
			return "", "", ""
		}
		return m.Photo.FileID, "", ""
	}))
	a.bot.Handle(tele.OnDocument, media(kit.KindDocument, func(m *tele.Message) (string, string, string) {
		if m.Document == nil {
			return "", "", ""
		}
		return m.Document.FileID, m.Document.FileName, m.Document.MIME
	}))
	a.bot.Handle(tele.OnAudio, media(kit.KindAudio, func(m *tele.Message) (string, string, string) {
		if m.Audio == nil {
			return "", "", ""
		}
		return m.Audio.FileID, m.Audio.FileName, m.Audio.MIME
	}))
	a.bot.Handle(tele.OnVideo, media(kit.KindVideo, func(m *tele.Message) (string, string, string) {
		if m.Video == nil {
			return "", "", ""
		}
		return m.Video.FileID, m.Video.FileName, m.Video.MIME
	}))

	a.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		m := c.Message()
		if cb == nil || m == nil || cb.Sender == nil {
			return nil
		}
		a.sendUpdate(kit.Update{
			Kind: kit.UpdateCallback,
			Callback: &kit.Callback{
				ID:        cb.ID,
				FromID:    cb.Sender.ID,
				ChatID:    m.Chat.ID,
				MessageID: m.ID,
				Data:      strings.TrimPrefix(cb.Data, "\f"),
			},
		})
		return nil
	})
}

func baseMessage(m *tele.Message) *kit.Message {
	return &kit.Message{
		ID:           m.ID,
		ChatID:       m.Chat.ID,
		FromID:       m.Sender.ID,
		FromUsername: m.Sender.Username,
		Text:         m.Text,
	}
}

func (a *Adapter) sendUpdate(up kit.Update) {
	v := a.out.Load()
	out, _ := v.(chan<- kit.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		if n := atomic.AddUint64(&a.droppedUpdates, 1); n%100 == 1 {
			a.log.Warn("dropping updates, consumer too slow", logx.Any("dropped_total", n))
		}
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	_ = ctx // telebot's long poller manages its own lifecycle; Stop() ends it
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}
	a.running = true
	a.out.Store(out)
	go a.bot.Start()
	a.log.Info("telegram adapter started", logx.String("bot", a.bot.Me.Username))
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	_ = ctx
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if !a.running {
		return nil
	}
	a.running = false
	a.bot.Stop()
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.log.Info("telegram adapter stopped")
	return nil
}

func (a *Adapter) SendMessage(ctx context.Context, chatID int64, msg kit.Outgoing) (kit.MessageRef, error) {
	_ = ctx
	var opts []any
	if rm := toMarkup(msg.Keyboard); rm != nil {
		opts = append(opts, rm)
	}

	var what any
	switch msg.Kind {
	case kit.KindText, "":
		what = msg.Text
	case kit.KindPhoto:
		what = &tele.Photo{File: tele.File{FileID: msg.FileID}, Caption: msg.Caption}
	case kit.KindDocument, kit.KindPDF:
		what = &tele.Document{File: tele.File{FileID: msg.FileID}, Caption: msg.Caption}
	case kit.KindAudio:
		what = &tele.Audio{File: tele.File{FileID: msg.FileID}, Caption: msg.Caption}
	case kit.KindVideo:
		what = &tele.Video{File: tele.File{FileID: msg.FileID}, Caption: msg.Caption}
	default:
		return kit.MessageRef{}, errors.New("unknown content kind: " + string(msg.Kind))
	}

	sent, err := a.bot.Send(tele.ChatID(chatID), what, opts...)
	if err != nil {
		return kit.MessageRef{}, err
	}
	return kit.MessageRef{ChatID: chatID, MessageID: sent.ID}, nil
}

func (a *Adapter) EditText(ctx context.Context, ref kit.MessageRef, text string) error {
	_ = ctx
	_, err := a.bot.Edit(storedMessage(ref), text)
	return err
}

func (a *Adapter) EditKeyboard(ctx context.Context, ref kit.MessageRef, kb kit.Keyboard) error {
	_ = ctx
	_, err := a.bot.EditReplyMarkup(storedMessage(ref), toMarkup(kb))
	return err
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	_ = ctx
	return a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text, ShowAlert: alert})
}

func (a *Adapter) SetCommands(ctx context.Context, cmds []kit.BotCommand) error {
	_ = ctx
	tc := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		tc = append(tc, tele.Command{Text: c.Command, Description: c.Description})
	}
	return a.bot.SetCommands(tc)
}

func storedMessage(ref kit.MessageRef) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(ref.MessageID), ChatID: ref.ChatID}
}

func toMarkup(kb kit.Keyboard) *tele.ReplyMarkup {
	if len(kb) == 0 {
		return nil
	}
	rm := &tele.ReplyMarkup{}
	rows := make([][]tele.InlineButton, 0, len(kb))
	for _, row := range kb {
		btns := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tele.InlineButton{Text: b.Text, Data: b.Data})
		}
		rows = append(rows, btns)
	}
	rm.InlineKeyboard = rows
	return rm
}
