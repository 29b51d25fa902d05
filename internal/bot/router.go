package bot

import (
	"context"
	"strings"

	"classbot/internal/transport"
	"classbot/pkg/logx"
	"classbot/pkg/tgui"
)

func (a *App) isAdmin(userID int64) bool { return userID == a.adminID }

func (a *App) dispatch(ctx context.Context, up transport.Update) {
	switch up.Kind {
	case transport.UpdateCallback:
		if up.Callback != nil {
			a.handleCallback(ctx, *up.Callback)
		}
	case transport.UpdateMessage:
		if up.Message != nil {
			a.handleMessage(ctx, *up.Message)
		}
	}
}

func (a *App) handleMessage(ctx context.Context, msg transport.Message) {
	if cmd, args, ok := parseCommand(msg.Text); ok {
		a.handleCommand(ctx, msg, cmd, args)
		return
	}
	if a.isAdmin(msg.FromID) {
		a.handleAdminMessage(ctx, msg)
		return
	}
	a.handleStudentMessage(ctx, msg)
}

// parseCommand splits "/cmd@botname args" into ("cmd", "args", true).
// Plain messages return ok=false.
func parseCommand(text string) (cmd, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

// reply sends text to chatID, splitting when it exceeds the message limit.
func (a *App) reply(ctx context.Context, chatID int64, text string) {
	a.send(ctx, chatID, transport.Outgoing{Kind: transport.KindText, Text: text})
}

func (a *App) send(ctx context.Context, chatID int64, out transport.Outgoing) {
	for _, chunk := range chunks(out) {
		if _, err := a.adapter.SendMessage(ctx, chatID, chunk); err != nil {
			a.log.Warn("reply failed", logx.Int64("chat_id", chatID), logx.Err(err))
			return
		}
	}
}

// chunks splits an over-long text message into several sends. Media
// messages pass through unchanged.
func chunks(out transport.Outgoing) []transport.Outgoing {
	if out.Kind != transport.KindText {
		return []transport.Outgoing{out}
	}
	parts := tgui.Chunk(out.Text, tgui.MaxMessageLen-96)
	msgs := make([]transport.Outgoing, len(parts))
	for i, p := range parts {
		msgs[i] = transport.Outgoing{Kind: transport.KindText, Text: p}
	}
	// Only the final piece carries the keyboard.
	if len(msgs) > 0 {
		msgs[len(msgs)-1].Keyboard = out.Keyboard
	}
	return msgs
}
