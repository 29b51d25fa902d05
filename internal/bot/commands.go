package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"classbot/internal/audit"
	"classbot/internal/services/announce"
	"classbot/internal/services/retention"
	"classbot/internal/services/roster"
	"classbot/internal/transport"
	"classbot/pkg/logx"
	"classbot/pkg/tgui"
)

const adminOnly = "⛔ Only the teacher can use this command."

func (a *App) handleCommand(ctx context.Context, msg transport.Message, cmd, args string) {
	switch cmd {
	case "start":
		a.cmdStart(ctx, msg)
	case "help":
		a.cmdHelp(ctx, msg)
	default:
		if !a.isAdmin(msg.FromID) {
			a.reply(ctx, msg.ChatID, adminOnly)
			return
		}
		switch cmd {
		case "stats":
			a.cmdStats(ctx, msg)
		case "broadcast":
			a.cmdBroadcast(ctx, msg, args)
		case "cleanup":
			a.cmdCleanup(ctx, msg)
		case "delete":
			a.cmdDelete(ctx, msg, args)
		case "subscribers":
			a.cmdSubscribers(ctx, msg)
		case "add":
			a.cmdAdd(ctx, msg, args)
		case "remove":
			a.cmdRemove(ctx, msg, args)
		case "read":
			a.cmdRead(ctx, msg, args)
		case "read_all":
			a.cmdReadAll(ctx, msg)
		default:
			a.reply(ctx, msg.ChatID, "❓ Unknown command. Use /help to see what is available.")
		}
	}
}

func (a *App) cmdStart(ctx context.Context, msg transport.Message) {
	if a.isAdmin(msg.FromID) {
		a.reply(ctx, msg.ChatID,
			"👋 Welcome back, teacher!\n\n"+
				"Any message you send here is broadcast to all subscribed students.\n"+
				"Use /help for the full command list.")
		return
	}

	already := a.roster.Contains(ctx, msg.FromID)
	if err := a.roster.Add(ctx, msg.FromID); err != nil {
		a.log.Warn("subscribe failed", logx.Int64("user_id", msg.FromID), logx.Err(err))
		a.reply(ctx, msg.ChatID, "❌ Subscription failed, please try again later.")
		return
	}
	if already {
		a.reply(ctx, msg.ChatID,
			"ℹ️ You are already subscribed.\n\nNew announcements will arrive here automatically.")
		return
	}
	a.reply(ctx, msg.ChatID,
		"✅ Subscribed!\n\n"+
			"You will receive every announcement from now on.\n"+
			"🔔 Tap the \"Got it ✅\" button under each announcement to confirm you read it.")
}

func (a *App) cmdHelp(ctx context.Context, msg transport.Message) {
	if a.isAdmin(msg.FromID) {
		a.reply(ctx, msg.ChatID,
			"🧑‍🏫 Teacher commands:\n\n"+
				"Send any message (text or media) to broadcast it.\n\n"+
				"• /stats - detailed statistics for all announcements\n"+
				"• /broadcast <text> - broadcast a text announcement\n"+
				"• /cleanup - remove old announcements\n"+
				"• /delete <id> - delete one announcement\n"+
				"• /subscribers - list subscribers\n"+
				"• /add <id> - add a student manually\n"+
				"• /remove <id> - remove a student\n"+
				"• /read <id> - read details for one announcement\n"+
				"• /read_all - read summary for all announcements\n"+
				"• /help - this message")
		return
	}
	a.reply(ctx, msg.ChatID,
		"📚 Student commands:\n\n"+
			"• /start - subscribe to announcements\n"+
			"• /help - this message\n\n"+
			"✅ Tap the \"Got it ✅\" button under each announcement to confirm you read it.")
}

func (a *App) handleStudentMessage(ctx context.Context, msg transport.Message) {
	a.reply(ctx, msg.ChatID,
		"🤖 This channel only delivers announcements from the teacher.\n"+
			"Use /start to subscribe and /help to see the commands.")
}

// handleAdminMessage broadcasts any plain admin message as an announcement.
func (a *App) handleAdminMessage(ctx context.Context, msg transport.Message) {
	draft, err := a.draftFrom(msg)
	if err != nil {
		a.reply(ctx, msg.ChatID,
			"⚠️ File not allowed\n\n"+
				"The file type or extension is not supported.\n"+
				"Allowed: PDF, images, Office documents, ZIP, MP3, MP4.")
		return
	}
	a.publish(ctx, msg.ChatID, draft)
}

func (a *App) cmdBroadcast(ctx context.Context, msg transport.Message, args string) {
	if args == "" {
		a.reply(ctx, msg.ChatID,
			"📢 Usage:\n/broadcast <message>\n\nExample:\n/broadcast Exam tomorrow at 10 AM")
		return
	}
	a.publish(ctx, msg.ChatID, announce.Draft{
		Kind:      transport.KindText,
		SenderID:  msg.FromID,
		MessageID: msg.ID,
		Content:   args,
	})
}

// draftFrom builds an announcement draft from an inbound admin message,
// applying the file-safety gate to document uploads.
func (a *App) draftFrom(msg transport.Message) (announce.Draft, error) {
	d := announce.Draft{SenderID: msg.FromID, MessageID: msg.ID}
	if msg.Media == nil {
		d.Kind = transport.KindText
		d.Content = msg.Text
		return d, nil
	}

	m := msg.Media
	d.Kind = m.Kind
	d.FileID = m.FileID
	d.FileName = m.FileName
	d.MediaGroupID = m.GroupID
	d.Caption = m.Caption
	d.Content = m.Caption
	if d.Content == "" {
		d.Content = "📎 Attached file"
	}

	if m.Kind == transport.KindDocument {
		if !fileAllowed(m.FileName, m.MIME) {
			a.log.Warn("blocked unsafe upload",
				logx.String("file_name", m.FileName), logx.String("mime", m.MIME))
			return announce.Draft{}, errors.New("file type not allowed")
		}
		if m.MIME == "application/pdf" {
			d.Kind = transport.KindPDF
		}
	}
	return d, nil
}

// publish is the shared broadcast path for admin messages and /broadcast:
// sweep, store, fan out, audit, report.
func (a *App) publish(ctx context.Context, replyTo int64, draft announce.Draft) {
	start := time.Now()
	if _, err := a.sweeper.Sweep(ctx); err != nil {
		a.log.Warn("pre-broadcast sweep failed", logx.Err(err))
	}

	recipients := a.roster.List(ctx)
	if len(recipients) == 0 {
		a.reply(ctx, replyTo, "⚠️ No students have subscribed yet.")
		return
	}

	id := announce.NewID()
	if err := a.anns.Create(ctx, id, draft); err != nil {
		a.log.Error("create announcement failed", logx.String("id", id), logx.Err(err))
		a.reply(ctx, replyTo, "❌ Could not store the announcement, nothing was sent.")
		return
	}
	rec, ok := a.anns.Get(ctx, id)
	if !ok {
		a.reply(ctx, replyTo, "❌ Could not store the announcement, nothing was sent.")
		return
	}

	rep := a.caster.Send(ctx, recipients, outgoingFor(rec, a.ackKeyboard(id)))

	a.audit(audit.Entry{
		ActorID: draft.SenderID,
		Action:  "broadcast",
		Target:  id,
		OK:      rep.Sent,
		Fail:    len(rep.Failed),
		TookMS:  time.Since(start).Milliseconds(),
	})
	a.reply(ctx, replyTo, broadcastReport(rec, rep, len(recipients)))
}

func (a *App) ackKeyboard(id string) transport.Keyboard {
	return transport.Keyboard{{
		{Text: "Got it ✅", Data: tgui.Data("read", "ack", id)},
	}}
}

func (a *App) countedAckKeyboard(id string, readCount, total int) transport.Keyboard {
	return transport.Keyboard{{
		{
			Text: fmt.Sprintf("✅ Got it (%d/%d)", readCount, total),
			Data: tgui.Data("read", "ack", id),
		},
	}}
}

func outgoingFor(rec announce.Record, kb transport.Keyboard) transport.Outgoing {
	out := transport.Outgoing{Kind: rec.Kind, FileID: rec.FileID, Keyboard: kb}
	if rec.Kind == transport.KindText {
		out.Text = rec.Content
		return out
	}
	out.Caption = rec.Caption
	if out.Caption == "" {
		out.Caption = rec.Content
	}
	return out
}

func (a *App) cmdStats(ctx context.Context, msg transport.Message) {
	if removed, err := a.sweeper.Sweep(ctx); err == nil && removed > 0 {
		a.reply(ctx, msg.ChatID,
			fmt.Sprintf("🧹 Removed %d announcements older than %d days", removed, a.retentionDays))
	}

	anns := a.anns.All(ctx)
	if len(anns) == 0 {
		a.reply(ctx, msg.ChatID, "📭 No announcements yet.")
		return
	}
	a.reply(ctx, msg.ChatID,
		statsReport(anns, a.receipts.All(ctx), a.roster.Count(ctx), a.retentionDays))
}

func (a *App) cmdCleanup(ctx context.Context, msg transport.Message) {
	kb := transport.Keyboard{
		{{Text: "✅ Yes, delete old announcements", Data: tgui.Data("cleanup", "confirm", "")}},
		{{Text: "❌ Cancel", Data: tgui.Data("cleanup", "cancel", "")}},
	}
	a.send(ctx, msg.ChatID, transport.Outgoing{
		Kind: transport.KindText,
		Text: fmt.Sprintf(
			"🗑️ Clean up old announcements\n\n"+
				"Delete announcements older than %d days?\n\n"+
				"⚠️ This cannot be undone.", a.retentionDays),
		Keyboard: kb,
	})
}

func (a *App) cmdDelete(ctx context.Context, msg transport.Message, args string) {
	if args == "" {
		a.reply(ctx, msg.ChatID,
			"🗑️ Usage:\n/delete <announcement_id>\n\nExample:\n/delete ab12cd34\n\n"+
				"📝 Use /stats to see announcement ids.")
		return
	}

	start := time.Now()
	err := a.sweeper.Delete(ctx, args)
	if errors.Is(err, retention.ErrNotFound) {
		a.reply(ctx, msg.ChatID,
			fmt.Sprintf("❌ Announcement %s was not found.\nUse /stats to list announcements and their ids.", args))
		return
	}
	if err != nil {
		a.log.Error("delete failed", logx.String("id", args), logx.Err(err))
		a.reply(ctx, msg.ChatID, "❌ Delete failed, please try again later.")
		return
	}
	a.audit(audit.Entry{
		ActorID: msg.FromID, Action: "delete", Target: args,
		OK: 1, TookMS: time.Since(start).Milliseconds(),
	})
	a.reply(ctx, msg.ChatID,
		fmt.Sprintf("✅ Announcement deleted.\n\n• Id: %s\n• Its read receipts were removed as well.", args))
}

func (a *App) cmdSubscribers(ctx context.Context, msg transport.Message) {
	subs := a.roster.List(ctx)
	if len(subs) == 0 {
		a.reply(ctx, msg.ChatID, "📭 No subscribers yet.")
		return
	}
	a.reply(ctx, msg.ChatID, subscribersReport(subs))
}

func (a *App) cmdAdd(ctx context.Context, msg transport.Message, args string) {
	id, ok := parseUserID(args)
	if !ok {
		a.reply(ctx, msg.ChatID,
			"➕ Usage:\n/add <student_id>\n\nExample:\n/add 123456789")
		return
	}
	if a.roster.Contains(ctx, id) {
		a.reply(ctx, msg.ChatID, fmt.Sprintf("ℹ️ Student %d is already subscribed.", id))
		return
	}
	if err := a.roster.Add(ctx, id); err != nil {
		if errors.Is(err, roster.ErrInvalidUserID) {
			a.reply(ctx, msg.ChatID, "❌ The student id must be a positive number.")
			return
		}
		a.log.Error("add subscriber failed", logx.Int64("user_id", id), logx.Err(err))
		a.reply(ctx, msg.ChatID, "❌ Add failed, please try again later.")
		return
	}
	a.audit(audit.Entry{ActorID: msg.FromID, Action: "add_subscriber",
		Target: strconv.FormatInt(id, 10), OK: 1})
	a.reply(ctx, msg.ChatID,
		fmt.Sprintf("✅ Student added.\n\n• Id: %d\n• Subscribers: %d", id, a.roster.Count(ctx)))
}

func (a *App) cmdRemove(ctx context.Context, msg transport.Message, args string) {
	id, ok := parseUserID(args)
	if !ok {
		a.reply(ctx, msg.ChatID,
			"➖ Usage:\n/remove <student_id>\n\nExample:\n/remove 123456789\n\n"+
				"📝 Use /subscribers to list the subscribed students.")
		return
	}
	if !a.roster.Contains(ctx, id) {
		a.reply(ctx, msg.ChatID, fmt.Sprintf("ℹ️ Student %d is not subscribed.", id))
		return
	}
	if err := a.roster.Remove(ctx, id); err != nil {
		a.log.Error("remove subscriber failed", logx.Int64("user_id", id), logx.Err(err))
		a.reply(ctx, msg.ChatID, "❌ Remove failed, please try again later.")
		return
	}
	a.audit(audit.Entry{ActorID: msg.FromID, Action: "remove_subscriber",
		Target: strconv.FormatInt(id, 10), OK: 1})
	a.reply(ctx, msg.ChatID,
		fmt.Sprintf("✅ Student removed.\n\n• Id: %d\n• Subscribers: %d", id, a.roster.Count(ctx)))
}

func (a *App) cmdRead(ctx context.Context, msg transport.Message, args string) {
	if args == "" {
		a.reply(ctx, msg.ChatID,
			"📖 Usage:\n/read <announcement_id>\n\nExample:\n/read ab12cd34\n\n"+
				"📝 Use /stats to see announcement ids.")
		return
	}
	rec, ok := a.anns.Get(ctx, args)
	if !ok {
		a.reply(ctx, msg.ChatID,
			fmt.Sprintf("❌ Announcement %s was not found.\nUse /stats to list announcements and their ids.", args))
		return
	}
	a.reply(ctx, msg.ChatID,
		readReport(rec, a.receipts.Users(ctx, args), a.roster.List(ctx)))
}

func (a *App) cmdReadAll(ctx context.Context, msg transport.Message) {
	anns := a.anns.All(ctx)
	if len(anns) == 0 {
		a.reply(ctx, msg.ChatID, "📭 No announcements yet.")
		return
	}
	a.reply(ctx, msg.ChatID,
		readAllReport(anns, a.receipts.All(ctx), a.roster.Count(ctx)))
}

func parseUserID(args string) (int64, bool) {
	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
