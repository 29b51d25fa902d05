package bot

import (
	"context"
	"fmt"
	"time"

	"classbot/internal/audit"
	"classbot/internal/transport"
	"classbot/pkg/logx"
	"classbot/pkg/tgui"
)

func (a *App) handleCallback(ctx context.Context, cb transport.Callback) {
	scope, action, payload := tgui.Split(cb.Data)
	switch scope {
	case "read":
		if action == "ack" {
			a.handleReadAck(ctx, cb, payload)
			return
		}
	case "cleanup":
		a.handleCleanup(ctx, cb, action)
		return
	}
	a.log.Warn("unknown callback", logx.String("data", cb.Data), logx.Int64("from", cb.FromID))
	a.answer(ctx, cb.ID, "❌ Invalid request", false)
}

// handleReadAck records a "Got it" click: first ack updates the button
// counter and shows an alert, a repeat click only gets a toast.
func (a *App) handleReadAck(ctx context.Context, cb transport.Callback, id string) {
	if !a.anns.Exists(ctx, id) {
		a.answer(ctx, cb.ID, "❌ This announcement no longer exists", false)
		return
	}
	if !a.roster.Contains(ctx, cb.FromID) && !a.isAdmin(cb.FromID) {
		a.log.Warn("ack from non-subscriber", logx.Int64("user_id", cb.FromID), logx.String("id", id))
		a.answer(ctx, cb.ID, "❌ Subscribe first with /start", false)
		return
	}

	duplicate, err := a.receipts.MarkRead(ctx, id, cb.FromID)
	if err != nil {
		a.log.Error("mark read failed", logx.String("id", id), logx.Int64("user_id", cb.FromID), logx.Err(err))
		a.answer(ctx, cb.ID, "❌ Something went wrong, try again later", false)
		return
	}

	readCount := a.receipts.Count(ctx, id)
	total := a.roster.Count(ctx)

	if duplicate {
		a.answer(ctx, cb.ID,
			fmt.Sprintf("⏳ You already confirmed this announcement\n📊 %d/%d students confirmed", readCount, total),
			false)
		return
	}

	ref := transport.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	if err := a.adapter.EditKeyboard(ctx, ref, a.countedAckKeyboard(id, readCount, total)); err != nil {
		a.log.Warn("button update failed", logx.String("id", id), logx.Err(err))
	}
	a.answer(ctx, cb.ID,
		fmt.Sprintf("✅ Receipt recorded\n📊 %d/%d students confirmed", readCount, total),
		true)
}

func (a *App) handleCleanup(ctx context.Context, cb transport.Callback, action string) {
	if !a.isAdmin(cb.FromID) {
		a.answer(ctx, cb.ID, adminOnly, false)
		return
	}
	ref := transport.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}

	if action == "cancel" {
		if err := a.adapter.EditText(ctx, ref, "❌ Cleanup cancelled."); err != nil {
			a.log.Warn("edit failed", logx.Err(err))
		}
		a.answer(ctx, cb.ID, "", false)
		return
	}

	start := time.Now()
	removed, err := a.sweeper.Sweep(ctx)
	if err != nil {
		a.answer(ctx, cb.ID, "❌ Cleanup failed, try again later", true)
		return
	}
	a.audit(audit.Entry{
		ActorID: cb.FromID, Action: "cleanup",
		OK: removed, TookMS: time.Since(start).Milliseconds(),
	})

	text := "✨ Nothing to clean up: no announcements are older than the retention window."
	if removed > 0 {
		text = fmt.Sprintf("✅ Removed %d announcements older than %d days\n\n"+
			"Their read receipts were removed as well.", removed, a.retentionDays)
	}
	if err := a.adapter.EditText(ctx, ref, text); err != nil {
		a.log.Warn("edit failed", logx.Err(err))
	}
	a.answer(ctx, cb.ID, "", false)
}

func (a *App) answer(ctx context.Context, callbackID, text string, alert bool) {
	if err := a.adapter.AnswerCallback(ctx, callbackID, text, alert); err != nil {
		a.log.Warn("answer callback failed", logx.Err(err))
	}
}
