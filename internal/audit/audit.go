package audit

import (
	"context"

	"github.com/weiawesome/amen-live/pkg/log"
)

// Audit actions for the hub.
const (
	ActionIdentify       = "hub.identify"
	ActionPrayerStarted  = "prayer.started"
	ActionPrayerStopped  = "prayer.stopped"
	ActionLiveStart      = "live.start"
	ActionLiveStop       = "live.stop"
	ActionLiveJoin       = "live.join"
	ActionLiveLeave      = "live.leave"
	ActionLiveRejected   = "live.join_rejected"
	ActionChatJoinRoom   = "chat.join_room"
	ActionChatLeaveRoom  = "chat.leave_room"
	ActionExternalNotify = "hub.external_broadcast"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, userID, targetID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action, userID, targetID, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Str(FieldDetail, detail).
		Msg(msg)
}
