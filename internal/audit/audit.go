package audit

import (
	"context"

	"github.com/weiawesome/wes-io-live/overlay-service/pkg/log"
)

// Audit actions for operator overrides.
const (
	ActionOpenSession      = "session.open"
	ActionCloseSession     = "session.close"
	ActionAddInterrupt     = "interrupt.add"
	ActionDismissInterrupt = "interrupt.dismiss"
	ActionSetShow          = "show.set"
	ActionSetTicker        = "ticker.set"
	ActionIngestEvent      = "event.ingest"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, operatorID, sessionID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldOperatorID, operatorID).
		Str(log.FieldSessionID, sessionID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action, operatorID, sessionID, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldOperatorID, operatorID).
		Str(log.FieldSessionID, sessionID).
		Str(FieldDetail, detail).
		Msg(msg)
}
