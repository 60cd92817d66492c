package shared

import (
	"context"
	"log/slog"
	"net/http"

	"hrportal/internal/domain/auth"
	"hrportal/internal/requestctx"
)

type Auditor interface {
	Record(ctx context.Context, actorID, action, entityType, entityID, requestID, ip string, before, after any) error
}

// RecordAudit writes an audit event for the caller. A failed write is logged
// and never fails the request.
func RecordAudit(r *http.Request, auditor Auditor, actor auth.UserContext, action, entityType, entityID string, before, after any) {
	if auditor == nil {
		return
	}
	requestID := requestctx.GetRequestID(r.Context())
	if err := auditor.Record(r.Context(), actor.UserID, action, entityType, entityID, requestID, ClientIP(r), before, after); err != nil {
		slog.Warn("audit record failed", "action", action, "entityId", entityID, "requestId", requestID, "err", err)
	}
}
