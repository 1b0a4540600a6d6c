package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	applog "gastosbot/internal/log"
	"gastosbot/internal/metrics"
	"gastosbot/internal/whatsapp"
)

const (
	notificationOK        = "ok"
	notificationMalformed = "malformed"
	notificationIgnored   = "ignored"
)

// handleVerify answers the subscription handshake Meta sends when the
// webhook is registered.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentWebhook)
	q := r.URL.Query()

	challenge, err := whatsapp.VerifyHandshake(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"), s.verifyToken)
	switch {
	case err == nil:
		logger.InfoContext(r.Context(), "Webhook verified", applog.FieldOperation, applog.OpVerify)
		writeText(w, http.StatusOK, challenge)
	case errors.Is(err, whatsapp.ErrHandshakeBadRequest):
		logger.WarnContext(r.Context(), "Webhook verification missing parameters", applog.FieldOperation, applog.OpVerify)
		writeText(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
	default:
		logger.WarnContext(r.Context(), "Webhook verification rejected", applog.FieldOperation, applog.OpVerify, applog.FieldError, err)
		writeText(w, http.StatusForbidden, http.StatusText(http.StatusForbidden))
	}
}

// handleNotification acknowledges the POST before looking at it. Nothing
// that happens afterwards changes the response.
func (s *Server) handleNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentWebhook)

	body, readErr := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	writeText(w, http.StatusOK, whatsapp.AckBody)
	if err := flush(w); err != nil {
		logger.DebugContext(ctx, "Could not flush acknowledgement", applog.FieldError, err)
	}

	if readErr != nil {
		metrics.NotificationReceived(notificationMalformed)
		logger.WarnContext(ctx, "Failed to read notification body", applog.FieldOperation, applog.OpDecode, applog.FieldError, readErr)
		return
	}

	metrics.NotificationReceived(s.processNotification(ctx, logger, body))
}

// processNotification dispatches every message change in order and
// returns the notification metric label.
func (s *Server) processNotification(ctx context.Context, logger *applog.Logger, body []byte) string {
	n, err := whatsapp.DecodeNotification(body)
	if err != nil {
		logger.WarnContext(ctx, "Dropping undecodable notification", applog.FieldOperation, applog.OpDecode, applog.FieldError, err)
		return notificationMalformed
	}

	dispatched := 0
	for _, entry := range n.Entry {
		for _, change := range entry.Changes {
			switch change.Kind() {
			case whatsapp.ChangeMessage:
				ev, _ := change.Event()
				fields := applog.NewFields().WithEvent(ev.MessageID, ev.SenderID, ev.BotChannelID, ev.Kind.String())
				if s.dispatcher == nil {
					logger.ErrorContext(ctx, "No dispatcher configured, dropping event", fields.ToSlice()...)
					continue
				}
				if err := s.dispatcher.Dispatch(ctx, ev); err != nil {
					s.logDispatchError(ctx, logger, err, fields)
					continue
				}
				dispatched++
				logger.DebugContext(ctx, "Event dispatched", fields.ToSlice()...)
			case whatsapp.ChangeStatus:
				logger.DebugContext(ctx, "Ignoring status update",
					"entry_id", entry.ID, "statuses", len(change.Value.Statuses))
			default:
				logger.DebugContext(ctx, "Ignoring change without messages",
					"entry_id", entry.ID, "field", change.Field)
			}
		}
	}

	if dispatched == 0 {
		return notificationIgnored
	}
	return notificationOK
}

func (s *Server) logDispatchError(ctx context.Context, logger *applog.Logger, err error, fields applog.LogFields) {
	applog.NewStructuredLogger(logger).LogError(ctx, "Failed to dispatch event", err, applog.OpDispatch, fields)
}
