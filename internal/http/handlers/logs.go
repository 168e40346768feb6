package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const maxScannerLogEvents = 100

type scannerLogEvent struct {
	Level      string                 `json:"level"`
	Message    string                 `json:"message" validate:"required,max=200"`
	TicketCode string                 `json:"ticketCode"`
	Device     string                 `json:"device"`
	Meta       map[string]interface{} `json:"meta"`
	Timestamp  string                 `json:"timestamp"`
}

type scannerLogRequest struct {
	Events []scannerLogEvent `json:"events" validate:"required,min=1,dive"`
}

// Scanner apps retry these on their own; logging each one drowns real failures.
var suppressedScannerMessages = map[string]struct{}{
	"camera_frame_dropped": {},
	"scan_debounced":       {},
}

// ScannerLogs ingests diagnostics from gate scanner apps into the server log.
func (h *Handler) ScannerLogs(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var req scannerLogRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(logger, w, "scanner_log", err)
		return
	}
	if len(req.Events) > maxScannerLogEvents {
		logger.Warn("scanner_log", "status", "too_many_events", "count", len(req.Events))
		writeError(w, http.StatusBadRequest, "too many events")
		return
	}

	logged := 0
	for _, event := range req.Events {
		if isSuppressedScannerEvent(event) {
			continue
		}
		logScannerEvent(logger, r, event)
		logged++
	}
	writeJSON(w, http.StatusOK, map[string]int{"logged": logged})
}

func isSuppressedScannerEvent(event scannerLogEvent) bool {
	_, ok := suppressedScannerMessages[strings.ToLower(strings.TrimSpace(event.Message))]
	return ok
}

func logScannerEvent(logger *slog.Logger, r *http.Request, event scannerLogEvent) {
	attrs := []any{
		"source", "scanner",
		"message", event.Message,
	}
	if event.Timestamp != "" {
		attrs = append(attrs, "timestamp", event.Timestamp)
	} else {
		attrs = append(attrs, "timestamp", time.Now().UTC().Format(time.RFC3339))
	}
	if event.TicketCode != "" {
		attrs = append(attrs, "ticket_code", event.TicketCode)
	}
	if event.Device != "" {
		attrs = append(attrs, "device", event.Device)
	}
	if len(event.Meta) > 0 {
		attrs = append(attrs, "meta", event.Meta)
	}
	if r.RemoteAddr != "" {
		attrs = append(attrs, "ip", r.RemoteAddr)
	}

	switch strings.ToLower(strings.TrimSpace(event.Level)) {
	case "debug":
		logger.Debug("scanner_log", attrs...)
	case "warn", "warning":
		logger.Warn("scanner_log", attrs...)
	case "error":
		logger.Error("scanner_log", attrs...)
	default:
		logger.Info("scanner_log", attrs...)
	}
}
