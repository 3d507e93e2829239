package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/guestdesk/concierge/internal/desk"
)

// Unread serves the current counter snapshot: the total and every known
// conversation with its count. The dashboard polls this on attach before
// the websocket stream takes over.
func Unread(d *desk.Desk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"total":         d.TotalUnread(),
			"conversations": d.Conversations(),
		})
	}
}

// MarkRead acknowledges one conversation as read. The local counter zeroes
// even when the upstream acknowledgement fails; the 502 tells the caller
// the server may still disagree until the next reconcile.
func MarkRead(d *desk.Desk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid conversation id")
			return
		}

		if err := d.MarkRead(r.Context(), id); err != nil {
			slog.Warn("mark-read acknowledgement failed", "conversation", id, "error", err)
			writeError(w, http.StatusBadGateway, "read acknowledgement failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
	}
}

// Channels lists the registry's active channel names, a small ops surface
// for checking what the daemon is actually subscribed to.
func Channels(d *desk.Desk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"channels": d.Channels(),
		})
	}
}
