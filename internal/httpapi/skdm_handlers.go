package httpapi

import (
	"encoding/base64"
	"net/http"

	"github.com/jaydenbeard/haven/internal/middleware"
)

type pendingFrameResponse struct {
	Kind    int    `json:"kind"`
	From    string `json:"from"`
	Payload string `json:"payload"` // base64, opaque to this server
}

// skdmPendingHandler drains the caller's offline inbox: sealed SKDM
// envelopes and wire messages queued while they weren't connected to
// any relay instance. The server never looks inside Payload; it only
// knows the routing header attached in internal/relay/frame.go.
func skdmPendingHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identityKey, ok := middleware.GetIdentityKey(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing identity key in context")
			return
		}

		if d.Inbox == nil {
			writeJSON(w, http.StatusOK, []pendingFrameResponse{})
			return
		}

		frames, err := d.Inbox.Drain(identityKey)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to drain inbox")
			return
		}

		resp := make([]pendingFrameResponse, 0, len(frames))
		for _, f := range frames {
			resp = append(resp, pendingFrameResponse{
				Kind:    int(f.Kind),
				From:    f.From,
				Payload: base64.StdEncoding.EncodeToString(f.Payload),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
