package httpapi

import (
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"

	ws "github.com/gorilla/websocket"
	"github.com/jaydenbeard/haven/internal/metrics"
	"github.com/jaydenbeard/haven/internal/relay"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkRelayOrigin,
}

// checkRelayOrigin rejects cross-origin upgrade attempts the same way
// the parent backend's WebSocket handler does, trusting
// ALLOWED_ORIGINS over a hardcoded list.
func checkRelayOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return os.Getenv("DEV_MODE") == "true"
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	allowedEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedEnv == "" {
		allowedEnv = "http://localhost:3000,http://localhost:5173"
	}
	for _, allowed := range strings.Split(allowedEnv, ",") {
		if strings.TrimSpace(allowed) == origin {
			return true
		}
	}
	return false
}

// relayUpgradeHandler authenticates the connecting identity key via
// its own bearer token (not the shared AuthMiddleware chain, since a
// WebSocket handshake can't carry a standard Authorization header from
// a browser client) and upgrades the connection into the relay hub.
func relayUpgradeHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		claims, err := d.Auth.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("relay: upgrade failed for %s: %v", claims.IdentityKey, err)
			return
		}

		connGauge := metrics.RelayConnections.WithLabelValues(d.ServerID)
		connGauge.Inc()
		defer connGauge.Dec()

		client := relay.NewClient(d.Hub, conn, claims.IdentityKey)
		d.Hub.Register(client)
		go client.WritePump()

		if d.Inbox != nil {
			deliverBacklog(d, claims.IdentityKey)
		}

		client.ReadPump()
	}
}

// deliverBacklog pushes any frames queued while the identity key was
// offline straight onto the hub, after registration so the hub can
// find the now-connected client, so a client that reconnects doesn't
// need a separate REST round-trip to catch up.
func deliverBacklog(d *Deps, identityKeyB64 string) {
	frames, err := d.Inbox.Drain(identityKeyB64)
	if err != nil {
		log.Printf("relay: failed to drain inbox for %s: %v", identityKeyB64, err)
		return
	}
	for _, f := range frames {
		d.Hub.DeliverFromBroadcaster(f)
	}
}
