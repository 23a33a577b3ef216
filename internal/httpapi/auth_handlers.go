package httpapi

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/jaydenbeard/haven/internal/auth"
	"github.com/jaydenbeard/haven/internal/identity"
)

const challengeTTL = 2 * time.Minute

// challengeStore tracks outstanding login challenges, one per identity
// key, with an in-memory map guarded by a mutex and a TTL cleanup on
// read — the same shape as the parent backend's AccountLockoutTracker,
// adapted from "count failed attempts" to "remember an issued nonce".
type challengeStore struct {
	mu         sync.Mutex
	challenges map[string]pendingChallenge
}

type pendingChallenge struct {
	nonce     []byte
	expiresAt time.Time
}

func newChallengeStore() *challengeStore {
	return &challengeStore{challenges: make(map[string]pendingChallenge)}
}

func (s *challengeStore) issue(identityKeyB64 string) ([]byte, time.Time) {
	nonce := make([]byte, 32)
	_, _ = rand.Read(nonce)
	expiresAt := time.Now().Add(challengeTTL)

	s.mu.Lock()
	s.challenges[identityKeyB64] = pendingChallenge{nonce: nonce, expiresAt: expiresAt}
	s.mu.Unlock()

	return nonce, expiresAt
}

// consume validates and removes a challenge in one step, so a nonce can
// never be replayed even if the signature check below it were somehow
// bypassed.
func (s *challengeStore) consume(identityKeyB64 string, nonce []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.challenges[identityKeyB64]
	if !ok {
		return false
	}
	delete(s.challenges, identityKeyB64)

	if time.Now().After(pending.expiresAt) {
		return false
	}
	if len(nonce) != len(pending.nonce) {
		return false
	}
	for i := range nonce {
		if nonce[i] != pending.nonce[i] {
			return false
		}
	}
	return true
}

type challengeRequest struct {
	IdentityKey string `json:"identity_key"`
}

type challengeResponse struct {
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
}

// challengeHandler issues a nonce for an identity key to sign, the
// first half of a sign-in flow that proves key possession without a
// password: haven has no account database to check a password against.
func challengeHandler(store *challengeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req challengeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if _, err := identity.ParsePublicKeyBase64(req.IdentityKey); err != nil {
			writeError(w, http.StatusBadRequest, "invalid identity key")
			return
		}

		nonce, expiresAt := store.issue(req.IdentityKey)
		writeJSON(w, http.StatusOK, challengeResponse{
			Nonce:     base64.StdEncoding.EncodeToString(nonce),
			ExpiresAt: expiresAt,
		})
	}
}

type loginRequest struct {
	IdentityKey string `json:"identity_key"`
	Nonce       string `json:"nonce"`
	Signature   string `json:"signature"`
}

type loginResponse struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Fingerprint string    `json:"fingerprint"`
}

// loginHandler verifies the caller signed the challenge nonce with the
// private half of the identity key they claim, then mints a JWT scoped
// to that key.
func loginHandler(authService *auth.Service, challenges *challengeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		pub, err := identity.ParsePublicKeyBase64(req.IdentityKey)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid identity key")
			return
		}

		nonce, err := base64.StdEncoding.DecodeString(req.Nonce)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid nonce encoding")
			return
		}
		sig, err := base64.StdEncoding.DecodeString(req.Signature)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid signature encoding")
			return
		}

		if !challenges.consume(req.IdentityKey, nonce) {
			writeError(w, http.StatusUnauthorized, "challenge expired or not found")
			return
		}
		if !ed25519.Verify(pub, nonce, sig) {
			writeError(w, http.StatusUnauthorized, "signature verification failed")
			return
		}

		fingerprint := identity.Fingerprint(pub)
		token, expiresAt, err := authService.IssueToken(req.IdentityKey, fingerprint)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to issue token")
			return
		}

		writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt, Fingerprint: fingerprint})
	}
}
