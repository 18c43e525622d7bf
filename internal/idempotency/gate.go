// Package idempotency implements IdempotencyGate: per-(workspace, route,
// client key) deduplication with a processing lock and a stored response
// cache (spec §4.3). Grounded on the teacher's mutex-guarded map style
// (internal/sessions/sessions.go) and the TTL-cache-with-cleanup-loop
// pattern from the retrieval pack's idempotency_cache.go.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/tasteos/cook-session-engine/pkg/models"
)

// Outcome is the result of Begin.
type Outcome int

const (
	// OutcomeProceed means no cached record exists; the caller must run
	// the handler and call Store or Abort.
	OutcomeProceed Outcome = iota
	// OutcomeReplay means a done record with a matching hash exists;
	// Begin returns the stored response alongside it.
	OutcomeReplay
	// OutcomeConflict means the key is reused with a different payload,
	// or is still processing (spec §7 Conflict).
	OutcomeConflict
	// OutcomeMissingKey means no Idempotency-Key header was supplied
	// (spec §7 Validation).
	OutcomeMissingKey
)

// StoredResponse is what gets replayed to a client on a done-state hit.
type StoredResponse struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

type entry struct {
	record   models.IdempotencyRecord
	expireAt time.Time
}

// Gate is an in-memory, mutex-guarded implementation of IdempotencyGate.
// A real deployment would back this with a shared KV (Redis SETNX); this
// module treats the KV as an internal collaborator, matching the "fast
// KV with TTL" contract in spec §3 without committing to a specific
// store (no Redis driver appears anywhere in the retrieval pack).
type Gate struct {
	mu             sync.Mutex
	entries        map[string]*entry
	processingTTL  time.Duration
	doneTTL        time.Duration
	doneCh         chan struct{}
}

func NewGate(processingTTL, doneTTL, sweepInterval time.Duration) *Gate {
	g := &Gate{
		entries:       make(map[string]*entry),
		processingTTL: processingTTL,
		doneTTL:       doneTTL,
		doneCh:        make(chan struct{}),
	}
	go g.sweepLoop(sweepInterval)
	return g
}

func (g *Gate) Stop() { close(g.doneCh) }

func key(workspaceID, routeKey, clientKey string) string {
	return workspaceID + "|" + routeKey + "|" + clientKey
}

// Hash computes the request_hash per spec §3 ("SHA-256 of method|path|body").
func Hash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte("|"))
	h.Write([]byte(path))
	h.Write([]byte("|"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Begin implements steps 1-5 of the protocol in spec §4.3. clientKey
// empty means the header was absent (OutcomeMissingKey).
func (g *Gate) Begin(_ context.Context, workspaceID, routeKey, clientKey, requestHash string) (Outcome, *StoredResponse) {
	if clientKey == "" {
		return OutcomeMissingKey, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	k := key(workspaceID, routeKey, clientKey)
	now := time.Now()

	if e, ok := g.entries[k]; ok && e.expireAt.After(now) {
		switch e.record.State {
		case models.IdempotencyProcessing:
			return OutcomeConflict, nil
		case models.IdempotencyDone:
			if e.record.RequestHash != requestHash {
				return OutcomeConflict, nil
			}
			hdrs := make(map[string]string, len(e.record.Headers))
			for hk, hv := range e.record.Headers {
				hdrs[hk] = hv
			}
			return OutcomeReplay, &StoredResponse{Status: e.record.Status, Headers: hdrs, Body: append([]byte(nil), e.record.Body...)}
		}
	}

	// Atomic insert (single mutex = compare-and-set semantics in-process).
	g.entries[k] = &entry{
		record: models.IdempotencyRecord{
			State:       models.IdempotencyProcessing,
			RequestHash: requestHash,
			CreatedAt:   now,
		},
		expireAt: now.Add(g.processingTTL),
	}
	return OutcomeProceed, nil
}

// Store records the successful response (spec §4.3 step 6, success path).
func (g *Gate) Store(workspaceID, routeKey, clientKey, requestHash string, status int, headers map[string]string, body []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := key(workspaceID, routeKey, clientKey)
	hdrs := make(map[string]string, len(headers))
	for hk, hv := range headers {
		hdrs[hk] = hv
	}
	g.entries[k] = &entry{
		record: models.IdempotencyRecord{
			State:       models.IdempotencyDone,
			RequestHash: requestHash,
			Status:      status,
			Headers:     hdrs,
			Body:        append([]byte(nil), body...),
			CreatedAt:   time.Now(),
		},
		expireAt: time.Now().Add(g.doneTTL),
	}
}

// Abort deletes the processing record on handler failure or cancellation
// (spec §4.3 step 6 failure path; §5 Cancellation).
func (g *Gate) Abort(workspaceID, routeKey, clientKey string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, key(workspaceID, routeKey, clientKey))
}

func (g *Gate) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.sweep()
		case <-g.doneCh:
			return
		}
	}
}

func (g *Gate) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	for k, e := range g.entries {
		if e.expireAt.Before(now) {
			delete(g.entries, k)
		}
	}
}
