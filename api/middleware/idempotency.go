package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/plantomart/plantomart-backend/api/responses"
	pkgerrors "github.com/plantomart/plantomart-backend/pkg/errors"
	"github.com/plantomart/plantomart-backend/pkg/logger"
	pkgredis "github.com/plantomart/plantomart-backend/pkg/redis"
)

const (
	IdempotencyHeader     = "Idempotency-Key"
	ReplayedHeader        = "Idempotent-Replayed"
	DefaultIdempotencyTTL = 24 * time.Hour

	inFlightTTL = time.Minute
)

// storedResponse is the JSON kept under an idempotency key. Body is base64 on the wire.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	ttl   time.Duration
	logg  *logger.Logger
}

// Idempotency replays the stored response when a request repeats its Idempotency-Key
// with the same body, and rejects the key when the body differs. Requests without the
// header pass through. 5xx responses are never stored.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	g := &idempotencyGuard{store: store, ttl: ttl, logg: logg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if store == nil || id == "" {
				next.ServeHTTP(w, r)
				return
			}
			if err := g.serve(w, r, id, next); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
			}
		})
	}
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, id string, next http.Handler) error {
	ctx := r.Context()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	digest := sha256.Sum256(body)
	hash := hex.EncodeToString(digest[:])

	scope := strings.Join([]string{UserIDFromContext(ctx), r.Method, r.URL.Path}, "|")
	key := g.store.IdempotencyKey(scope, id)

	prior, err := g.lookup(ctx, key)
	if err != nil {
		return err
	}
	if prior != nil {
		if prior.RequestHash != hash {
			return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
		}
		if prior.ContentType != "" {
			w.Header().Set("Content-Type", prior.ContentType)
		}
		w.Header().Set(ReplayedHeader, "true")
		w.WriteHeader(prior.Status)
		_, _ = w.Write(prior.Body)
		return nil
	}

	lockKey := key + ":lock"
	acquired, err := g.store.SetNX(ctx, lockKey, "1", inFlightTTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock idempotency key")
	}
	if !acquired {
		return pkgerrors.New(pkgerrors.CodeConflict, "a request with this Idempotency-Key is in progress")
	}
	defer func() {
		if err := g.store.Del(context.WithoutCancel(ctx), lockKey); err != nil && g.logg != nil {
			g.logg.Error(ctx, "idempotency.unlock_failed", err)
		}
	}()

	captured := &bytes.Buffer{}
	ww := wrap(w, r)
	ww.Tee(captured)
	next.ServeHTTP(ww, r)

	status := statusOf(ww)
	if status >= http.StatusInternalServerError {
		return nil
	}
	g.remember(ctx, key, storedResponse{
		Status:      status,
		ContentType: ww.Header().Get("Content-Type"),
		Body:        captured.Bytes(),
		RequestHash: hash,
	})
	return nil
}

func (g *idempotencyGuard) lookup(ctx context.Context, key string) (*storedResponse, error) {
	raw, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, pkgredis.Nil), err == nil && raw == "":
		return nil, nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var prior storedResponse
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &prior, nil
}

// remember logs and drops storage failures.
func (g *idempotencyGuard) remember(ctx context.Context, key string, resp storedResponse) {
	payload, err := json.Marshal(resp)
	if err == nil {
		_, err = g.store.SetNX(context.WithoutCancel(ctx), key, string(payload), g.ttl)
	}
	if err != nil && g.logg != nil {
		g.logg.Error(ctx, "idempotency.store_failed", err)
	}
}
