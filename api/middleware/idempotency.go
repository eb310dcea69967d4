package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ayurkart/storefront-backend/api/responses"
	"github.com/ayurkart/storefront-backend/api/validators"
	pkgerrors "github.com/ayurkart/storefront-backend/pkg/errors"
	"github.com/ayurkart/storefront-backend/pkg/logger"
	"github.com/ayurkart/storefront-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 255
	inFlightTTL          = 2 * time.Minute
	inFlightMarker       = "in-flight"
)

// replayWindows maps "METHOD pattern" to how long a recorded response is replayed.
var replayWindows = map[string]time.Duration{
	http.MethodPost + " /functions/v1/cancel-order":   7 * 24 * time.Hour,
	http.MethodPost + " /functions/v1/process-refund": 7 * 24 * time.Hour,
	http.MethodPost + " /functions/v1/delete-order":   24 * time.Hour,
}

type replay struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

// Idempotency replays the recorded response when a client retries a request
// with the same Idempotency-Key. Requests without the header always run.
// A key is claimed before the handler runs, so concurrent retries get 409
// instead of executing twice. Server errors release the key.
func Idempotency(store redis.ReplayStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := replayWindow(r)
			key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if !ok || store == nil || key == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			if len(key) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is too long"))
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
			if err != nil {
				var sizeErr *http.MaxBytesError
				if errors.As(err, &sizeErr) {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
						WithDetails(map[string]string{"body": fmt.Sprintf("must be at most %d bytes", sizeErr.Limit)}))
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unable to read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			fingerprint := fingerprintOf(body)
			storeKey := store.Key("idempotency", callerScope(ctx), r.Method, r.URL.Path, key)

			claimed, err := store.Claim(ctx, storeKey, inFlightMarker, inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable"))
				return
			}
			if !claimed {
				replayStored(w, r, store, storeKey, fingerprint, logg)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				if err := store.Release(ctx, storeKey); err != nil && logg != nil {
					logg.WarnErr(ctx, "releasing idempotency key failed", err)
				}
				return
			}
			record, err := json.Marshal(replay{
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err == nil {
				err = store.Save(ctx, storeKey, string(record), ttl)
			}
			if err != nil && logg != nil {
				logg.WarnErr(ctx, "recording idempotent response failed", err)
			}
		})
	}
}

func replayStored(w http.ResponseWriter, r *http.Request, store redis.ReplayStore, storeKey, fingerprint string, logg *logger.Logger) {
	ctx := r.Context()
	raw, found, err := store.Load(ctx, storeKey)
	switch {
	case err != nil:
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable"))
		return
	case !found:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key expired mid-request, retry"))
		return
	case raw == inFlightMarker:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress"))
		return
	}

	var rec replay
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "corrupt idempotency record"))
		return
	}
	if rec.Fingerprint != fingerprint {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}

	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

// replayWindow looks up the matched route pattern, then the raw path. Inside
// a mounted sub-router the pattern is still a wildcard when this runs.
func replayWindow(r *http.Request) (time.Duration, bool) {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if ttl, ok := replayWindows[r.Method+" "+rc.RoutePattern()]; ok {
			return ttl, true
		}
	}
	ttl, ok := replayWindows[r.Method+" "+r.URL.Path]
	return ttl, ok
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
