package audit

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"github.com/sajilotantra/sajilotantra-be/internal/models"
)

const maxCapture = 16 << 10

var skipPaths = map[string]bool{
	"/health":      true,
	"/metrics":     true,
	"/favicon.ico": true,
	"/ws":          true,
}

// hints lets handlers fill in details only they know, such as the user who
// just logged in.
type hints struct {
	actor    string
	entityID string
}

type hintsKey struct{}

// SetActor records the acting user for the current request's audit entry.
func SetActor(ctx context.Context, userID string) {
	if h, ok := ctx.Value(hintsKey{}).(*hints); ok {
		h.actor = userID
	}
}

// SetEntityID records the id of the record the request touched.
func SetEntityID(ctx context.Context, id string) {
	if h, ok := ctx.Value(hintsKey{}).(*hints); ok {
		h.entityID = id
	}
}

// ActorFunc resolves the authenticated user of a request, or "".
type ActorFunc func(*http.Request) string

// Middleware records one activity log per request. Mount it after any
// middleware that resolves the client address into RemoteAddr.
func Middleware(rec *Recorder, actor ActorFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipPaths[r.URL.Path] || strings.HasPrefix(r.URL.Path, "/uploads/") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			h := &hints{}
			if actor != nil {
				h.actor = actor(r)
			}
			r = r.WithContext(context.WithValue(r.Context(), hintsKey{}, h))

			reqBody, reqTruncated := captureRequest(r)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			respBuf := &capBuffer{limit: maxCapture}
			ww.Tee(respBuf)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			rec.Record(buildEntry(r, h, status, time.Since(start), reqBody, reqTruncated, respBuf))
		})
	}
}

func buildEntry(r *http.Request, h *hints, status int, elapsed time.Duration, reqBody []byte, reqTruncated bool, resp *capBuffer) models.ActivityLog {
	pattern := r.URL.Path
	params := map[string]interface{}{}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			pattern = p
		}
		for i, k := range rctx.URLParams.Keys {
			if k != "*" && i < len(rctx.URLParams.Values) {
				params[k] = rctx.URLParams.Values[i]
			}
		}
	}
	route := Classify(r.Method, pattern)

	entry := models.ActivityLog{
		ID:         uuid.NewString(),
		Action:     route.Action,
		EntityType: route.Entity,
		IPAddress:  clientIP(r),
		UserAgent:  r.UserAgent(),
		Status:     models.StatusSuccess,
		CreatedAt:  time.Now().UTC(),
	}
	if status >= http.StatusBadRequest {
		entry.Status = models.StatusFailure
	}
	if h.actor != "" {
		a := h.actor
		entry.UserID = &a
	}
	entityID := h.entityID
	if entityID == "" {
		if id, ok := params["id"].(string); ok {
			entityID = id
		}
	}
	if entityID != "" {
		entry.EntityID = &entityID
	}

	query := map[string]interface{}{}
	for k, v := range r.URL.Query() {
		if len(v) == 1 {
			query[k] = v[0]
		} else {
			query[k] = v
		}
	}

	meta := models.JSONMap{
		"method":         r.Method,
		"url":            r.URL.Path,
		"route":          pattern,
		"statusCode":     status,
		"responseTimeMs": elapsed.Milliseconds(),
		"params":         params,
		"query":          Redact(query),
	}
	if b := redactJSON(reqBody, reqTruncated); b != nil {
		meta["requestBody"] = b
	}
	if b := redactJSON(resp.Bytes(), resp.truncated); b != nil {
		meta["responseBody"] = b
	}
	if ua := r.UserAgent(); ua != "" {
		parsed := useragent.New(ua)
		browser, version := parsed.Browser()
		meta["client"] = map[string]interface{}{
			"browser": browser,
			"version": version,
			"os":      parsed.OS(),
			"mobile":  parsed.Mobile(),
			"bot":     parsed.Bot(),
		}
	}
	entry.Metadata = meta
	return entry
}

// captureRequest copies up to maxCapture bytes of a JSON body and restores it for the handler.
func captureRequest(r *http.Request) ([]byte, bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, false
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return nil, false
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, maxCapture+1))
	if err != nil {
		return nil, false
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}
	if len(buf) > maxCapture {
		return buf[:maxCapture], true
	}
	return buf, false
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// capBuffer keeps the first limit bytes written to it.
type capBuffer struct {
	bytes.Buffer
	limit     int
	truncated bool
}

func (c *capBuffer) Write(p []byte) (int, error) {
	room := c.limit - c.Buffer.Len()
	if room <= 0 {
		c.truncated = c.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		c.Buffer.Write(p[:room])
		c.truncated = true
		return len(p), nil
	}
	return c.Buffer.Write(p)
}
