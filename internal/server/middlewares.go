package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"messagely/internal/common"
	"messagely/internal/storage/zapadapter"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/xid"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

// maxBodyBytes limits the size of accepted request bodies
const maxBodyBytes = 1 << 20

type ctxKey int

const tokenErrKey ctxKey = iota

// enforcePOSTJSON is a middleware pre-processing each HTTP request
// it checks for POST method, application/json Content-Type header and valid json body
// it also sets blank Content-Type header to application/json
func enforcePOSTJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			respondMessage(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
			return
		}

		// check "Content-Type" header
		contentType := r.Header.Get("Content-Type")
		if contentType != "" {
			mt, _, err := mime.ParseMediaType(contentType)
			if err != nil {
				respondMessage(w, http.StatusBadRequest, "Malformed Content-Type header")
				return
			}

			if mt != "application/json" {
				respondMessage(w, http.StatusUnsupportedMediaType, "Content-Type header must be application/json")
				return
			}
		} else {
			r.Header.Set("Content-Type", "application/json")
		}

		// check if provided request body is valid JSON
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			respondMessage(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}

		if len(body) == 0 {
			respondMessage(w, http.StatusBadRequest, "No body provided")
			return
		}

		if err := fastjson.ValidateBytes(body); err != nil {
			respondMessage(w, http.StatusBadRequest, "Malformed JSON")
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))

		next.ServeHTTP(w, r)
	})
}

// log assigns a request id, carries it in the request context and logs the request and its outcome
func log(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := xid.New().String()

		ctx := zapadapter.NewContextWithID(r.Context(), id)
		rwID := r.WithContext(ctx)

		logger.Info("incoming http request",
			zap.String("id", id),
			zap.String("method", r.Method),
			zap.String("uri", r.URL.RequestURI()),
			zap.String("ip", r.RemoteAddr),
		)

		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Header().Set("X-Request-Id", id)
		start := time.Now()

		next.ServeHTTP(ww, rwID)

		logger.Info("http request completed",
			zap.String("id", id),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// authenticate resolves the session token, if any, into the caller identity.
// The token is read from the "Authorization: Bearer" header or the "_token" field of a JSON body.
// Requests without a valid token pass through anonymous; ensureLoggedIn rejects them where required.
func (h *handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" && r.Method == http.MethodPost {
			token = h.bodyToken(r)
		}

		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		username, err := h.sessions.Resolve(token)
		if err != nil {
			h.logger.Debugw("Rejected session token", append(requestFields(r), "error", err)...)
			ctx = context.WithValue(ctx, tokenErrKey, err)
		} else {
			ctx = zapadapter.NewContextWithUser(ctx, username)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ensureLoggedIn rejects requests without an authenticated caller
func (h *handler) ensureLoggedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := callerFromContext(r.Context()); !ok {
			if _, ok := r.Context().Value(tokenErrKey).(error); ok {
				h.respondError(w, r, common.ErrInvalidToken)
				return
			}
			h.respondError(w, r, fmt.Errorf("authentication required: %w", common.ErrUnauthorized))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ensureCorrectUser rejects requests whose caller is not the user named in the path
func (h *handler) ensureCorrectUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, _ := callerFromContext(r.Context())
		if username := chi.URLParam(r, "username"); caller != username {
			h.respondError(w, r, fmt.Errorf("%s cannot access user %s: %w", caller, username, common.ErrUnauthorized))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func callerFromContext(ctx context.Context) (string, bool) {
	return zapadapter.UserFromContext(ctx)
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// bodyToken reads "_token" from a JSON body and restores the body for the next handler
func (h *handler) bodyToken(r *http.Request) string {
	if r.Body == nil {
		return ""
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(buf), r.Body), Closer: r.Body}
	if err != nil || len(buf) == 0 {
		return ""
	}

	parser := h.parsers.tokenPool.Get()
	defer h.parsers.tokenPool.Put(parser)

	v, err := parser.ParseBytes(buf)
	if err != nil {
		return ""
	}
	return string(v.GetStringBytes("_token"))
}

type readCloser struct {
	io.Reader
	io.Closer
}

// requestFields returns key/value pairs identifying the request for sugared logging
func requestFields(r *http.Request) []interface{} {
	var fields []interface{}
	if id, ok := zapadapter.IDFromContext(r.Context()); ok {
		fields = append(fields, "request_id", id)
	}
	if caller, ok := callerFromContext(r.Context()); ok {
		fields = append(fields, "caller", caller)
	}
	return fields
}
