// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package middleware holds the HTTP chain that wraps every gateway route.

The gateway sits on the shared parent domain and sees session tokens in
cookies and, on arrival from the portal, in the query string. Everything in
this package is written so that neither ends up in a log line or a metric
label.

Order used by the server:

	RequestID -> StructuredLogger -> Metrics -> RateLimit -> PanicRecovery -> CORS

Authentication lives in authz.go and is applied per route group.
*/
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/internal/platform/constants"
	"github.com/avelarcompany/gateway/internal/platform/ctxutil"
	"github.com/avelarcompany/gateway/internal/platform/metrics"
	"github.com/avelarcompany/gateway/internal/platform/respond"
	"github.com/avelarcompany/gateway/pkg/uuid"
)

// maxRequestIDLength bounds client supplied correlation IDs.
const maxRequestIDLength = 64

// # Correlation

// RequestID tags the request with a correlation ID and the caller address.
// An inbound X-Request-ID is honored when it is short; otherwise a fresh one is issued.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			id := request.Header.Get(constants.HeaderXRequestID)
			if id == "" || len(id) > maxRequestIDLength {
				id = uuid.New()
			}
			writer.Header().Set(constants.HeaderXRequestID, id)

			ctx := ctxutil.WithClientIP(ctxutil.WithRequestID(request.Context(), id), RealIP(request))
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// # Access Log

// responseRecorder captures what the handler wrote.
type responseRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func record(writer http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: writer, status: http.StatusOK}
}

func (recorder *responseRecorder) WriteHeader(code int) {
	recorder.status = code
	recorder.ResponseWriter.WriteHeader(code)
}

func (recorder *responseRecorder) Write(body []byte) (int, error) {
	n, err := recorder.ResponseWriter.Write(body)
	recorder.written += n
	return n, err
}

// carriesHandoff reports whether the query holds a handoff parameter.
func carriesHandoff(request *http.Request) bool {
	query := request.URL.Query()
	return query.Has(constants.ParamAuth) || query.Has(constants.ParamToken)
}

// levelFor maps a response status to a log level.
func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// StructuredLogger writes one access log entry per request and stores a
// request scoped logger in the context for handlers further down.
//
// Only the path is logged. The query string is reduced to a "handoff" flag.
func StructuredLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			started := time.Now()

			scoped := logger.With(
				slog.String("request_id", ctxutil.GetRequestID(request.Context())),
				slog.String("method", request.Method),
				slog.String("path", request.URL.Path),
				slog.String("ip", ctxutil.GetClientIP(request.Context())),
			)
			handoff := carriesHandoff(request)

			ctx := ctxutil.WithLogger(request.Context(), scoped)
			recorder := record(writer)
			next.ServeHTTP(recorder, request.WithContext(ctx))

			scoped.Log(ctx, levelFor(recorder.status), "http_request_finished",
				slog.Int("status", recorder.status),
				slog.Int("bytes", recorder.written),
				slog.Int64("latency_ms", time.Since(started).Milliseconds()),
				slog.Bool("handoff", handoff),
				slog.String("user_agent", request.UserAgent()),
			)
		})
	}
}

// # Metrics

// routeLabel returns the chi pattern that served the request. Raw paths are
// never used as labels since module paths are unbounded.
func routeLabel(request *http.Request) string {
	if routing := chi.RouteContext(request.Context()); routing != nil {
		if pattern := routing.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// Metrics observes count and latency per route pattern and status class.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			started := time.Now()
			recorder := record(writer)

			next.ServeHTTP(recorder, request)

			route := routeLabel(request)
			m.HTTPRequests.WithLabelValues(route, strconv.Itoa(recorder.status/100)+"xx").Inc()
			m.HTTPRequestDelay.WithLabelValues(route).Observe(time.Since(started).Seconds())
		})
	}
}

// # Rate Limiting

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// buckets keeps one token bucket per caller address.
type buckets struct {
	mu    sync.Mutex
	byIP  map[string]*bucket
	limit rate.Limit
	burst int
}

func (set *buckets) take(ip string, now time.Time) bool {
	set.mu.Lock()
	defer set.mu.Unlock()

	entry, ok := set.byIP[ip]
	if !ok {
		entry = &bucket{limiter: rate.NewLimiter(set.limit, set.burst)}
		set.byIP[ip] = entry
	}
	entry.seen = now
	return entry.limiter.AllowN(now, 1)
}

func (set *buckets) evictIdle(now time.Time) {
	set.mu.Lock()
	defer set.mu.Unlock()

	for ip, entry := range set.byIP {
		if now.Sub(entry.seen) > constants.RateLimitClientTTL {
			delete(set.byIP, ip)
		}
	}
}

// RateLimit applies a per-IP token bucket. Sign-in and verification calls
// each cost an identity round trip, so they are the routes it protects.
// Idle entries are evicted until the context is cancelled.
func RateLimit(context context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	set := &buckets{
		byIP:  make(map[string]*bucket),
		limit: rate.Limit(requestsPerSecond),
		burst: burst,
	}

	go func() {
		ticker := time.NewTicker(constants.RateLimitCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-context.Done():
				return
			case now := <-ticker.C:
				set.evictIdle(now)
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if set.take(RealIP(request), time.Now()) {
				next.ServeHTTP(writer, request)
				return
			}
			writer.Header().Set(constants.HeaderRetryAfter, "1")
			respond.Error(writer, request, apperr.RateLimited(1))
		})
	}
}

// # Panic Recovery

// PanicRecovery turns a handler panic into a 500 envelope and logs the stack.
// http.ErrAbortHandler is re-raised so the server can drop the connection.
func PanicRecovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				stack := make([]byte, 4096)
				stack = stack[:runtime.Stack(stack, false)]

				logger.ErrorContext(request.Context(), "panic_recovered",
					slog.String("request_id", ctxutil.GetRequestID(request.Context())),
					slog.String("path", request.URL.Path),
					slog.Any("panic", recovered),
					slog.String("stack", string(stack)),
				)

				respond.Error(writer, request, apperr.Internal(fmt.Errorf("panic: %v", recovered)))
			}()

			next.ServeHTTP(writer, request)
		})
	}
}

// # CORS

// OriginPolicy decides which browser origins may call the gateway.
type OriginPolicy interface {
	IsDevelopment() bool
	AllowsOrigin(origin string) bool
}

const (
	corsMethods = "GET, POST, PATCH, OPTIONS"
	corsHeaders = "Accept, Content-Type, Content-Length, X-Request-ID"
	corsExpose  = "X-Request-ID, Location, Retry-After"
)

// CORS admits module front-ends hosted on sibling subdomains. Credentials are
// always allowed since the session travels as a cookie.
func CORS(policy OriginPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			origin := request.Header.Get(constants.HeaderOrigin)
			if origin == "" {
				next.ServeHTTP(writer, request)
				return
			}

			if policy.IsDevelopment() || policy.AllowsOrigin(origin) {
				header := writer.Header()
				header.Set("Access-Control-Allow-Origin", origin)
				header.Set("Access-Control-Allow-Credentials", "true")
				header.Set("Access-Control-Allow-Methods", corsMethods)
				header.Set("Access-Control-Allow-Headers", corsHeaders)
				header.Set("Access-Control-Expose-Headers", corsExpose)
				header.Set("Access-Control-Max-Age", "300")
				header.Add("Vary", constants.HeaderOrigin)
			}

			// Preflight ends here whether or not the origin was admitted.
			if request.Method == http.MethodOptions {
				writer.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// # Helpers

// RealIP returns the caller address. X-Real-IP wins over the first hop of
// X-Forwarded-For, which wins over the socket address.
func RealIP(request *http.Request) string {
	if ip := strings.TrimSpace(request.Header.Get(constants.HeaderXRealIP)); ip != "" {
		return ip
	}
	if forwarded := request.Header.Get(constants.HeaderXForwardedFor); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return request.RemoteAddr
	}
	return host
}
