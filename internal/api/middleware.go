package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/500lbbicepcurl/Scalysis-public/internal/metrics"
)

// Context keys for store and trace propagation.
type contextKey string

const (
	// StoreIDKey is the context key for the shop domain.
	StoreIDKey contextKey = "storeID"

	// TraceIDKey is the context key for trace ID.
	TraceIDKey contextKey = "traceID"

	// RequestIDKey is the context key for request ID.
	RequestIDKey contextKey = "requestID"

	// ShopDomainHeader names the store when session tokens are not in use.
	ShopDomainHeader = "X-Shop-Domain"

	// RequestIDHeader is the HTTP header for request ID.
	RequestIDHeader = "X-Request-ID"

	// TraceIDHeader is the HTTP header for trace ID.
	TraceIDHeader = "X-Trace-ID"
)

var tracer = otel.Tracer("scalysis-api")

var errMissingToken = errors.New("missing bearer session token")

// StoreMiddleware resolves the calling store. With an API secret configured
// the store comes from the "dest" claim of an HS256 Shopify session token in
// the Authorization header; otherwise from the X-Shop-Domain header.
func StoreMiddleware(apiKey, apiSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var storeID string
			if apiSecret != "" {
				shop, err := shopFromSessionToken(r.Header.Get("Authorization"), apiKey, apiSecret)
				if err != nil {
					writeJSON(w, http.StatusUnauthorized, map[string]string{
						"error": "invalid session token: " + err.Error(),
					})
					return
				}
				storeID = shop
			} else {
				storeID = normalizeShop(r.Header.Get(ShopDomainHeader))
				if storeID == "" {
					writeJSON(w, http.StatusBadRequest, map[string]string{
						"error": "X-Shop-Domain header is required",
					})
					return
				}
			}

			if h, ok := r.Context().Value(storeHolderKey).(*storeHolder); ok {
				h.storeID = storeID
			}
			trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("store.id", storeID))
			ctx := context.WithValue(r.Context(), StoreIDKey, storeID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// shopFromSessionToken validates a session token and returns the shop
// domain it was issued for.
func shopFromSessionToken(header, apiKey, apiSecret string) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", errMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5 * time.Second),
	}
	if apiKey != "" {
		opts = append(opts, jwt.WithAudience(apiKey))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(t *jwt.Token) (any, error) {
		return []byte(apiSecret), nil
	}, opts...)
	if err != nil {
		return "", err
	}

	dest, _ := claims["dest"].(string)
	shop := normalizeShop(dest)
	if shop == "" {
		return "", errors.New("token has no dest claim")
	}
	return shop, nil
}

// normalizeShop reduces "https://Acme.myshopify.com/" to "acme.myshopify.com".
func normalizeShop(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil {
			s = u.Host
		}
	}
	return strings.TrimRight(s, "/")
}

// TracingMiddleware creates OpenTelemetry spans and propagates trace context.
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.path", r.URL.Path),
				attribute.String("request.id", requestID),
			),
		)
		defer span.End()

		// Without an SDK the span is a no-op and its trace ID is invalid.
		traceID := span.SpanContext().TraceID().String()
		if !span.SpanContext().TraceID().IsValid() {
			traceID = requestID
		}

		ctx = context.WithValue(ctx, RequestIDKey, requestID)
		ctx = context.WithValue(ctx, TraceIDKey, traceID)

		w.Header().Set(RequestIDHeader, requestID)
		w.Header().Set(TraceIDHeader, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs HTTP requests with structured logging and records
// their latency by route pattern.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		// Handlers further down attach the store to a derived request, so
		// capture it through a holder in the context.
		holder := &storeHolder{}
		r = r.WithContext(context.WithValue(r.Context(), storeHolderKey, holder))

		next.ServeHTTP(rw, r)

		duration := time.Since(start)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Observe(duration.Seconds())

		requestID, _ := r.Context().Value(RequestIDKey).(string)
		traceID, _ := r.Context().Value(TraceIDKey).(string)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"store_id", holder.storeID,
			"request_id", requestID,
			"trace_id", traceID,
		)
	})
}

type storeHolder struct {
	storeID string
}

const storeHolderKey contextKey = "storeHolder"

// CORSMiddleware handles Cross-Origin Resource Sharing for the embedded
// admin UI.
func CORSMiddleware(allowOrigins []string) func(http.Handler) http.Handler {
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: allowOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", ShopDomainHeader, RequestIDHeader, TraceIDHeader},
		ExposedHeaders: []string{RequestIDHeader, TraceIDHeader},
		MaxAge:         86400,
	}).Handler
}

// RecoverMiddleware recovers from panics and returns 500.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered",
					"error", err,
					"path", r.URL.Path,
				)
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"error": "internal server error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// GetStoreID extracts the shop domain from context.
func GetStoreID(ctx context.Context) string {
	if v, ok := ctx.Value(StoreIDKey).(string); ok {
		return v
	}
	return ""
}

// GetTraceID extracts trace ID from context.
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}
