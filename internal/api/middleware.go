package api

import (
	"net"
	"net/http"
	"time"

	"github.com/fishbridge/gateway/internal/api/schema"
	"github.com/fishbridge/gateway/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// middlewareRequestID tags every request with an ID and logs its completion
func (service *Service) middlewareRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		id := request.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		writer.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(writer, request)
		log.Debug().
			Str("request_id", id).
			Str("method", request.Method).
			Str("path", request.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("handled an inbound request")
	})
}

// middlewareRateLimit enforces the per-client request budget when the limiter is enabled
func (service *Service) middlewareRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if service.limiter == nil {
			next.ServeHTTP(writer, request)
			return
		}

		key, _, err := net.SplitHostPort(request.RemoteAddr)
		if err != nil {
			key = request.RemoteAddr
		}
		if !service.limiter.Allow(key) {
			metrics.RateLimited.Inc()
			service.writer.WriteErrors(writer, http.StatusTooManyRequests, schema.ErrRateLimited)
			return
		}
		next.ServeHTTP(writer, request)
	})
}
