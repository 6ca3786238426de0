package http

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"studyhub/internal/apperr"
	"studyhub/internal/auth"
	"studyhub/internal/crypto"
	"studyhub/internal/idempotency"
	"studyhub/internal/model"
)

// requestInProgress is the code of a retry that raced its original request.
const requestInProgress = "request_in_progress"

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studyhub",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "studyhub",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

// instrument records the access log line and the request metrics. The route
// label is the chi pattern so ids do not blow up cardinality.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		s.metrics.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		s.metrics.duration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		entry := s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"route":      route,
			"status":     status,
			"latency_ms": elapsed.Milliseconds(),
			"request_id": middleware.GetReqID(r.Context()),
		})
		if status >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request")
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.gate.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

func (s *Server) requireRole(min model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := auth.RequireRole(auth.IdentityFromContext(r.Context()), min); err != nil {
				s.fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimit throttles by client address. A limiter outage lets requests
// through rather than locking everyone out of login.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, err := s.limiter.Allow(r.Context(), "auth:"+clientAddr(r))
		if err != nil {
			s.log.WithError(err).Warn("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}
		if !decision.Allowed {
			seconds := int(decision.RetryAfter.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			s.fail(w, r, apperr.New(apperr.RateLimited, "too_many_requests", "too many attempts, please wait and try again"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// idempotent replays the first successful response for a repeated
// Idempotency-Key. Keys are scoped to the caller and the route. A retry that
// arrives while the first request still runs is told to come back later, and
// a replay store outage serves the request without replay.
func (s *Server) idempotent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		identity := auth.IdentityFromContext(r.Context())
		if header == "" || identity == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := identity.ID + ":" + r.Method + ":" + r.URL.Path + ":" + crypto.HashToken(header)

		state, stored, err := s.idempotency.Begin(r.Context(), key)
		if err != nil {
			s.log.WithError(err).Warn("idempotency store unavailable, serving without replay")
			next.ServeHTTP(w, r)
			return
		}
		switch state {
		case idempotency.Replay:
			w.Header().Set("Content-Type", stored.ContentType)
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(stored.Status)
			_, _ = w.Write(stored.Body)
			return
		case idempotency.InFlight:
			w.Header().Set("Retry-After", "1")
			s.fail(w, r, apperr.New(apperr.Transient, requestInProgress, "the same request is still being processed, retry shortly"))
			return
		}

		// The caller may hang up while the handler runs; the reservation must
		// still be settled.
		ctx := context.WithoutCancel(r.Context())
		settled := false
		defer func() {
			if settled {
				return
			}
			if err := s.idempotency.Abort(ctx, key); err != nil {
				s.log.WithError(err).Warn("idempotency reservation release failed")
			}
		}()

		var body bytes.Buffer
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Tee(&body)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if status < 200 || status >= 300 {
			return
		}
		settled = true
		err = s.idempotency.Complete(ctx, key, idempotency.Response{
			Status:      status,
			ContentType: ww.Header().Get("Content-Type"),
			Body:        body.Bytes(),
		})
		if err != nil {
			s.log.WithError(err).Warn("idempotency store update failed")
		}
	})
}
