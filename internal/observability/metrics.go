package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_http_requests_total",
			Help: "Total number of HTTP requests processed by the admin API.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	grpcServerHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_server_handled_total",
			Help: "Total number of gRPC requests handled by the server.",
		},
		[]string{"grpc_service", "grpc_method", "grpc_code"},
	)
	handlerInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_handler_invocations_total",
			Help: "Total number of trigger handler invocations.",
		},
		[]string{"handler", "outcome"},
	)
	handlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_handler_duration_seconds",
			Help:    "Trigger handler latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler"},
	)
	pushTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_push_tokens_total",
			Help: "Total number of device tokens addressed by push fan-out.",
		},
		[]string{"result"},
	)
	profileLookupErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_profile_lookup_errors_total",
			Help: "Total number of failed user profile lookups.",
		},
	)
	sweepItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_sweep_items_total",
			Help: "Total number of items processed by scheduled sweeps.",
		},
		[]string{"sweep", "result"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		grpcServerHandledTotal,
		handlerInvocationsTotal,
		handlerDuration,
		pushTokensTotal,
		profileLookupErrorsTotal,
		sweepItemsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func GRPCServerMetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		statusInfo := status.Convert(err)
		service, method := splitFullMethod(info.FullMethod)
		grpcServerHandledTotal.WithLabelValues(service, method, statusInfo.Code().String()).Inc()
		return resp, err
	}
}

func splitFullMethod(fullMethod string) (string, string) {
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 3 {
		return "unknown", "unknown"
	}
	return parts[1], parts[2]
}

// ObserveHandler records one trigger invocation.
func ObserveHandler(handler, outcome string, elapsed time.Duration) {
	handlerInvocationsTotal.WithLabelValues(handler, outcome).Inc()
	handlerDuration.WithLabelValues(handler).Observe(elapsed.Seconds())
}

func AddPushTokens(result string, n int) {
	if n <= 0 {
		return
	}
	pushTokensTotal.WithLabelValues(result).Add(float64(n))
}

func IncProfileLookupError() {
	profileLookupErrorsTotal.Inc()
}

func IncSweepItems(sweep, result string, n int) {
	if n <= 0 {
		return
	}
	sweepItemsTotal.WithLabelValues(sweep, result).Add(float64(n))
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
