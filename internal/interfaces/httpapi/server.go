package httpapi

import (
	"net/http"

	"github.com/riskibarqy/moneyball/internal/platform/logging"
)

// NewRouter wires the REST routes and, when mcpHandler is non-nil, mounts
// the MCP endpoint at mcpPath behind the same middleware chain.
func NewRouter(
	handler *Handler,
	mcpHandler http.Handler,
	mcpPath string,
	logger *logging.Logger,
	corsAllowedOrigins []string,
) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}

	mux := http.NewServeMux()
	registerSystemRoutes(mux, handler)
	registerPlayerRoutes(mux, handler)
	registerSimilarityRoutes(mux, handler)
	registerNarrativeRoutes(mux, handler)
	registerMCPRoutes(mux, mcpHandler, mcpPath)

	return RequestTracing(RequestLogging(logger, CORS(corsAllowedOrigins, recoverPanic(logger, mux))))
}

func recoverPanic(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := startSpan(r.Context(), "httpapi.recoverPanic")
		defer span.End()

		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(ctx, "panic recovered", "panic", rec)
				writeInternalError(ctx, w)
			}
		}()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
