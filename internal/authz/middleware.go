package authz

import (
	"log/slog"
	"net/http"

	"github.com/atlas-erp/atlas-payroll/internal/shared"
)

// Middleware wires capability checks for HTTP handlers. Service-level guards
// remain the source of truth; this only rejects obviously unauthorised calls
// before they reach the payroll core.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Require ensures the current actor holds at least one of the capabilities.
func (m Middleware) Require(caps ...Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Without a configured service, enforcement is left entirely to
			// the payroll core's own capability checks.
			if m.Service == nil || len(caps) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actorID, ok := shared.ActorFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			for _, cap := range caps {
				allowed, err := m.Service.Allow(r.Context(), actorID, cap)
				if err != nil {
					if m.Logger != nil {
						m.Logger.Error("authz require", slog.Any("error", err))
					}
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				if allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}
