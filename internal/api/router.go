package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/metrics"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(s.recoverPanics)
	r.Use(limitBody)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/system", s.handleSystem)
		r.Get("/diagnostic", s.handleDiagnostic)
		r.Get("/ws", s.handleWebSocket)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handlePlugDevice)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Delete("/", s.handleUnplugDevice)
				r.Put("/mode", s.handleDeviceMode)
				r.Put("/brightness", s.handleLightBrightness)
				r.Put("/position", s.handleBlindPosition)
				r.Put("/fin", s.handleBlindFin)
				r.Put("/window", s.handleBlindWindow)
				r.Put("/inputs", s.handleSensorInputs)
			})
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", s.handleListGroups)
			r.Post("/", s.handleCreateGroup)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetGroup)
				r.Put("/mode", s.handleGroupMode)
				r.Put("/setpoint", s.handleGroupSetpoint)
				r.Put("/position", s.handleGroupPosition)
				r.Put("/rules/{rule}", s.handleGroupRule)
				r.Put("/members/{deviceID}", s.handleAddMember)
				r.Delete("/members/{deviceID}", s.handleRemoveMember)
			})
		})
	})

	return r
}

// chiRoute returns the matched route pattern, e.g. "/api/v1/devices/{id}/mode".
func chiRoute(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
