// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medchain-io/medchain/internal/config"
)

// NewRouter assembles the full HTTP surface.
func NewRouter(cfg *config.ServerConfig, handler *Handler) http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.Timeout))
	r.Use(corsMiddleware(cfg))

	// Probes and metrics stay outside rate limiting so monitoring cannot
	// starve itself.
	r.Get("/health/live", handler.HealthLive)
	r.Get("/health/ready", handler.HealthReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimiter(cfg))
		r.Use(prometheusMetrics)

		r.Get("/health", handler.Health)

		r.Route("/db", func(r chi.Router) {
			r.Get("/status", handler.DBStatus)
			r.Post("/reconnect", handler.DBReconnect)
		})
		r.Get("/fallback/status", handler.FallbackStatus)

		r.Route("/institutions", func(r chi.Router) {
			r.Post("/", handler.CreateInstitution)
			r.Get("/", handler.ListInstitutions)
			r.Get("/{id}", handler.GetInstitution)
			r.Get("/wallet/{wallet}", handler.GetInstitutionByWallet)
		})
		r.Route("/doctors", func(r chi.Router) {
			r.Post("/", handler.CreateDoctor)
			r.Get("/", handler.ListDoctors)
			r.Get("/{id}", handler.GetDoctor)
			r.Get("/wallet/{wallet}", handler.GetDoctorByWallet)
		})
		r.Route("/patients", func(r chi.Router) {
			r.Post("/", handler.CreatePatient)
			r.Get("/", handler.ListPatients)
			r.Get("/{id}", handler.GetPatient)
			r.Get("/wallet/{wallet}", handler.GetPatientByWallet)
		})
	})

	return r
}
