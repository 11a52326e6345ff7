package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/class-track/internal/engine"
	"github.com/kozaktomas/class-track/internal/web/handlers"
	"github.com/kozaktomas/class-track/internal/web/middleware"
)

func (s *Server) setupRoutes(sessionManager *middleware.SessionManager) {
	// Create handlers
	authHandler := handlers.NewAuthHandler(s.state, sessionManager)
	studentsHandler := handlers.NewStudentsHandler(s.state)
	classesHandler := handlers.NewClassesHandler(s.state)
	scanHandler := handlers.NewScanHandler(s.state, s.newMatcher())
	enrollmentHandler := handlers.NewEnrollmentHandler(s.state, handlers.DefaultCaptureDelay)
	statsHandler := handlers.NewStatsHandler(s.state, s.provider)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Auth routes
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)
		r.Post("/auth/signup", authHandler.SignUp)

		// All other routes require authentication
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sessionManager))

			// Students
			r.Get("/students", studentsHandler.List)
			r.Get("/students/{studentId}", studentsHandler.Get)
			r.Get("/students/{studentId}/attendance", studentsHandler.Attendance)
			r.With(middleware.RequireRole(engine.RoleAdmin)).
				Post("/students/{studentId}/reenroll", studentsHandler.GrantReenroll)

			// Enrollment capture flow
			r.Post("/students/{studentId}/enrollment", enrollmentHandler.Start)
			r.Get("/students/{studentId}/enrollment", enrollmentHandler.Status)
			r.Post("/students/{studentId}/enrollment/capture", enrollmentHandler.Capture)
			r.Delete("/students/{studentId}/enrollment", enrollmentHandler.Cancel)

			// Classes
			r.Get("/classes", classesHandler.List)
			r.Get("/classes/{classId}", classesHandler.Get)
			r.Get("/classes/{classId}/attendance", classesHandler.Attendance)

			// Attendance scanning (teachers and admins run sessions)
			r.With(middleware.RequireRole(engine.RoleAdmin, engine.RoleTeacher)).
				Post("/classes/{classId}/scan", scanHandler.Scan)
			r.With(middleware.RequireRole(engine.RoleAdmin, engine.RoleTeacher)).
				Get("/classes/{classId}/scan/events", scanHandler.Events)

			// Stats (admin aggregates)
			r.With(middleware.RequireRole(engine.RoleAdmin)).
				Get("/stats", statsHandler.Get)
		})
	})
}
