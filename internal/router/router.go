package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/evently/booking-engine/internal/handler"
	"github.com/evently/booking-engine/internal/middleware"
	"github.com/evently/booking-engine/internal/model"
)

// Handlers bundles every HTTP handler the API mounts.
type Handlers struct {
	Auth     *handler.AuthHandler
	Events   *handler.EventHandler
	Bookings *handler.BookingHandler
	Seats    *handler.SeatHandler
	Waitlist *handler.WaitlistHandler
}

// Register mounts the full API surface on the provided Echo instance.
// Public routes (health, auth, event browsing, seat maps) carry no auth
// middleware; booking and waitlist routes require a valid access token;
// the admin group additionally requires the ADMIN role. cacheMW, when
// non-nil, is applied to the catalog reads only: seat maps and anything
// behind auth must stay fresh and per-user.
func Register(e *echo.Echo, h Handlers, jwtSecret string, cacheMW echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)

	// Unauthenticated session endpoints.
	authGroup := e.Group("/v1/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)

	// Public catalog browsing.
	var catalogMW []echo.MiddlewareFunc
	if cacheMW != nil {
		catalogMW = append(catalogMW, cacheMW)
	}
	e.GET("/v1/events", h.Events.List, catalogMW...)
	e.GET("/v1/events/:id", h.Events.Get, catalogMW...)
	e.GET("/v1/events/:id/seats", h.Seats.List)

	// Everything below requires a valid access token.
	authed := e.Group("/v1")
	authed.Use(middleware.JWTAuth(jwtSecret))
	authed.Use(middleware.RequireRole(model.RoleAdmin, model.RoleCustomer))

	authed.GET("/auth/me", h.Auth.Me)

	authed.POST("/events/:id/bookings", h.Bookings.Create)
	authed.POST("/bookings/:id/cancel", h.Bookings.Cancel)
	authed.GET("/bookings/:id", h.Bookings.Get)
	authed.GET("/my/bookings", h.Bookings.ListMine)

	authed.POST("/events/:id/seats/hold", h.Seats.Hold)
	authed.POST("/events/:id/seats/confirm", h.Seats.Confirm)
	authed.POST("/events/:id/seats/release", h.Seats.Release)

	authed.POST("/events/:id/waitlist", h.Waitlist.Join)
	authed.DELETE("/events/:id/waitlist", h.Waitlist.Leave)

	// Admin surface.
	admin := e.Group("/v1/admin")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.POST("/events", h.Events.Create)
	admin.GET("/events/:id/waitlist", h.Waitlist.ListForEvent)
}
