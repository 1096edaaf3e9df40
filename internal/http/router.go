// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"newber/internal/http/handlers"
	"newber/internal/http/middleware"
)

func NewRouter(deps ServerDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	userHandler := handlers.NewUserHandler(deps.Users)
	r.POST("/api/users", userHandler.SignUp)
	r.POST("/api/sessions", userHandler.SignIn)

	api := r.Group("/api", middleware.Auth(deps.Verifier))
	api.DELETE("/sessions", userHandler.SignOut)
	api.GET("/users/me", userHandler.Me)
	api.PUT("/users/me/contact", userHandler.UpdateContact)

	ratingHandler := handlers.NewRatingHandler(deps.Ratings)
	api.GET("/drivers/:id/rating", ratingHandler.Get)

	fareHandler := handlers.NewFareHandler(deps.Pricing)
	api.POST("/fares/estimate", fareHandler.Estimate)
	api.POST("/fares/adjust", fareHandler.Adjust)

	requestHandler := handlers.NewRequestHandler(deps.Rides)
	api.POST("/requests", requestHandler.Create)
	api.GET("/requests/pending", requestHandler.ListPending)
	api.GET("/requests/current", requestHandler.Current)
	api.GET("/requests/:id", requestHandler.Get)
	api.GET("/requests/:id/events", requestHandler.Events)
	api.POST("/requests/:id/offer", requestHandler.Offer)
	api.POST("/requests/:id/accept", requestHandler.Accept)
	api.POST("/requests/:id/decline", requestHandler.Decline)
	api.POST("/requests/:id/complete", requestHandler.Complete)
	api.POST("/requests/:id/cancel", requestHandler.Cancel)

	watchHandler := handlers.NewWatchHandler(deps.Rides, deps.Log)
	api.GET("/requests/:id/watch", watchHandler.Watch)

	return r
}
