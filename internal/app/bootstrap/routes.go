// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	eventsfeature "github.com/blokhub/blokhub/internal/app/features/events"
	friendsfeature "github.com/blokhub/blokhub/internal/app/features/friends"
	groupsfeature "github.com/blokhub/blokhub/internal/app/features/groups"
	healthfeature "github.com/blokhub/blokhub/internal/app/features/health"
	identityfeature "github.com/blokhub/blokhub/internal/app/features/identity"
	"github.com/blokhub/blokhub/internal/app/system/identity"
	"github.com/blokhub/blokhub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed.
//
// BlokHub applies the identity middleware globally (it lifts the trusted
// gateway headers into the request context; anonymous requests pass
// through untouched) and mounts feature routers for the application
// areas: identity resolution, friendships, groups, and events.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	r := chi.NewRouter()

	// Identity arrives as trusted headers from the gateway in front of
	// this service; the middleware makes it available to all handlers.
	r.Use(identity.Middleware)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	identityHandler := identityfeature.NewHandler(deps.MongoDatabase, logger)
	r.Mount("/auth", identityfeature.Routes(identityHandler))

	// Friend requests are the spam surface; cap write volume per caller.
	limiter := ratelimit.New(60, time.Minute)

	friendsHandler := friendsfeature.NewHandler(deps.MongoDatabase, logger)
	r.With(limiter.Middleware).Mount("/friends", friendsfeature.Routes(friendsHandler))

	groupsHandler := groupsfeature.NewHandler(deps.MongoDatabase, logger)
	r.Mount("/groups", groupsfeature.Routes(groupsHandler))

	eventsHandler := eventsfeature.NewHandler(deps.MongoDatabase, logger)
	r.Mount("/events", eventsfeature.Routes(eventsHandler))

	return r, nil
}
