package app

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pplan/pplan/internal/config"
	"github.com/pplan/pplan/pkg/actor"
	log "github.com/sirupsen/logrus"
)

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Resolve the X-User-Id header into the request actor for downstream
	// services
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			userIdHeader := req.Header.Get("X-User-Id")
			ctx := req.Context()

			if userIdHeader != "" {
				a, err := deps.ActorRepo.FindByExternalID(ctx, userIdHeader)
				if err != nil {
					if errors.Is(err, actor.ErrActorNotFound) {
						log.Debugf("user not found: %s", userIdHeader)
						http.Error(w, "user not found", http.StatusForbidden)
						return
					}
					log.Errorf("failed to resolve user: %v", err)
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				log.Debugf("user found: %s", a.ExternalID)
				ctx = actor.WithActor(ctx, a)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
}
