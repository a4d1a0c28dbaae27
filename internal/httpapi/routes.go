package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/pokdeng/internal/logging"
)

// SetupRoutes mounts the host's peer endpoint next to the read-only room
// view. Guests dial /peer/{peerID}.
func SetupRoutes(peer http.Handler, room Room, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logging.RequestLogger(log))

	r.Get("/healthz", Healthz)
	r.Get("/room", RoomView(room))
	r.Handle("/peer/{peerID}", peer)
	return r
}
