package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/DoyleJ11/pokdeng/internal/engine"
	"github.com/DoyleJ11/pokdeng/internal/lobby"
)

// Room is the hosted room the HTTP surface reports on.
type Room interface {
	View(ctx context.Context) (lobby.View, error)
}

type roomResponse struct {
	Version int          `json:"version"`
	Clients int          `json:"clients"`
	Phase   string       `json:"phase"`
	State   engine.State `json:"state"`
}

func RoomView(room Room) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := room.View(r.Context())
		if err != nil {
			http.Error(w, "room closed", http.StatusGone)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(roomResponse{
			Version: v.Version,
			Clients: v.NumClients,
			Phase:   string(engine.DerivePhase(v.State)),
			State:   v.State,
		})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
