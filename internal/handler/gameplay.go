package handler

import (
	"encoding/json"
	"log/slog"

	"github.com/ugaemi/duel-arena-server/internal/input"
	"github.com/ugaemi/duel-arena-server/internal/room"
	"github.com/ugaemi/duel-arena-server/internal/ws"
)

// GameplayHandler handles in-game messages.
type GameplayHandler struct {
	rm     *room.Manager
	router *Router
}

// NewGameplayHandler creates a new gameplay handler.
func NewGameplayHandler(rm *room.Manager, router *Router) *GameplayHandler {
	return &GameplayHandler{rm: rm, router: router}
}

// HandlePlayerInput queues one input for the player's next tick. Validation
// happens on the room loop; stale sequence numbers are dropped here.
func (h *GameplayHandler) HandlePlayerInput(client *ws.Client, msg ws.Message) {
	var in input.Input
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		client.SendMessage(ws.NewErrorMessage("invalid input data"))
		return
	}

	playerID := h.router.GetPlayerID(client.ID)
	r, ok := h.rm.FindRoomByPlayerID(playerID)
	if !ok {
		client.SendMessage(ws.NewErrorMessage("not in a room"))
		return
	}

	if !r.Enqueue(playerID, in) {
		slog.Debug("input dropped", "player", playerID, "seq", in.SequenceNumber)
	}
}
