package handler

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/ugaemi/duel-arena-server/internal/room"
	"github.com/ugaemi/duel-arena-server/internal/ws"
)

const maxNicknameLength = 16

// LobbyHandler handles lobby-related messages.
type LobbyHandler struct {
	rm     *room.Manager
	router *Router
}

// NewLobbyHandler creates a new lobby handler.
func NewLobbyHandler(rm *room.Manager, router *Router) *LobbyHandler {
	return &LobbyHandler{
		rm:     rm,
		router: router,
	}
}

type createRoomRequest struct {
	Nickname string `json:"nickname"`
}

type roomJoinedResponse struct {
	Code     string `json:"code"`
	PlayerID string `json:"player_id"`
}

// HandleCreateRoom handles room creation.
func (h *LobbyHandler) HandleCreateRoom(client *ws.Client, msg ws.Message) {
	var req createRoomRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || !validNickname(req.Nickname) {
		client.SendMessage(ws.NewErrorMessage("nickname is required"))
		return
	}
	if h.inRoom(client) {
		client.SendMessage(ws.NewErrorMessage("already in a room"))
		return
	}

	r, err := h.rm.CreateRoom()
	if err != nil {
		slog.Error("failed to create room", "error", err)
		client.SendMessage(ws.NewErrorMessage("could not create room"))
		return
	}

	playerID, err := r.Join(req.Nickname, client)
	if err != nil {
		r.Stop()
		client.SendMessage(ws.NewErrorMessage(err.Error()))
		return
	}
	h.router.RegisterPlayer(client.ID, playerID)

	resp, _ := ws.NewMessage(ws.TypeCreateRoom, roomJoinedResponse{
		Code:     r.Code,
		PlayerID: playerID,
	})
	client.SendMessage(resp)

	slog.Info("player created room", "player", playerID, "nickname", req.Nickname, "room", r.Code)
}

type joinRoomRequest struct {
	Code     string `json:"code"`
	Nickname string `json:"nickname"`
}

// HandleJoinRoom handles joining an existing room.
func (h *LobbyHandler) HandleJoinRoom(client *ws.Client, msg ws.Message) {
	var req joinRoomRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.Code == "" || !validNickname(req.Nickname) {
		client.SendMessage(ws.NewErrorMessage("code and nickname are required"))
		return
	}
	if h.inRoom(client) {
		client.SendMessage(ws.NewErrorMessage("already in a room"))
		return
	}

	r, ok := h.rm.GetRoom(req.Code)
	if !ok {
		client.SendMessage(ws.NewErrorMessage(room.ErrRoomNotFound.Error()))
		return
	}

	playerID, err := r.Join(req.Nickname, client)
	if err != nil {
		if !errors.Is(err, room.ErrRoomFull) {
			slog.Warn("join failed", "room", r.Code, "error", err)
		}
		client.SendMessage(ws.NewErrorMessage(err.Error()))
		return
	}
	h.router.RegisterPlayer(client.ID, playerID)

	resp, _ := ws.NewMessage(ws.TypeJoinRoom, roomJoinedResponse{
		Code:     r.Code,
		PlayerID: playerID,
	})
	client.SendMessage(resp)

	slog.Info("player joined room", "player", playerID, "nickname", req.Nickname, "room", r.Code)
}

// HandleLeaveRoom handles a player leaving a room.
func (h *LobbyHandler) HandleLeaveRoom(client *ws.Client, _ ws.Message) {
	h.removePlayer(client)
}

// HandleDisconnect handles client disconnection.
func (h *LobbyHandler) HandleDisconnect(client *ws.Client) {
	h.removePlayer(client)
}

func (h *LobbyHandler) removePlayer(client *ws.Client) {
	playerID := h.router.GetPlayerID(client.ID)
	if playerID == "" {
		return
	}

	if r, ok := h.rm.FindRoomByPlayerID(playerID); ok {
		if err := r.Leave(playerID); err != nil && !errors.Is(err, room.ErrRoomClosed) {
			slog.Warn("leave failed", "room", r.Code, "player", playerID, "error", err)
		}
	}

	h.router.UnregisterPlayer(client.ID)
	slog.Info("player left", "player", playerID)
}

// inRoom reports whether the client's player still belongs to a live room.
func (h *LobbyHandler) inRoom(client *ws.Client) bool {
	_, ok := h.rm.FindRoomByPlayerID(h.router.GetPlayerID(client.ID))
	return ok
}

func validNickname(s string) bool {
	n := len([]rune(s))
	return n > 0 && n <= maxNicknameLength
}
