package game

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
	"golang.org/x/time/rate"

	"github.com/InfiniteDev0/JoinUp/domain"
)

var (
	ErrRoomNotFoundStr         = "room-not-found"
	ErrRoomFullStr             = "room-full"
	ErrGameAlreadyStartedStr   = "game-already-started"
	ErrNotHostStr              = "not-host"
	ErrPlayersNotReadyStr      = "players-not-ready"
	ErrNotMemberStr            = "not-a-member"
	ErrNotEnoughPlayersStr     = "not-enough-players"
	ErrWrongStatusStr          = "wrong-room-status"
	ErrInvalidConfigStr        = "invalid-room-config"
	ErrUserNotFoundStr         = "user-not-found"
	ErrInvalidRequestFormatStr = "bad-request-format"
	ErrTooManyRequestsStr      = "too-many-requests"
	ErrServerTimeoutStr        = "server-timeout"
	ErrUnknownStr              = "unknown-error"
)

type roomHandler struct {
	service *Service

	// One token bucket per session uid. Mutations are cheap single-document
	// transforms, so the limit exists to absorb tap-happy clients, not load.
	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter

	upgrader websocket.Upgrader
}

func NewRoomHandler(service *Service, allowedOrigins []string) *roomHandler {
	return &roomHandler{
		service:  service,
		limiters: make(map[string]*rate.Limiter),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					// Non-browser clients carry no Origin header.
					return true
				}
				for _, allowed := range allowedOrigins {
					if origin == allowed {
						return true
					}
				}
				return false
			},
		},
	}
}

// uid returns the session uid set by the auth middleware. An empty uid on a
// protected route is a wiring bug, reported the loud way.
func (h *roomHandler) uid(ctx *gin.Context) string {
	uid := ctx.GetString("uid")
	if uid == "" {
		log.Error().
			Str("ip", ctx.ClientIP()).
			Str("user_agent", ctx.Request.UserAgent()).
			Msg("uid not found, what is the middleware doing?")
		ctx.String(http.StatusInternalServerError, ErrUnknownStr)
		ctx.Abort()
	}
	return uid
}

func (h *roomHandler) allow(ctx *gin.Context, uid string) bool {
	h.limitersMu.Lock()
	limiter, ok := h.limiters[uid]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(200*time.Millisecond), 5)
		h.limiters[uid] = limiter
	}
	h.limitersMu.Unlock()

	if limiter.Allow() {
		return true
	}
	ctx.String(http.StatusTooManyRequests, ErrTooManyRequestsStr)
	ctx.Abort()
	return false
}

func (h *roomHandler) writeError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		ctx.String(http.StatusNotFound, ErrRoomNotFoundStr)
	case errors.Is(err, ErrRoomFull):
		ctx.String(http.StatusConflict, ErrRoomFullStr)
	case errors.Is(err, ErrGameAlreadyStarted):
		ctx.String(http.StatusConflict, ErrGameAlreadyStartedStr)
	case errors.Is(err, ErrNotHost):
		ctx.String(http.StatusForbidden, ErrNotHostStr)
	case errors.Is(err, ErrPlayersNotReady):
		ctx.String(http.StatusConflict, ErrPlayersNotReadyStr)
	case errors.Is(err, ErrNotMember):
		ctx.String(http.StatusForbidden, ErrNotMemberStr)
	case errors.Is(err, ErrNotEnoughPlayers):
		ctx.String(http.StatusConflict, ErrNotEnoughPlayersStr)
	case errors.Is(err, ErrWrongStatus):
		ctx.String(http.StatusConflict, ErrWrongStatusStr)
	case errors.Is(err, ErrInvalidConfig):
		ctx.String(http.StatusBadRequest, ErrInvalidConfigStr)
	case errors.Is(err, domain.ErrUserNotFound):
		ctx.String(http.StatusNotFound, ErrUserNotFoundStr)
	case errors.Is(err, context.DeadlineExceeded):
		ctx.String(http.StatusGatewayTimeout, ErrServerTimeoutStr)
	case errors.Is(err, context.Canceled):
		ctx.Status(499)
	default:
		log.Error().
			Err(err).
			Str("ip", ctx.ClientIP()).
			Str("user_agent", ctx.Request.UserAgent()).
			Str("path", ctx.FullPath()).
			Msg("unexpected room action error")
		ctx.String(http.StatusInternalServerError, ErrUnknownStr)
	}
	ctx.Abort()
}

func (h *roomHandler) CreateRoomHandler(ctx *gin.Context) {
	uid := h.uid(ctx)
	if uid == "" || !h.allow(ctx, uid) {
		return
	}

	var cfg RoomConfig
	if err := ctx.ShouldBindJSON(&cfg); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	room, err := h.service.CreateRoom(ctx.Request.Context(), uid, cfg)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, room)
}

func (h *roomHandler) JoinRoomHandler(ctx *gin.Context) {
	uid := h.uid(ctx)
	if uid == "" || !h.allow(ctx, uid) {
		return
	}

	var body struct {
		Code string `json:"code" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	room, err := h.service.JoinRoom(ctx.Request.Context(), uid, body.Code)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, room)
}

func (h *roomHandler) ToggleReadyHandler(ctx *gin.Context) {
	uid := h.uid(ctx)
	if uid == "" || !h.allow(ctx, uid) {
		return
	}

	room, err := h.service.ToggleReady(ctx.Request.Context(), uid, ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, room)
}

func (h *roomHandler) StartGameHandler(ctx *gin.Context) {
	uid := h.uid(ctx)
	if uid == "" || !h.allow(ctx, uid) {
		return
	}

	room, err := h.service.StartGame(ctx.Request.Context(), uid, ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, room)
}

// SubmitHandler records the caller's round result: a trivia score, or an
// imposter vote when the body carries a vote target.
func (h *roomHandler) SubmitHandler(ctx *gin.Context) {
	uid := h.uid(ctx)
	if uid == "" || !h.allow(ctx, uid) {
		return
	}

	var body struct {
		Score *int   `json:"score"`
		Vote  string `json:"vote"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	var (
		room Room
		err  error
	)
	switch {
	case body.Vote != "":
		room, err = h.service.CastVote(ctx.Request.Context(), uid, ctx.Param("id"), body.Vote)
	case body.Score != nil:
		room, err = h.service.SubmitScore(ctx.Request.Context(), uid, ctx.Param("id"), *body.Score)
	default:
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, room)
}

func (h *roomHandler) MarkGameReadyHandler(ctx *gin.Context) {
	uid := h.uid(ctx)
	if uid == "" || !h.allow(ctx, uid) {
		return
	}

	room, err := h.service.MarkGameReady(ctx.Request.Context(), uid, ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, room)
}

func (h *roomHandler) RevealWordsHandler(ctx *gin.Context) {
	uid := h.uid(ctx)
	if uid == "" || !h.allow(ctx, uid) {
		return
	}

	room, err := h.service.RevealWords(ctx.Request.Context(), uid, ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, room)
}

func (h *roomHandler) ResetRoomHandler(ctx *gin.Context) {
	uid := h.uid(ctx)
	if uid == "" || !h.allow(ctx, uid) {
		return
	}

	room, err := h.service.ResetForNewRound(ctx.Request.Context(), uid, ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, room)
}

func (h *roomHandler) ReconfigureRoomHandler(ctx *gin.Context) {
	uid := h.uid(ctx)
	if uid == "" || !h.allow(ctx, uid) {
		return
	}

	var cfg RoomConfig
	if err := ctx.ShouldBindJSON(&cfg); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	room, err := h.service.Reconfigure(ctx.Request.Context(), uid, ctx.Param("id"), cfg)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, room)
}

func (h *roomHandler) EndRoomHandler(ctx *gin.Context) {
	uid := h.uid(ctx)
	if uid == "" || !h.allow(ctx, uid) {
		return
	}

	room, err := h.service.EndRoom(ctx.Request.Context(), uid, ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, room)
}

func (h *roomHandler) GetRoomHandler(ctx *gin.Context) {
	uid := h.uid(ctx)
	if uid == "" {
		return
	}

	room, err := h.service.GetRoom(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, room)
}

func (h *roomHandler) InviteFriendHandler(ctx *gin.Context) {
	uid := h.uid(ctx)
	if uid == "" || !h.allow(ctx, uid) {
		return
	}

	var body struct {
		ToUID string `json:"toUid" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	if err := h.service.InviteFriend(ctx.Request.Context(), uid, body.ToUID, ctx.Param("id")); err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// QRCodeHandler renders the room's join code as a PNG, for the
// scan-to-join flow.
func (h *roomHandler) QRCodeHandler(ctx *gin.Context) {
	uid := h.uid(ctx)
	if uid == "" {
		return
	}

	room, err := h.service.GetRoom(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	size := 256
	png, err := qrcode.Encode(strings.ToUpper(room.Code), qrcode.Medium, size)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.Data(http.StatusOK, "image/png", png)
}

// WatchRoomHandler upgrades to a WebSocket and streams room snapshots. The
// first frame is the current state, so a freshly (re)connected client needs
// nothing else to render; the final frame has exists=false when the room
// document was deleted.
func (h *roomHandler) WatchRoomHandler(ctx *gin.Context) {
	uid := h.uid(ctx)
	if uid == "" {
		return
	}
	roomID := ctx.Param("id")

	room, err := h.service.GetRoom(ctx.Request.Context(), roomID)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	if room.PlayerIndex(uid) < 0 {
		ctx.String(http.StatusForbidden, ErrNotMemberStr)
		ctx.Abort()
		return
	}

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("ip", ctx.ClientIP()).Msg("websocket upgrade failed")
		return
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	snapshots, stop, err := h.service.Watch(watchCtx, roomID)
	if err != nil {
		cancel()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, ErrUnknownStr))
		conn.Close()
		return
	}

	conn.SetReadDeadline(time.Now().Add(time.Minute))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(time.Minute))
		return nil
	})

	// Read pump: the client never sends data frames, but reading is what
	// surfaces pongs and the close frame.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go h.streamSnapshots(watchCtx, conn, snapshots, stop, cancel)
}

func (h *roomHandler) streamSnapshots(ctx context.Context, conn *websocket.Conn, snapshots <-chan RoomSnapshot, stop, cancel func()) {
	defer func() {
		stop()
		cancel()
		conn.Close()
	}()

	pings := time.NewTicker(30 * time.Second)
	defer pings.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pings.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
			if !snap.Exists {
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room-deleted"))
				return
			}
		}
	}
}
