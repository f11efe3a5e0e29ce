package game

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/InfiniteDev0/JoinUp/domain"
)

// FriendsLister is the backend's friends list, shown when picking who to
// invite into a room.
type FriendsLister interface {
	GetFriends(ctx context.Context, uid string) ([]domain.User, error)
}

type friendsHandler struct {
	friends FriendsLister
}

func NewFriendsHandler(friends FriendsLister) *friendsHandler {
	return &friendsHandler{friends: friends}
}

func (h *friendsHandler) ListFriendsHandler(ctx *gin.Context) {
	uid := ctx.GetString("uid")
	if uid == "" {
		ctx.String(http.StatusInternalServerError, ErrUnknownStr)
		ctx.Abort()
		return
	}

	friends, err := h.friends.GetFriends(ctx.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			ctx.String(http.StatusNotFound, ErrUserNotFoundStr)
		} else {
			ctx.String(http.StatusBadGateway, ErrUnknownStr)
		}
		ctx.Abort()
		return
	}
	if friends == nil {
		friends = []domain.User{}
	}
	ctx.JSON(http.StatusOK, friends)
}
