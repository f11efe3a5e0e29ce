package game

import (
	"context"
	"time"

	"github.com/InfiniteDev0/JoinUp/apiclient"
	"github.com/InfiniteDev0/JoinUp/domain"
)

// UserGetter resolves a uid into the profile embedded in room documents.
type UserGetter interface {
	GetUser(ctx context.Context, uid string) (domain.User, error)
}

// ResultsSink receives finished-game summaries, fire-and-forget.
type ResultsSink interface {
	SaveGameResult(ctx context.Context, result apiclient.GameResult) error
}

// InviteSender delivers room invites to friends through the backend.
type InviteSender interface {
	SendGameInvite(ctx context.Context, fromUID, toUID, roomID, gameName string) error
}

// PeriodicTickerChannelCreator abstracts ticker construction so round loops
// can be driven manually in tests. The stop function releases the underlying
// ticker once the loop is done with it.
type PeriodicTickerChannelCreator interface {
	Create(duration time.Duration) (<-chan time.Time, func())
}
