package game

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/InfiniteDev0/JoinUp/apiclient"
	"github.com/InfiniteDev0/JoinUp/domain"
	"github.com/InfiniteDev0/JoinUp/notify"
)

// --- UserGetter ---

type MockUserGetter struct {
	mock.Mock
}

func (m *MockUserGetter) GetUser(ctx context.Context, uid string) (domain.User, error) {
	args := m.Called(ctx, uid)
	return args.Get(0).(domain.User), args.Error(1)
}

// --- ResultsSink ---

type MockResultsSink struct {
	mock.Mock
}

func (m *MockResultsSink) SaveGameResult(ctx context.Context, result apiclient.GameResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

// --- InviteSender ---

type MockInviteSender struct {
	mock.Mock
}

func (m *MockInviteSender) SendGameInvite(ctx context.Context, fromUID, toUID, roomID, gameName string) error {
	args := m.Called(ctx, fromUID, toUID, roomID, gameName)
	return args.Error(0)
}

// --- Notifier ---

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Push(ctx context.Context, uid string, n notify.Notification) error {
	args := m.Called(ctx, uid, n)
	return args.Error(0)
}

// --- PeriodicTickerChannelCreator ---

type MockPeriodicTickerChannelCreator struct {
	mock.Mock
}

func (m *MockPeriodicTickerChannelCreator) Create(duration time.Duration) (<-chan time.Time, func()) {
	args := m.Called(duration)
	return args.Get(0).(chan time.Time), args.Get(1).(func())
}
