package game

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// testRouter wires the room routes with a stub auth layer setting uid.
func testRouter(handler *roomHandler, uid string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if uid != "" {
			c.Set("uid", uid)
		}
		c.Next()
	})

	router.POST("/rooms", handler.CreateRoomHandler)
	router.POST("/rooms/join", handler.JoinRoomHandler)
	router.GET("/rooms/:id", handler.GetRoomHandler)
	router.POST("/rooms/:id/ready", handler.ToggleReadyHandler)
	router.POST("/rooms/:id/start", handler.StartGameHandler)
	router.POST("/rooms/:id/submit", handler.SubmitHandler)
	router.POST("/rooms/:id/game-ready", handler.MarkGameReadyHandler)
	router.POST("/rooms/:id/reveal", handler.RevealWordsHandler)
	router.POST("/rooms/:id/reset", handler.ResetRoomHandler)
	router.PUT("/rooms/:id/config", handler.ReconfigureRoomHandler)
	router.DELETE("/rooms/:id", handler.EndRoomHandler)
	router.GET("/rooms/:id/watch", handler.WatchRoomHandler)
	router.GET("/rooms/:id/qr", handler.QRCodeHandler)

	return router
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestCreateRoomHandler(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		uid          string
		body         string
		expectedCode int
		expectedBody string
	}{
		{
			name:         "missing uid",
			uid:          "",
			body:         `{"gameId":1,"category":"animals","timer":60,"maxPlayers":4}`,
			expectedCode: http.StatusInternalServerError,
			expectedBody: "unknown-error",
		},
		{
			name:         "invalid json",
			uid:          "host",
			body:         `{invalid}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: "bad-request-format",
		},
		{
			name:         "invalid config",
			uid:          "host",
			body:         `{"gameId":9,"category":"animals","timer":60,"maxPlayers":4}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: "invalid-room-config",
		},
		{
			name:         "success",
			uid:          "host",
			body:         `{"gameId":1,"category":"animals","timer":60,"maxPlayers":4}`,
			expectedCode: http.StatusCreated,
			expectedBody: `"status":"waiting"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newServiceFixture(t)
			f.users.On("GetUser", mock.Anything, "host").Return(user("host"), nil).Maybe()
			handler := NewRoomHandler(f.service, nil)
			router := testRouter(handler, tc.uid)

			res := doJSON(router, http.MethodPost, "/rooms", tc.body)

			assert.Equal(t, tc.expectedCode, res.Code)
			assert.Contains(t, res.Body.String(), tc.expectedBody)
		})
	}
}

func TestJoinRoomHandler(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	room := f.createRoom(t, triviaConfig())
	handler := NewRoomHandler(f.service, nil)

	f.expectUser("bob")
	router := testRouter(handler, "bob")

	res := doJSON(router, http.MethodPost, "/rooms/join", `{"code":"`+room.Code+`"}`)
	assert.Equal(t, http.StatusOK, res.Code)

	var joined Room
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &joined))
	assert.Len(t, joined.Players, 2)

	res = doJSON(router, http.MethodPost, "/rooms/join", `{"code":"ZZZZZZ"}`)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Contains(t, res.Body.String(), "room-not-found")

	res = doJSON(router, http.MethodPost, "/rooms/join", `{}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestStartGameHandler_NotHost(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	room := f.createRoom(t, triviaConfig(), "bob")
	handler := NewRoomHandler(f.service, nil)
	router := testRouter(handler, "bob")

	res := doJSON(router, http.MethodPost, "/rooms/"+room.ID+"/start", "")

	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, res.Body.String(), "not-host")
}

func TestSubmitHandler(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	room := f.createRoom(t, triviaConfig(), "bob")
	_, err := f.service.StartGame(context.Background(), "host", room.ID)
	require.NoError(t, err)

	handler := NewRoomHandler(f.service, nil)
	router := testRouter(handler, "bob")

	res := doJSON(router, http.MethodPost, "/rooms/"+room.ID+"/submit", `{"score":4}`)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"hasSubmitted":true`)

	// Neither score nor vote is a bad request.
	res = doJSON(router, http.MethodPost, "/rooms/"+room.ID+"/submit", `{}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestMarkGameReadyHandler(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	room := f.createRoom(t, imposterConfig(), "bob")
	_, err := f.service.StartGame(context.Background(), "host", room.ID)
	require.NoError(t, err)

	handler := NewRoomHandler(f.service, nil)
	router := testRouter(handler, "bob")

	res := doJSON(router, http.MethodPost, "/rooms/"+room.ID+"/game-ready", "")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"isGameReady":true`)

	res = doJSON(router, http.MethodPost, "/rooms/nope/game-ready", "")
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestEndRoomHandler(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	room := f.createRoom(t, triviaConfig(), "bob")
	_, err := f.service.StartGame(context.Background(), "host", room.ID)
	require.NoError(t, err)

	handler := NewRoomHandler(f.service, nil)

	res := doJSON(testRouter(handler, "bob"), http.MethodDelete, "/rooms/"+room.ID, "")
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = doJSON(testRouter(handler, "host"), http.MethodDelete, "/rooms/"+room.ID, "")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"status":"ended"`)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	handler := NewRoomHandler(f.service, nil)
	router := testRouter(handler, "spammer")

	// The per-session bucket holds 5 tokens; the burst beyond that is shed.
	limited := false
	for range 10 {
		res := doJSON(router, http.MethodPost, "/rooms/nope/ready", "")
		if res.Code == http.StatusTooManyRequests {
			limited = true
			assert.Contains(t, res.Body.String(), "too-many-requests")
			break
		}
		assert.Equal(t, http.StatusNotFound, res.Code)
	}
	assert.True(t, limited, "burst was never rate limited")
}

func TestQRCodeHandler(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	room := f.createRoom(t, triviaConfig())
	handler := NewRoomHandler(f.service, nil)
	router := testRouter(handler, "host")

	res := doJSON(router, http.MethodGet, "/rooms/"+room.ID+"/qr", "")

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "image/png", res.Header().Get("Content-Type"))
	assert.NotEmpty(t, res.Body.Bytes())
}

func TestWatchRoomHandler(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	room := f.createRoom(t, triviaConfig())
	handler := NewRoomHandler(f.service, nil)

	server := httptest.NewServer(testRouter(handler, "host"))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/rooms/" + room.ID + "/watch"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	// First frame is the current snapshot.
	conn.SetReadDeadline(time.Now().Add(time.Second))
	var initial RoomSnapshot
	require.NoError(t, conn.ReadJSON(&initial))
	require.True(t, initial.Exists)
	assert.Equal(t, room.ID, initial.Room.ID)

	// A write lands as the next frame.
	f.expectUser("bob")
	_, err = f.service.JoinRoom(context.Background(), "bob", room.Code)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var next RoomSnapshot
	require.NoError(t, conn.ReadJSON(&next))
	require.True(t, next.Exists)
	assert.Len(t, next.Room.Players, 2)
}

func TestWatchRoomHandler_NonMemberRejected(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	room := f.createRoom(t, triviaConfig())
	handler := NewRoomHandler(f.service, nil)
	router := testRouter(handler, "stranger")

	res := doJSON(router, http.MethodGet, "/rooms/"+room.ID+"/watch", "")

	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, res.Body.String(), "not-a-member")
}
