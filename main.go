package main

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/InfiniteDev0/JoinUp/apiclient"
	"github.com/InfiniteDev0/JoinUp/auth"
	"github.com/InfiniteDev0/JoinUp/crypto"
	"github.com/InfiniteDev0/JoinUp/docstore"
	"github.com/InfiniteDev0/JoinUp/game"
	"github.com/InfiniteDev0/JoinUp/logger"
	"github.com/InfiniteDev0/JoinUp/migrations"
	"github.com/InfiniteDev0/JoinUp/notify"
	"github.com/InfiniteDev0/JoinUp/storage"
)

const releaseVersion = "0.1.0"

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.GET("/health", func(ctx *gin.Context) { ctx.String(200, "healthy") })

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")

		if origin == "" || slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Authorization",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r
}

func serve(ctx context.Context, cfg *Config) error {
	logger.Setup(cfg.debug, cfg.prettyLog)

	var store docstore.Store
	if cfg.postgresURL != "" {
		if err := migrations.Migrate(cfg.postgresURL); err != nil {
			return err
		}
		pg, err := storage.NewPostgres(ctx, cfg.postgresURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		store = pg
		log.Info().Msg("using postgres document store")
	} else {
		store = docstore.NewMemory()
		log.Warn().Msg("no postgres url configured, using in-memory document store")
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.natsURL != "" {
		nc, err := notify.Connect(cfg.natsURL)
		if err != nil {
			return err
		}
		defer nc.Close()
		notifier = nc
		log.Info().Msg("push notifications enabled")
	}

	backend := apiclient.New(cfg.apiURL)
	tokenManager := crypto.NewJWTManager(cfg.jwtKey, time.Hour*24*7)

	service := game.NewService(store, backend, backend, backend, notifier,
		game.WithGraceDelay(cfg.graceDelay))
	if err := service.ResumeRoundLoops(ctx); err != nil {
		return err
	}
	roomHandler := game.NewRoomHandler(service, cfg.allowedOrigins)
	friendsHandler := game.NewFriendsHandler(backend)

	r := CreateServer(cfg.allowedOrigins)

	r.GET("/friends", auth.RequireAuth(tokenManager, time.Second*2), friendsHandler.ListFriendsHandler)

	{
		rooms := r.Group("/rooms")
		rooms.Use(auth.RequireAuth(tokenManager, time.Second*2))

		rooms.POST("", roomHandler.CreateRoomHandler)
		rooms.POST("/join", roomHandler.JoinRoomHandler)
		rooms.GET("/:id", roomHandler.GetRoomHandler)
		rooms.POST("/:id/ready", roomHandler.ToggleReadyHandler)
		rooms.POST("/:id/start", roomHandler.StartGameHandler)
		rooms.POST("/:id/submit", roomHandler.SubmitHandler)
		rooms.POST("/:id/game-ready", roomHandler.MarkGameReadyHandler)
		rooms.POST("/:id/reveal", roomHandler.RevealWordsHandler)
		rooms.POST("/:id/reset", roomHandler.ResetRoomHandler)
		rooms.POST("/:id/invite", roomHandler.InviteFriendHandler)
		rooms.PUT("/:id/config", roomHandler.ReconfigureRoomHandler)
		rooms.DELETE("/:id", roomHandler.EndRoomHandler)
		rooms.GET("/:id/watch", roomHandler.WatchRoomHandler)
		rooms.GET("/:id/qr", roomHandler.QRCodeHandler)
	}

	addr := fmt.Sprintf("%s:%d", cfg.bind, cfg.port)
	log.Info().Str("addr", addr).Msg("listening")
	return r.Run(addr)
}

func main() {
	cfg := &Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}
