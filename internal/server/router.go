package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/toikobi401/MessengerClone/internal/auth"
	"github.com/toikobi401/MessengerClone/internal/blob"
	"github.com/toikobi401/MessengerClone/internal/email"
	"github.com/toikobi401/MessengerClone/internal/handler"
	"github.com/toikobi401/MessengerClone/internal/middleware"
	"github.com/toikobi401/MessengerClone/internal/presence"
	"github.com/toikobi401/MessengerClone/internal/socketio"
	"github.com/toikobi401/MessengerClone/internal/store"
)

type Deps struct {
	Store       store.Store
	TokenConfig auth.TokenConfig
	Email       email.Sender
	Blob        *blob.Client
	Presence    *presence.Table
	ClientURL   string
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	corsConfig := cors.DefaultConfig()
	if deps.ClientURL != "" {
		corsConfig.AllowOrigins = []string{deps.ClientURL}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	otpLimiter := middleware.NewRateLimiter(10, time.Minute)
	authHandler := &handler.AuthHandler{
		Store:       deps.Store,
		TokenConfig: deps.TokenConfig,
		Email:       deps.Email,
		OTPLimiter:  otpLimiter,
	}

	authGroup := r.Group("/api/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/verify-registration", authHandler.VerifyRegistration)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/verify-login", authHandler.VerifyLogin)
	authGroup.POST("/resend-otp", authHandler.ResendOTP)

	authProtected := authGroup.Group("")
	authProtected.Use(middleware.RequireAuth(deps.TokenConfig))
	authProtected.GET("/allusers/:id", authHandler.AllUsers)
	authProtected.POST("/setavatar/:id", authHandler.SetAvatar)

	protected := r.Group("/api")
	protected.Use(middleware.RequireAuth(deps.TokenConfig))

	userHandler := &handler.UserHandler{Store: deps.Store}
	protected.GET("/users/:id", userHandler.Get)
	protected.PUT("/users/:id", userHandler.Update)

	convHandler := &handler.ConversationHandler{Store: deps.Store}
	protected.POST("/conversations/init", convHandler.Init)
	protected.GET("/conversations", convHandler.List)
	protected.GET("/conversations/:id", convHandler.Get)

	msgHandler := &handler.MessageHandler{Store: deps.Store, Blob: deps.Blob}
	protected.POST("/messages/addmsg", msgHandler.Add)
	protected.GET("/messages/generate-signature", msgHandler.GenerateSignature)
	protected.PUT("/messages/edit", msgHandler.Edit)
	protected.GET("/messages/:conversationId", msgHandler.History)

	friendHandler := &handler.FriendHandler{Store: deps.Store}
	protected.GET("/friends/search", friendHandler.Search)
	protected.POST("/friends/add", friendHandler.Add)
	protected.GET("/friends/requests", friendHandler.Requests)
	protected.POST("/friends/accept", friendHandler.Accept)
	protected.POST("/friends/reject", friendHandler.Reject)
	protected.GET("/friends/list", friendHandler.List)

	table := deps.Presence
	if table == nil {
		table = presence.NewTable()
	}
	sio := socketio.NewServer(table)
	r.GET("/socket.io/", gin.WrapH(sio))
	r.POST("/socket.io/", gin.WrapH(sio))

	return r
}
