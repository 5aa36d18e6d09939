package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yassineAchour0609/MediLink-sub000/controllers"
	"github.com/yassineAchour0609/MediLink-sub000/middlewares"
	"github.com/yassineAchour0609/MediLink-sub000/services"
)

// Deps collects everything the router wires together.
type Deps struct {
	Tokens    *services.TokenService
	Accounts  *controllers.AccountController
	Messages  *controllers.MessageController
	WS        *controllers.WSController
	UploadDir string
}

// New builds the gin engine with CORS, the auth endpoints, the messaging
// surface, static uploads, and the websocket upgrade.
func New(deps Deps) *gin.Engine {
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/ws", deps.WS.Handle)
	r.Static("/uploads", deps.UploadDir)

	r.POST("/auth/register", deps.Accounts.Register)
	r.POST("/auth/login", deps.Accounts.Login)

	m := r.Group("/messages")
	m.Use(middlewares.TokenAuth(deps.Tokens))
	{
		m.POST("", deps.Messages.Send)
		m.GET("/conversation/:otherId", deps.Messages.Conversation)
		m.GET("/list/all", deps.Messages.ListAll)
		m.POST("/conversations", deps.Messages.EnsureConversation)
		m.PUT("/:id/read", deps.Messages.MarkRead)
		m.DELETE("/:id", deps.Messages.Delete)
		m.DELETE("/conversation/:otherId", deps.Messages.DeleteConversation)
		m.POST("/upload", deps.Messages.Upload)
	}

	return r
}
