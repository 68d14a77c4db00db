package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/engine"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/observability"
)

const serviceName = "Crisis Intervention API"

type Options struct {
	Environment string
	// Escalations serves GET /api/escalations when set.
	Escalations http.Handler
	// RateLimit guards /api/v1 when set.
	RateLimit gin.HandlerFunc
}

type conversationAPI struct {
	engine *engine.Engine
}

func NewRouter(eng *engine.Engine, opts Options) *gin.Engine {
	if opts.Environment == "" {
		opts.Environment = "development"
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "OK",
			"service":     serviceName,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"environment": opts.Environment,
		})
	})
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "OK",
			"service":   serviceName,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	if opts.Escalations != nil {
		r.GET("/api/escalations", gin.WrapH(opts.Escalations))
	}

	api := &conversationAPI{engine: eng}
	v1 := r.Group("/api/v1")
	if opts.RateLimit != nil {
		v1.Use(opts.RateLimit)
	}
	{
		v1.POST("/conversations/:id/messages", api.SendMessage)
		v1.GET("/conversations/:id", api.GetConversation)
		v1.DELETE("/conversations/:id", api.ClearConversation)
	}

	return r
}

type SendMessageRequest struct {
	UserID  string `json:"userId"`
	Content string `json:"content"`
}

func (a *conversationAPI) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	reply := a.engine.Reply(c.Request.Context(), req.Content, c.Param("id"), req.UserID)
	c.JSON(http.StatusOK, reply)
}

func (a *conversationAPI) GetConversation(c *gin.Context) {
	sess, ok := a.engine.Session(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (a *conversationAPI) ClearConversation(c *gin.Context) {
	a.engine.Clear(c.Request.Context(), c.Param("id"))
	c.Status(http.StatusNoContent)
}

// requestLogger tags each request with an id and logs it once served.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(observability.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		observability.LoggerFromContext(c.Request.Context()).Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP())
	}
}
