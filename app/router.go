package app

import (
	"context"
	"net/http"
	"time"

	"github.com/h3nryswan/video-transcoder/app/file"
	"github.com/h3nryswan/video-transcoder/app/job"
	"github.com/h3nryswan/video-transcoder/app/root"
	"github.com/h3nryswan/video-transcoder/app/user"
	"github.com/h3nryswan/video-transcoder/internal"
	"github.com/h3nryswan/video-transcoder/pkg/middleware"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// room for the multipart envelope around the file itself
const multipartOverhead = 1 << 20

// NewRouter wires every route to its handler. ctx bounds the background
// goroutines owned by the middleware.
func NewRouter(ctx context.Context, d *internal.Deps) *gin.Engine {
	router := gin.New()

	if len(d.Config.Host.CORS) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     d.Config.Host.CORS,
			AllowMethods:     []string{"GET", "HEAD", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "TurnstileToken", "Range"},
			ExposeHeaders:    []string{"Content-Length", "Content-Range", "Content-Disposition", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.Use(
		ginzap.RecoveryWithZap(zap.L(), true),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: time.RFC3339,
			UTC:        true,
			SkipPaths:  []string{"/metrics", "/api/heartbeat"},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{zap.String("requestID", c.GetString("requestID"))}
				if userID := c.GetString("userID"); userID != "" {
					fields = append(fields, zap.String("user_id", userID))
				}
				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Not found",
			"requestID": c.GetString("requestID"),
		})
	})

	jwt := middleware.NewJWTMiddleware([]byte(d.Config.JWT.Secret))
	turnstile := middleware.NewTurnstileMiddleware(d.Config.Security.TurnstileSecret)
	cacheStore := persist.NewMemoryStore(time.Minute)

	m := router.Group("/api")
	if rps := d.Config.Security.RateLimit; rps > 0 {
		m.Use(middleware.RateLimiterMiddleware(ctx, middleware.RateLimiterConfig{
			RequestsPerSecond: rps,
			Burst:             rps * 2,
		}))
	}

	{
		// HEAD /api/heartbeat		-> Used to check if the server is alive
		m.HEAD("/heartbeat", root.Heartbeat)

		// GET /api/health		-> Same, for clients that want a body
		m.GET("/health", root.Health)

		// GET /api/encoder		-> Version of the encoder binary in use
		m.GET("/encoder", cache.CacheByRequestURI(cacheStore, 5*time.Minute), func(c *gin.Context) { root.EncoderInfo(c, d) })

		// POST /api/login		-> Exchanges credentials for a JWT
		m.POST("/login", turnstile, func(c *gin.Context) { user.UserLogin(c, d) })
	}

	a := m.Group("", jwt)
	{
		// GET /api/users/me		-> Returns who the token belongs to
		a.GET("/users/me", user.UserFetch)

		// POST /api/upload		-> Stores a new original file
		a.POST("/upload", middleware.BodySizeLimiter(d.Config.Upload.MaxBytes+multipartOverhead), func(c *gin.Context) { file.FileUpload(c, d) })

		// GET /api/files		-> Lists the caller's files, newest first
		a.GET("/files", func(c *gin.Context) { file.FileList(c, d) })

		// GET /api/files/:id		-> Returns a file record if the caller owns it
		a.GET("/files/:id", func(c *gin.Context) { file.FileFetch(c, d) })

		// GET /api/files/:id/download	-> Streams the file itself
		a.GET("/files/:id/download", func(c *gin.Context) { file.FileDownload(c, d) })

		// POST /api/transcode/:id	-> Queues a transcode of an original file
		a.POST("/transcode/:id", func(c *gin.Context) { job.JobTranscode(c, d) })

		// GET /api/jobs		-> Lists the caller's jobs, newest first
		a.GET("/jobs", func(c *gin.Context) { job.JobList(c, d) })

		// GET /api/jobs/:id		-> Returns a job record for polling
		a.GET("/jobs/:id", func(c *gin.Context) { job.JobFetch(c, d) })
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
