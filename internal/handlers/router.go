package handlers

import (
	"strings"

	"bomflow/internal/config"
	"bomflow/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"
)

// RouterDeps 组装 HTTP 路由所需的依赖
type RouterDeps struct {
	Config   *config.Config
	DB       *gorm.DB
	Triggers *services.BomTriggerService
	Tasks    *services.TaskService      // 为 nil 时不挂载任务接口
	Hub      *services.NotificationHub  // 为 nil 时不挂载 websocket
	Gatherer prometheus.Gatherer        // 为 nil 时使用默认注册表
	Version  string
}

// NewRouter 创建 gin 引擎并注册全部路由
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	if cfg.Monitoring.Tracing.Enabled {
		router.Use(otelgin.Middleware(cfg.Monitoring.Tracing.ServiceName))
	}
	if cfg.Security.CORS.Enabled {
		router.Use(corsMiddleware(cfg.Security.CORS))
	}

	var hubStatus HubStatus
	if deps.Hub != nil {
		hubStatus = deps.Hub
	}
	health := NewEnhancedHealthHandler(deps.DB, hubStatus, deps.Version)
	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)

	if cfg.Monitoring.Enabled {
		gatherer := deps.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		path := cfg.Monitoring.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	if deps.Hub != nil && cfg.Notifications.WebSocket.Enabled {
		router.GET(cfg.Notifications.WebSocket.Path, deps.Hub.HandleWebSocket)
	}

	api := router.Group("/api")
	NewBomTriggerHandler(deps.Triggers).RegisterRoutes(api)
	if deps.Tasks != nil {
		NewTaskHandler(deps.Tasks).RegisterRoutes(api)
	}

	return router
}

func corsMiddleware(cc config.CORSConfig) gin.HandlerFunc {
	methods := strings.Join(append(append([]string{}, cc.AllowedMethods...), "OPTIONS"), ", ")
	headers := "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With"
	if len(cc.AllowedHeaders) > 0 && cc.AllowedHeaders[0] != "*" {
		headers = strings.Join(cc.AllowedHeaders, ", ")
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		for _, allowed := range cc.AllowedOrigins {
			if allowed == "*" {
				c.Header("Access-Control-Allow-Origin", "*")
				break
			}
			if allowed == origin {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				break
			}
		}
		c.Header("Access-Control-Allow-Headers", headers)
		c.Header("Access-Control-Allow-Methods", methods)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
