package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"phalerts.app/server/internal/http/handler/webhook"
)

func AlertsRouter(rg *gin.RouterGroup, h *webhook.AlertsHandler) {
	rg.POST("/alerts", h.HandleNotification)
}

// OpsRouter registers the operational endpoints.
func OpsRouter(engine *gin.Engine) {
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
