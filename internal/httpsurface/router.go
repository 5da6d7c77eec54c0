package httpsurface

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sabouaram/storegate/internal/filesystem"
	"github.com/sabouaram/storegate/internal/gwlog"
)

// API is the JSON route handler set over a filesystem.FileSystem.
type API struct {
	fs  *filesystem.FileSystem
	log *gwlog.Logger
}

// New constructs an API.
func New(fs *filesystem.FileSystem, log *gwlog.Logger) *API {
	return &API{fs: fs, log: log}
}

// CORS is a permissive cross-origin middleware using the same
// gin.HandlerFunc middleware shape as the rest of this package.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, If, Destination, Depth, Timeout, Lock-Token")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Register wires every JSON API route plus /metrics onto the given engine.
func (a *API) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/fs")
	api.Use(CORS(), authMiddleware)

	api.GET("/list", a.list)
	api.GET("/stat", a.stat)
	api.GET("/download", a.download)
	api.POST("/mkdir", a.mkdir)
	api.POST("/upload", a.upload)
	api.POST("/multipart/init", a.multipartInit)
	api.POST("/multipart/part", a.multipartPart)
	api.POST("/multipart/complete", a.multipartComplete)
	api.POST("/multipart/abort", a.multipartAbort)
	api.POST("/presign", a.presign)
	api.POST("/presign/commit", a.presignCommit)
	api.POST("/rename", a.rename)
	api.POST("/remove", a.remove)
	api.POST("/batch-remove", a.batchRemove)
	api.POST("/batch-copy", a.batchCopy)
	api.GET("/search", a.search)
	api.POST("/update", a.update)
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
