package http

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed web
var webAssets embed.FS

func mountWeb(router *gin.Engine) {
	index, err := webAssets.ReadFile("web/index.html")
	if err != nil {
		panic(err)
	}
	static, err := fs.Sub(webAssets, "web")
	if err != nil {
		panic(err)
	}
	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", index)
	})
	router.StaticFS("/static", http.FS(static))
}
