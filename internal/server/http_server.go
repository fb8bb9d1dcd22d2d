package server

import (
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// Run serves the router on PORT (default 8080) until the process exits.
func Run(router *gin.Engine) {
	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	log.Printf("listening on %s", addr)
	if err := router.Run(addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server stopped: %v", err)
	}
}
