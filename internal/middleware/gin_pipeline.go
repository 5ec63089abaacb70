package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinPipeline adapts the net/http Pipeline to Gin. Handlers read the caller
// with PrincipalFromContext(c.Request.Context()).
func GinPipeline(p *Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false

		// Bridge handler to allow net/http middleware execution
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})

		p.Handler(next).ServeHTTP(c.Writer, c.Request)

		// Pipeline already answered; stop the Gin chain.
		if !passed {
			c.Abort()
		}
	}
}
