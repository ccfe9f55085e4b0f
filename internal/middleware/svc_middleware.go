package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/sutenshah/ultra-events/internal/chat"
	"github.com/sutenshah/ultra-events/internal/ordering"
	"github.com/sutenshah/ultra-events/internal/payment"
	"github.com/sutenshah/ultra-events/internal/scan"
	"github.com/sutenshah/ultra-events/internal/shortlink"
	"github.com/sutenshah/ultra-events/internal/whatsapp"
)

// Services carries the wired application services handlers pull from the
// request context, same mechanism as the database injection above.
type Services struct {
	Orders   *ordering.Manager
	Scanner  *scan.Engine
	Chat     *chat.Machine
	Gateway  payment.Gateway
	Notifier whatsapp.Notifier
	Links    *shortlink.Service
}

func ServicesMiddleware(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("services", svc)
		c.Next()
	}
}

func GetServices(c *gin.Context) *Services {
	svc, exists := c.Get("services")
	if !exists {
		return nil
	}
	return svc.(*Services)
}
