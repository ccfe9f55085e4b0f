package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sutenshah/ultra-events/internal/helpers"
	"github.com/sutenshah/ultra-events/internal/middleware"
)

// ResolveShortLink redirects /s/:id to the full URL it was minted for.
// Links expire with the payment window, so a stale id is a 404.
func ResolveShortLink(c *gin.Context) {
	svc := middleware.GetServices(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Services not configured.")
		return
	}

	target, found, err := svc.Links.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to resolve link.")
		return
	}
	if !found {
		helpers.RespondWithError(c, http.StatusNotFound, "This link has expired.")
		return
	}
	c.Redirect(http.StatusFound, target)
}
