package track

import (
	"encoding/base64"
	"net/http"

	"bitwise74/beacon-api/internal"
	"bitwise74/beacon-api/internal/tracking"

	"github.com/gin-gonic/gin"
)

// Transparent 1x1 GIF
var pixel, _ = base64.StdEncoding.DecodeString("R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7")

// BeaconFetch serves the tracking image. The response is the same whatever
// happens to the event, including for unknown or expired beacons.
func BeaconFetch(c *gin.Context, d *internal.Deps) {
	d.Ingestor.Ingest(c.Request.Context(), tracking.Fetch{
		BeaconID:  c.Param("id"),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
		ClientIP:  c.ClientIP(),
	})

	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, "image/gif", pixel)
}
