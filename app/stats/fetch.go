package stats

import (
	"errors"
	"net/http"

	"bitwise74/beacon-api/internal"
	"bitwise74/beacon-api/internal/analytics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StatsFetch returns the aggregated stats of a public beacon.
func StatsFetch(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	summary, err := d.Aggregator.Summarize(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, analytics.ErrBeaconNotFound):
			d.Metrics.StatsQueries.WithLabelValues("not_found").Inc()

			c.JSON(http.StatusNotFound, gin.H{
				"error":     "Pixel not found",
				"requestID": requestID,
			})
		case errors.Is(err, analytics.ErrStatsPrivate):
			d.Metrics.StatsQueries.WithLabelValues("private").Inc()

			c.JSON(http.StatusForbidden, gin.H{
				"error":     "Stats are private",
				"requestID": requestID,
			})
		default:
			d.Metrics.StatsQueries.WithLabelValues("failed").Inc()

			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "Failed to fetch stats",
				"requestID": requestID,
			})

			zap.L().Error("Failed to summarize beacon", zap.Error(err), zap.String("requestID", requestID))
		}
		return
	}

	d.Metrics.StatsQueries.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, summary)
}
