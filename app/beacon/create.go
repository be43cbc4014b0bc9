package beacon

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"bitwise74/beacon-api/internal"
	"bitwise74/beacon-api/internal/model"
	"bitwise74/beacon-api/internal/tracking"
	"bitwise74/beacon-api/pkg/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createBody struct {
	Label       *string         `json:"label"`
	ExpiresIn   string          `json:"expiresIn"`
	StatsPublic *bool           `json:"statsPublic"`
	Fingerprint json.RawMessage `json:"fingerprint"`
	BrowserData json.RawMessage `json:"browserData"`
}

type createResponse struct {
	ID          string `json:"id"`
	TrackingURL string `json:"trackingUrl"`
	StatsURL    string `json:"statsUrl"`
}

// BeaconCreate registers a new beacon and hands back the links to embed and
// to check its stats.
func BeaconCreate(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	ip := c.ClientIP()

	admitted, err := d.Admission.Admit(c.Request.Context(), ip)
	if err != nil {
		zap.L().Warn("Admission store failed, letting request through", zap.Error(err), zap.String("requestID", requestID))
	}

	if !admitted {
		d.Metrics.BeaconsCreated.WithLabelValues("rate_limited").Inc()

		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":     "Rate limit exceeded. Please try again later.",
			"requestID": requestID,
		})
		return
	}

	var data createBody
	if err := c.ShouldBindJSON(&data); err != nil {
		d.Metrics.BeaconsCreated.WithLabelValues("invalid").Inc()

		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":     "Request body size exceeds limit",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})

		zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	lifetime, err := validators.ExpirationValidator(data.ExpiresIn)
	if err != nil {
		d.Metrics.BeaconsCreated.WithLabelValues("invalid").Inc()

		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	if data.Label != nil {
		if trimmed := strings.TrimSpace(*data.Label); trimmed != "" {
			data.Label = &trimmed
		} else {
			data.Label = nil
		}
	}

	if err := validators.LabelValidator(data.Label); err != nil {
		d.Metrics.BeaconsCreated.WithLabelValues("invalid").Inc()

		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	now := time.Now().UTC()
	expiresAt := now.Add(lifetime)

	b := model.Beacon{
		Label:       data.Label,
		CreatedAt:   now,
		ExpiresAt:   &expiresAt,
		StatsPublic: data.StatsPublic == nil || *data.StatsPublic,
	}

	if err := d.DB.WithContext(c.Request.Context()).Create(&b).Error; err != nil {
		d.Metrics.BeaconsCreated.WithLabelValues("failed").Inc()

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Failed to create pixel",
			"requestID": requestID,
		})

		zap.L().Error("Failed to create beacon", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	storeCreator(c, d, b.ID, &data)

	d.Metrics.BeaconsCreated.WithLabelValues("created").Inc()

	base := baseURL(c, d.PublicURL)
	c.JSON(http.StatusOK, createResponse{
		ID:          b.ID,
		TrackingURL: base + "/api/track/" + b.ID,
		StatsURL:    base + "/stats/" + b.ID,
	})
}

// storeCreator remembers who generated the beacon so their own fetches are
// not counted. Failing here never fails the creation.
func storeCreator(c *gin.Context, d *internal.Deps, beaconID string, data *createBody) {
	requestID := c.GetString("requestID")

	creator, err := tracking.BuildCreatorProfile(tracking.ProfileInput{
		BeaconID:    beaconID,
		Identity:    d.Hasher.Identity(c.ClientIP()),
		UserAgent:   c.Request.UserAgent(),
		Fingerprint: data.Fingerprint,
		BrowserData: data.BrowserData,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		if !errors.Is(err, tracking.ErrNoFingerprint) {
			zap.L().Warn("Failed to build creator profile", zap.Error(err), zap.String("requestID", requestID))
		}
		return
	}

	if err := d.DB.WithContext(c.Request.Context()).Create(creator).Error; err != nil {
		zap.L().Error("Failed to store creator profile", zap.Error(err), zap.String("requestID", requestID))
	}
}

func baseURL(c *gin.Context, public string) string {
	if public != "" {
		return strings.TrimRight(public, "/")
	}

	// Forwarded headers come from the client unless a proxy rewrites them,
	// so deployments behind TLS terminators set host.public_url instead
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}

	return scheme + "://" + c.Request.Host
}
