// Package app wires the dependencies together and exposes the HTTP routes
package app

import (
	"fmt"
	"strings"
	"time"

	"bitwise74/beacon-api/app/beacon"
	"bitwise74/beacon-api/app/root"
	"bitwise74/beacon-api/app/stats"
	"bitwise74/beacon-api/app/track"
	"bitwise74/beacon-api/db"
	"bitwise74/beacon-api/internal"
	"bitwise74/beacon-api/internal/admission"
	"bitwise74/beacon-api/internal/analytics"
	"bitwise74/beacon-api/internal/classify"
	"bitwise74/beacon-api/internal/metrics"
	"bitwise74/beacon-api/internal/service"
	"bitwise74/beacon-api/internal/tracking"
	"bitwise74/beacon-api/pkg/middleware"
	"bitwise74/beacon-api/pkg/security"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"

	maxCreateBody = 256 << 10
)

type App struct {
	Router *gin.Engine
	Deps   *internal.Deps

	maintenance *service.Maintenance
	closers     []func() error
}

// RouterOpts holds the HTTP level settings that aren't dependencies.
type RouterOpts struct {
	CORSOrigins       []string
	TrustedPlatform   string
	TrustedProxies    []string
	Turnstile         middleware.TurnstileConfig
	RateLimiter       *middleware.RateLimiter
	StatsCacheSeconds int
}

// New builds every dependency from the loaded config and returns a ready to
// run app.
func New() (*App, error) {
	makeLogger()

	a := &App{}

	database, err := db.New(viper.GetString("db.driver"), viper.GetString("db.dsn"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	m := metrics.New()

	admissionCfg := admission.Config{
		Limit:  viper.GetInt("admission.limit"),
		Window: viper.GetDuration("admission.window"),
	}

	var (
		controller admission.Controller
		memory     *admission.Memory
	)

	switch viper.GetString("admission.store") {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		})
		a.closers = append(a.closers, client.Close)

		controller = admission.NewRedis(client, admissionCfg, "beacon:admission")
	default:
		memory = admission.NewMemory(admissionCfg, time.Now)
		controller = memory
	}

	var resolver classify.GeoResolver = classify.NoopResolver{}
	if viper.GetBool("geo.enabled") {
		cached := classify.NewCachedResolver(
			classify.NewIPAPI(viper.GetString("geo.endpoint"), viper.GetDuration("geo.timeout")),
			viper.GetDuration("geo.cache_ttl"),
			viper.GetInt("geo.cache_size"),
		)
		a.closers = append(a.closers, cached.Close)

		resolver = cached
	}

	hasher := security.NewIdentityHasher(viper.GetBool("privacy.hash_ips"), viper.GetString("privacy.salt"))

	a.Deps = &internal.Deps{
		DB:        database,
		Admission: controller,
		Ingestor: tracking.NewIngestor(tracking.IngestorOpts{
			DB:           database,
			Hasher:       hasher,
			Locator:      classify.NewLocator(resolver),
			Metrics:      m,
			UniqueWindow: viper.GetDuration("tracking.unique_window"),
			SetupWindow:  viper.GetDuration("tracking.setup_window"),
			Timeout:      viper.GetDuration("tracking.timeout"),
		}),
		Aggregator: &analytics.Aggregator{DB: database},
		Hasher:     hasher,
		Metrics:    m,
		PublicURL:  viper.GetString("host.public_url"),
	}

	opts := RouterOpts{
		CORSOrigins:     splitList(viper.GetString("host.cors")),
		TrustedPlatform: viper.GetString("host.trusted_platform"),
		TrustedProxies:  splitList(viper.GetString("host.trusted_proxies")),
		Turnstile: middleware.TurnstileConfig{
			Enabled:   viper.GetBool("cloudflare.turnstile.enabled"),
			Secret:    viper.GetString("cloudflare.turnstile.secret_token"),
			VerifyURL: viper.GetString("cloudflare.turnstile.verify_url"),
		},
		StatsCacheSeconds: viper.GetInt("stats.cache_seconds"),
	}

	if rps := viper.GetFloat64("security.rate_limit"); rps > 0 {
		opts.RateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{RequestsPerSecond: rps})
	}

	a.Router, err = Routes(a.Deps, opts)
	if err != nil {
		return nil, err
	}

	var admissionSweeper, limiterSweeper service.Sweeper
	if memory != nil {
		admissionSweeper = memory
	}
	if opts.RateLimiter != nil {
		limiterSweeper = opts.RateLimiter
	}

	if admissionSweeper != nil || limiterSweeper != nil {
		a.maintenance, err = service.NewMaintenance(viper.GetDuration("admission.sweep_interval"), m, admissionSweeper, limiterSweeper)
		if err != nil {
			return nil, err
		}

		a.maintenance.Start()
	}

	return a, nil
}

// Routes builds the engine. It's split from New so tests can hand in their
// own dependencies.
func Routes(d *internal.Deps, opts RouterOpts) (*gin.Engine, error) {
	router := gin.New()

	router.TrustedPlatform = opts.TrustedPlatform
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies, %w", err)
	}

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "TurnstileToken"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(opts.CORSOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = opts.CORSOrigins
	}

	router.Use(
		cors.New(corsCfg),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true

	// The tracking route is never throttled, it must always answer with the
	// image
	var throttle gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if opts.RateLimiter != nil {
		throttle = opts.RateLimiter.Handler()
	}

	turnstile := middleware.NewTurnstileMiddleware(opts.Turnstile)

	m := router.Group("/api")
	{
		// HEAD /api/heartbeat 		-> Used to check if the server and database are alive
		m.HEAD("/heartbeat", func(c *gin.Context) { root.Heartbeat(c, d) })

		// POST /api/pixels		-> Creates a new beacon
		m.POST("/pixels", throttle, turnstile, middleware.BodySizeLimiter(maxCreateBody), func(c *gin.Context) { beacon.BeaconCreate(c, d) })

		// GET /api/track/:id		-> Serves the tracking image and records the open
		m.GET("/track/:id", func(c *gin.Context) { track.BeaconFetch(c, d) })

		// GET /api/stats/:id		-> Returns the aggregated stats of a beacon
		statsHandlers := []gin.HandlerFunc{throttle}
		if opts.StatsCacheSeconds > 0 {
			store := persist.NewMemoryStore(time.Minute)
			statsHandlers = append(statsHandlers, cacheFor(store, opts.StatsCacheSeconds))
		}
		statsHandlers = append(statsHandlers, func(c *gin.Context) { stats.StatsFetch(c, d) })
		m.GET("/stats/:id", statsHandlers...)
	}

	// GET /metrics			-> Prometheus metrics
	router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	return router, nil
}

// Close stops background jobs and releases connections.
func (a *App) Close() error {
	if a.maintenance != nil {
		a.maintenance.Stop()
	}

	for _, closer := range a.closers {
		if err := closer(); err != nil {
			zap.L().Warn("Failed to close dependency", zap.Error(err))
		}
	}

	sqlDB, err := a.Deps.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	if lvl, err := zapcore.ParseLevel(viper.GetString("app.log_level")); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}

func cacheFor(store persist.CacheStore, sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(store, time.Second*time.Duration(sec))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
