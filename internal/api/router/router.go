package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanosuguru/go-simple-meetup/internal/api"
	"github.com/sanosuguru/go-simple-meetup/internal/api/handler"
	"github.com/sanosuguru/go-simple-meetup/internal/api/middleware"
	"github.com/sanosuguru/go-simple-meetup/internal/config"
	"github.com/sanosuguru/go-simple-meetup/internal/pkg/clock"
	"github.com/sanosuguru/go-simple-meetup/internal/pkg/metrics"
)

// Deps はルーター構築に必要な依存
type Deps struct {
	EventService handler.EventServiceInterface
	Clock        clock.Clock
	Metrics      *metrics.Metrics
	// Gatherer は /metrics で公開するレジストリ（nil ならデフォルト）
	Gatherer     prometheus.Gatherer
	MetricsAuth  config.MetricsConfig
	HealthChecks map[string]handler.HealthCheck
}

// New はミドルウェアとルートを設定した Echo を作成する
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler

	middleware.SetupMiddleware(e)
	if d.Metrics != nil {
		e.Use(middleware.PrometheusMiddleware(d.Metrics))
	}

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	e.GET("/health", handler.NewHealthHandler(d.HealthChecks).Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})),
		middleware.MetricsBasicAuth(d.MetricsAuth))

	eventHandler := handler.NewEventHandler(d.EventService, d.Clock)
	eventHandler.RegisterRoutes(e.Group(api.EventsPath))

	return e
}
