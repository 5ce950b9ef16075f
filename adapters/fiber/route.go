package fiber

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"go.uber.org/zap"

	"github.com/lborres/bantay"
	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/services"
)

const defaultBasePath = "/api"

type Adapter struct {
	app      *fiber.App
	basePath string
	metrics  http.Handler
}

var _ bantay.HTTPAdapter = (*Adapter)(nil)

type Option func(*Adapter)

// WithBasePath mounts the dashboard routes under path instead of /api
func WithBasePath(path string) Option {
	return func(a *Adapter) { a.basePath = path }
}

// WithMetrics serves h on GET /metrics
func WithMetrics(h http.Handler) Option {
	return func(a *Adapter) { a.metrics = h }
}

func New(app *fiber.App, opts ...Option) *Adapter {
	a := &Adapter{app: app, basePath: defaultBasePath}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RegisterRoutes binds every dashboard endpoint to its handler by operation id.
// Protected endpoints are wrapped with the session middleware.
func (a *Adapter) RegisterRoutes(b *bantay.Bantay) error {
	registry, err := core.NewEndpointRegistry(services.DashboardEndpoints())
	if err != nil {
		return err
	}

	handlers := dashboardHandlers(b)
	api := a.app.Group(a.basePath)
	protect := requireSession(b)

	for _, ep := range registry.Endpoints() {
		h, ok := handlers[ep.Metadata.OperationID]
		if !ok {
			return fmt.Errorf("no handler for operation %q (%s %s)", ep.Metadata.OperationID, ep.Method, ep.Path)
		}
		if ep.Protected {
			h = chain(protect, h)
		}
		switch ep.Method {
		case http.MethodGet:
			api.Get(ep.Path, h)
		case http.MethodPost:
			api.Post(ep.Path, h)
		case http.MethodPut:
			api.Put(ep.Path, h)
		case http.MethodDelete:
			api.Delete(ep.Path, h)
		default:
			return fmt.Errorf("unsupported method %s for %s", ep.Method, ep.Path)
		}
		b.Logger.Debug("route registered",
			zap.String("method", ep.Method),
			zap.String("path", a.basePath+ep.Path),
			zap.String("operation", ep.Metadata.OperationID),
			zap.Bool("protected", ep.Protected))
	}

	a.app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if a.metrics != nil {
		a.app.Get("/metrics", adaptor.HTTPHandler(a.metrics))
	}
	return nil
}

// chain runs guard and continues with next only when guard let the request through
func chain(guard func(fiber.Ctx) (bool, error), next fiber.Handler) fiber.Handler {
	return func(c fiber.Ctx) error {
		ok, err := guard(c)
		if !ok || err != nil {
			return err
		}
		return next(c)
	}
}
