package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Tome/internal/api/items"
	"github.com/hbomb79/Tome/internal/http/websocket"
	"github.com/hbomb79/Tome/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var log = logger.Get("API")

const (
	basePath             = "/api/tome/v1"
	COMMAND_ITEM_REFRESH = "ITEM_REFRESH"
)

type (
	RestConfig struct {
		HostAddr string `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080" validate:"required"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// The RestGateway is a thin-wrapper around the Echo HTTP router. It's sole responsbility
	// is to create the routes Tome exposes and to manage ongoing web socket connections and events.
	RestGateway struct {
		*broadcaster
		config         *RestConfig
		ec             *echo.Echo
		socket         *websocket.SocketHub
		itemService    items.Service
		itemController controller
	}
)

// NewRestGateway constructs the Echo router and populates it with all the
// routes defined by the controllers.
func NewRestGateway(config *RestConfig, itemService items.Service) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true

	socket := websocket.New()
	gateway := &RestGateway{
		broadcaster:    newBroadcaster(socket, itemService),
		config:         config,
		ec:             ec,
		socket:         socket,
		itemService:    itemService,
		itemController: items.New(validator.New(), itemService),
	}

	socket.WithConnectionCallback(gateway.connectionPayload)
	socket.BindCommand(COMMAND_ITEM_REFRESH, gateway.handleRefreshCommand)

	ec.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.Emit(logger.VERBOSE, "%s %s -> %d\n", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	ec.Use(middleware.Recover())
	ec.Pre(middleware.AddTrailingSlash())

	ec.GET(basePath+"/activity/ws/", func(ec echo.Context) error {
		gateway.socket.UpgradeToSocket(ec.Response(), ec.Request())
		return nil
	})

	itemGroup := ec.Group(basePath + "/items")
	gateway.itemController.SetRoutes(itemGroup)

	return gateway
}

// ServeHTTP allows the gateway to be mounted as a http.Handler without
// binding to a network address.
func (gateway *RestGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gateway.ec.ServeHTTP(w, r)
}

// Run starts the HTTP server and the socket hub, blocking until the context
// is cancelled or the server fails.
func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	defer ctxCancel(nil)
	wg := &sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Emit(logger.INFO, "Starting HTTP server on %s\n", gateway.config.HostAddr)
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ctxCancel(err)
		}
	}()

	// Start thread to listen for context cancellation
	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	wg.Add(1)
	go func() {
		defer wg.Done()
		gateway.socket.Start(ctx)
	}()

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != nil && cause != ctx.Err() {
		return cause
	}

	return nil
}

// connectionPayload furnishes newly connected clients with the current catalog.
func (gateway *RestGateway) connectionPayload() map[string]interface{} {
	all := gateway.itemService.GetAllItems()
	dtos := make([]*items.Dto, 0, len(all))
	for _, item := range all {
		dtos = append(dtos, items.NewDto(item))
	}

	return map[string]interface{}{"items": dtos}
}

func (gateway *RestGateway) handleRefreshCommand(hub *websocket.SocketHub, message *websocket.SocketMessage) error {
	if err := message.ValidateArguments(map[string]websocket.ArgumentKind{"id": websocket.UUIDArgument}); err != nil {
		return err
	}

	id, err := message.UUIDArgument("id")
	if err != nil {
		return err
	}

	if err := gateway.itemService.Refresh(id); err != nil {
		return err
	}

	hub.Send(message.FormReply("ITEM_REFRESH_QUEUED", map[string]interface{}{"id": id}, websocket.Response))
	return nil
}
