package items

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hbomb79/Tome/internal/catalog"
	"github.com/hbomb79/Tome/pkg/logger"
	"github.com/labstack/echo/v4"
)

var controllerLogger = logger.Get("ItemsController")

type (
	Service interface {
		GetAllItems() []*catalog.Item
		GetItem(uuid.UUID) *catalog.Item
		Refresh(uuid.UUID) error
		DiscoverNewFiles()
	}

	// ListRequest contains the optional query parameters accepted
	// when listing the catalog.
	ListRequest struct {
		State string `query:"state" validate:"omitempty,oneof=PENDING EXTRACTING COMPLETE FAILED SKIPPED HELD"`
	}

	// Controller is the struct which is responsible for defining the
	// routes for this controller. Additionally, it holds the reference to
	// the service used to retrieve information about catalog items.
	Controller struct {
		validate *validator.Validate
		service  Service
	}
)

func New(validate *validator.Validate, serv Service) *Controller {
	return &Controller{validate: validate, service: serv}
}

// SetRoutes accepts the Echo group for the item endpoints
// and sets the routes on them.
func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.list)
	eg.POST("/poll/", controller.performPoll)
	eg.GET("/:id/", controller.get)
	eg.POST("/:id/refresh/", controller.refresh)
}

// list returns all the catalog items - represented as DTOs - optionally
// filtered by their state.
func (controller *Controller) list(ec echo.Context) error {
	var request ListRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	items := controller.service.GetAllItems()
	dtos := make([]*Dto, 0, len(items))
	for _, item := range items {
		dto := NewDto(item)
		if request.State != "" && string(dto.State) != request.State {
			continue
		}

		dtos = append(dtos, dto)
	}

	return ec.JSON(http.StatusOK, dtos)
}

// get uses the 'id' path param from the context and retrieves the item from the
// underlying service. If found, a DTO representing the item is returned
func (controller *Controller) get(ec echo.Context) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Item ID is not a valid UUID")
	}

	item := controller.service.GetItem(id)
	if item == nil {
		return echo.NewHTTPError(http.StatusNotFound)
	}

	return ec.JSON(http.StatusOK, NewDto(item))
}

// refresh discards the metadata held for the item and queues it to be probed again.
func (controller *Controller) refresh(ec echo.Context) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Item ID is not a valid UUID")
	}

	if err := controller.service.Refresh(id); err != nil {
		switch {
		case errors.Is(err, catalog.ErrItemNotFound):
			return echo.NewHTTPError(http.StatusNotFound)
		case errors.Is(err, catalog.ErrItemBusy), errors.Is(err, catalog.ErrItemHeld):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, catalog.ErrItemNotInspectable):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}

		controllerLogger.Emit(logger.ERROR, "Refresh of item %s failed: %v\n", id, err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return ec.NoContent(http.StatusAccepted)
}

func (controller *Controller) performPoll(ec echo.Context) error {
	controller.service.DiscoverNewFiles()

	return ec.NoContent(http.StatusOK)
}
