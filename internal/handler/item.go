package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/deppfellow/itembatch/internal/batch"
	"github.com/deppfellow/itembatch/internal/errs"
	"github.com/deppfellow/itembatch/internal/lib/workerpool"
	"github.com/deppfellow/itembatch/internal/middleware"
	"github.com/deppfellow/itembatch/internal/model"
	"github.com/deppfellow/itembatch/internal/server"
	"github.com/deppfellow/itembatch/internal/validation"
	"github.com/labstack/echo/v4"
)

// ItemService is what ItemHandler needs from the service layer.
type ItemService interface {
	List(ctx context.Context) ([]model.Item, error)
	Get(ctx context.Context, id int64) (*model.Item, error)
	Create(ctx context.Context, item *model.Item) (*model.Item, error)
	Update(ctx context.Context, id int64, item *model.Item) (*model.Item, error)
	Delete(ctx context.Context, id int64) error
	ProcessItemsAsync(ctx context.Context) *workerpool.Future[[]model.Item]
	EnqueueBatchProcess(ctx context.Context, requestID string) (string, error)
}

// ItemPayload is the writable part of an item.
type ItemPayload struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
	Status      string `json:"status" validate:"omitempty,oneof=NEW PROCESSED"`
	Email       string `json:"email" validate:"required,strict_email,max=320"`
}

func (p ItemPayload) toItem() *model.Item {
	return &model.Item{
		Name:        p.Name,
		Description: p.Description,
		Status:      p.Status,
		Email:       p.Email,
	}
}

type ListItemsRequest struct{}

func (r *ListItemsRequest) Validate() error { return nil }

type CreateItemRequest struct {
	ItemPayload
}

func (r *CreateItemRequest) Validate() error {
	return validation.Struct(r)
}

type ItemIDRequest struct {
	ID int64 `param:"id" json:"-"`
}

func (r *ItemIDRequest) Validate() error { return nil }

type UpdateItemRequest struct {
	ID int64 `param:"id" json:"-"`
	ItemPayload
}

func (r *UpdateItemRequest) Validate() error {
	return validation.Struct(r)
}

type BatchProcessRequest struct{}

func (r *BatchProcessRequest) Validate() error { return nil }

// BatchEnqueuedResponse answers POST /batch-process/async.
type BatchEnqueuedResponse struct {
	TaskID    string `json:"task_id"`
	RequestID string `json:"request_id,omitempty"`
	Status    string `json:"status"`
}

type ItemHandler struct {
	Handler
	items ItemService
}

func NewItemHandler(s *server.Server, items ItemService) *ItemHandler {
	return &ItemHandler{
		Handler: NewHandler(s),
		items:   items,
	}
}

func (h *ItemHandler) List(c echo.Context, _ *ListItemsRequest) ([]model.Item, error) {
	return h.items.List(c.Request().Context())
}

func (h *ItemHandler) Create(c echo.Context, req *CreateItemRequest) (*model.Item, error) {
	return h.items.Create(c.Request().Context(), req.toItem())
}

func (h *ItemHandler) Get(c echo.Context, req *ItemIDRequest) (*model.Item, error) {
	return h.items.Get(c.Request().Context(), req.ID)
}

func (h *ItemHandler) Update(c echo.Context, req *UpdateItemRequest) (*model.Item, error) {
	return h.items.Update(c.Request().Context(), req.ID, req.toItem())
}

func (h *ItemHandler) Delete(c echo.Context, req *ItemIDRequest) error {
	return h.items.Delete(c.Request().Context(), req.ID)
}

// BatchProcess runs a batch over every item and waits for it. A client
// that disconnects stops waiting; the run itself keeps going.
func (h *ItemHandler) BatchProcess(c echo.Context, _ *BatchProcessRequest) ([]model.Item, error) {
	ctx := c.Request().Context()

	items, err := h.items.ProcessItemsAsync(ctx).Await(ctx)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			middleware.GetLogger(c).Debug().Msg("client left before the batch run settled")
			return nil, errs.NewClientClosedRequestError()
		}
		return nil, h.batchFailure(c, err)
	}
	return items, nil
}

// EnqueueBatchProcess hands the run to the background worker and answers
// 202 with the task id.
func (h *ItemHandler) EnqueueBatchProcess(c echo.Context, _ *BatchProcessRequest) (*BatchEnqueuedResponse, error) {
	requestID := middleware.GetRequestID(c)

	taskID, err := h.items.EnqueueBatchProcess(c.Request().Context(), requestID)
	if err != nil {
		middleware.GetLogger(c).Error().Err(err).Msg("failed to enqueue batch run")
		return nil, errs.NewServiceUnavailableError("Background processing is unavailable")
	}

	return &BatchEnqueuedResponse{
		TaskID:    taskID,
		RequestID: requestID,
		Status:    "enqueued",
	}, nil
}

func (h *ItemHandler) batchFailure(c echo.Context, err error) error {
	if errors.Is(err, workerpool.ErrPoolClosed) {
		return errs.NewServiceUnavailableError("The service is shutting down")
	}

	var batchErr *batch.BatchError
	if errors.As(err, &batchErr) {
		middleware.GetLogger(c).Error().
			Err(batchErr.Cause).
			Ints64("failed_ids", batchErr.FailedIDs()).
			Int("total", batchErr.Total).
			Msg("batch run failed")
		return errs.NewInternalServerError().WithMessage("Batch processing failed")
	}

	return err
}

// RegisterItemRoutes mounts the item endpoints on g.
func RegisterItemRoutes(g *echo.Group, h *ItemHandler) {
	g.GET("", HandleList(h.List, http.StatusOK))
	g.POST("", Handle(h.Create, http.StatusCreated))
	g.GET("/:id", Handle(h.Get, http.StatusOK))
	g.PUT("/:id", Handle(h.Update, http.StatusOK))
	g.DELETE("/:id", HandleNoContent(h.Delete, http.StatusNoContent))
	g.POST("/batch-process", HandleList(h.BatchProcess, http.StatusOK))
	g.POST("/batch-process/async", Handle(h.EnqueueBatchProcess, http.StatusAccepted))
}
