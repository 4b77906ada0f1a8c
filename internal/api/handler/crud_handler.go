package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/service"
)

// CRUDService is the service surface a CRUDHandler drives. Any
// service.BaseService instantiation, or a service embedding one, fits.
type CRUDService[E any, C any, U any] interface {
	Get(ctx context.Context, id int64) (*E, error)
	List(ctx context.Context, offset, limit int) ([]*E, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, in C) (*E, error)
	Update(ctx context.Context, id int64, in U) (*E, error)
	Remove(ctx context.Context, id int64) (*E, error)
}

// Gates are the per-route middleware chains of a CRUDHandler.
type Gates struct {
	List   []echo.MiddlewareFunc
	Read   []echo.MiddlewareFunc
	Create []echo.MiddlewareFunc
	Update []echo.MiddlewareFunc
	Delete []echo.MiddlewareFunc
}

// CRUDHandler exposes list/get/create/update/delete for one entity type.
type CRUDHandler[E any, C any, U any] struct {
	svc  CRUDService[E, C, U]
	name string

	// ReadGuard, when set, runs before GET /:id with the requested id.
	ReadGuard func(c echo.Context, id int64) error
}

func NewCRUDHandler[E any, C any, U any](svc CRUDService[E, C, U], name string) *CRUDHandler[E, C, U] {
	return &CRUDHandler[E, C, U]{svc: svc, name: name}
}

// Mount registers the five routes on g.
func (h *CRUDHandler[E, C, U]) Mount(g *echo.Group, gates Gates) {
	g.GET("", h.List, gates.List...)
	g.POST("", h.Create, gates.Create...)
	g.GET("/:id", h.Get, gates.Read...)
	g.PUT("/:id", h.Update, gates.Update...)
	g.DELETE("/:id", h.Delete, gates.Delete...)
}

// List returns one page wrapped in the pagination envelope.
func (h *CRUDHandler[E, C, U]) List(c echo.Context) error {
	return listPage[E](c, h.svc, h.name)
}

// Lister is the read-only half of CRUDService used by paged listings.
type Lister[E any] interface {
	List(ctx context.Context, offset, limit int) ([]*E, error)
	Count(ctx context.Context) (int64, error)
}

func listPage[E any](c echo.Context, lister Lister[E], name string) error {
	var q pageQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return fmt.Errorf("%w: skip and limit must be integers", domain.ErrValidation)
	}
	if err := c.Validate(&q); err != nil {
		return err
	}
	skip, limit := service.ClampPage(q.Skip, q.Limit)

	ctx := c.Request().Context()
	items, err := lister.List(ctx, skip, limit)
	if err != nil {
		return err
	}
	total, err := lister.Count(ctx)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*E{}
	}

	return c.JSON(http.StatusOK, Page[E]{
		Success: true,
		Message: fmt.Sprintf("%s retrieved", name),
		Total:   total,
		Page:    skip/limit + 1,
		Size:    limit,
		Items:   items,
	})
}

func (h *CRUDHandler[E, C, U]) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if h.ReadGuard != nil {
		if err := h.ReadGuard(c, id); err != nil {
			return err
		}
	}
	entity, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entity)
}

func (h *CRUDHandler[E, C, U]) Create(c echo.Context) error {
	var in C
	if err := bindBody(c, &in); err != nil {
		return err
	}
	entity, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, entity)
}

func (h *CRUDHandler[E, C, U]) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in U
	if err := bindBody(c, &in); err != nil {
		return err
	}
	entity, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entity)
}

func (h *CRUDHandler[E, C, U]) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	entity, err := h.svc.Remove(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entity)
}

// pathID parses the :id path parameter.
func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: id must be an integer", domain.ErrValidation)
	}
	return id, nil
}

// bindBody decodes the JSON body into dst and validates it.
func bindBody(c echo.Context, dst any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return fmt.Errorf("%w: invalid payload", domain.ErrValidation)
	}
	return c.Validate(dst)
}
