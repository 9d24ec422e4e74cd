package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"label-platform/internal/middleware"
	"label-platform/internal/store"
)

// Repository is the CRUD surface of a store table.
type Repository[T any] interface {
	List(ctx context.Context, q store.ListQuery) ([]T, error)
	Get(ctx context.Context, id int64) (T, error)
	GetBy(ctx context.Context, column string, value any) (T, error)
	Insert(ctx context.Context, fields map[string]any) (T, error)
	Update(ctx context.Context, id int64, fields map[string]any) (T, error)
	Delete(ctx context.Context, id int64) error
}

// Input is a request body whose set fields become column values.
type Input interface {
	Fields() map[string]any
}

// ResourceHandler serves list/get/create/update/delete for one table.
type ResourceHandler[T any] struct {
	Repo   Repository[T]
	Logger *zap.Logger

	// NewInput returns a fresh body to bind into.
	NewInput func() Input
	// Required fields on create.
	Required []string
	// BySlug lets GET /:id take a slug as well.
	BySlug bool
	// Scope narrows the list for callers who are not admins.
	Scope func(q *store.ListQuery)
	// Visible hides single rows from callers who are not admins.
	Visible func(row T) bool
	// Prepare adjusts the fields of a create (update when creating is
	// false) before they are written.
	Prepare func(c *gin.Context, fields map[string]any, creating bool) error
}

func (h *ResourceHandler[T]) List(c *gin.Context) {
	q := listQuery(c)
	if h.Scope != nil && !middleware.IsAdmin(c) {
		h.Scope(&q)
	}

	rows, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	if rows == nil {
		rows = []T{}
	}
	c.JSON(http.StatusOK, rows)
}

func (h *ResourceHandler[T]) Get(c *gin.Context) {
	key := c.Param("id")

	var (
		row T
		err error
	)
	if id, convErr := strconv.ParseInt(key, 10, 64); convErr == nil {
		row, err = h.Repo.Get(c.Request.Context(), id)
	} else if h.BySlug {
		row, err = h.Repo.GetBy(c.Request.Context(), "slug", key)
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id."})
		return
	}
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}

	if h.Visible != nil && !middleware.IsAdmin(c) && !h.Visible(row) {
		respondError(c, h.Logger, store.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *ResourceHandler[T]) Create(c *gin.Context) {
	in := h.NewInput()
	if !bindJSON(c, in) {
		return
	}

	fields := in.Fields()
	var missing []FieldError
	for _, name := range h.Required {
		if _, ok := fields[name]; !ok {
			missing = append(missing, FieldError{Field: name, Tag: "required", Message: "is required"})
		}
	}
	if len(missing) > 0 {
		badRequest(c, &ValidationError{Fields: missing})
		return
	}

	if h.Prepare != nil {
		if err := h.Prepare(c, fields, true); err != nil {
			respondError(c, h.Logger, err)
			return
		}
	}

	row, err := h.Repo.Insert(c.Request.Context(), fields)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (h *ResourceHandler[T]) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	in := h.NewInput()
	if !bindJSON(c, in) {
		return
	}

	fields := in.Fields()
	if h.Prepare != nil {
		if err := h.Prepare(c, fields, false); err != nil {
			respondError(c, h.Logger, err)
			return
		}
	}

	row, err := h.Repo.Update(c.Request.Context(), id, fields)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *ResourceHandler[T]) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	err := h.Repo.Delete(c.Request.Context(), id)
	if errors.Is(err, store.ErrInvalidReference) {
		c.JSON(http.StatusConflict, gin.H{"error": "Record is still referenced."})
		return
	}
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
