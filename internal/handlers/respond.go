package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"label-platform/internal/checkout"
	"label-platform/internal/downloads"
	"label-platform/internal/payments"
	"label-platform/internal/store"
)

func init() {
	// Report validation failures by their JSON names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	}
}

// FieldError is one entry of a 400 validation payload.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationError carries field errors found outside the binding tags.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func invalidField(field, tag, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Tag: tag, Message: message}}}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid URL"
	}
	return "is invalid (" + fe.Tag() + ")"
}

// bindJSON binds and validates the body, writing the 400 itself on failure.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		badRequest(c, err)
		return false
	}
	return true
}

func bindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		badRequest(c, err)
		return false
	}
	return true
}

func badRequest(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			field := fe.Namespace()
			// Drop the struct name prefix.
			if _, rest, ok := strings.Cut(field, "."); ok {
				field = rest
			}
			fields = append(fields, FieldError{Field: field, Tag: fe.Tag(), Message: fieldMessage(fe)})
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request.", "fields": fields})
		return
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request.", "fields": vErr.Fields})
		return
	}

	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body."})
}

// respondError maps domain errors to status codes. Anything unrecognized is
// logged and reported as a generic 500.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		lineErr *checkout.LineError
		invErr  *checkout.InventoryError
		vErr    *ValidationError
	)

	switch {
	case errors.As(err, &vErr):
		badRequest(c, err)
	case errors.As(err, &invErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient inventory.", "items": invErr.Shortages})
	case errors.As(err, &lineErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cart item.", "line": lineErr})

	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found."})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Already exists."})
	case errors.Is(err, store.ErrInvalidReference):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Referenced record does not exist."})
	case errors.Is(err, store.ErrInvalidValue),
		errors.Is(err, store.ErrUnknownColumn),
		errors.Is(err, store.ErrInvalidFilter),
		errors.Is(err, store.ErrNoFields):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, checkout.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty."})
	case errors.Is(err, checkout.ErrInvalidPaymentMethod):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported payment method."})

	case errors.Is(err, payments.ErrAlreadyPaid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order is already paid."})
	case errors.Is(err, payments.ErrAmountMismatch),
		errors.Is(err, payments.ErrInvalidSignature),
		errors.Is(err, payments.ErrInvalidPayload),
		errors.Is(err, payments.ErrOrderMismatch):
		logger.Warn("Payment request rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, payments.ErrProviderDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payment provider is not configured."})

	case errors.Is(err, downloads.ErrNotPaid), errors.Is(err, downloads.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, downloads.ErrNotDigital):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, downloads.ErrExpired), errors.Is(err, downloads.ErrLimitReached):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})

	default:
		logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s.", name)})
		return 0, false
	}
	return id, true
}

var pagingParams = map[string]bool{"q": true, "limit": true, "offset": true}

// listQuery reads filters, q, limit and offset from the query string. With
// no names given every other parameter is passed on as a filter; the table
// whitelist drops the unknown ones.
func listQuery(c *gin.Context, filters ...string) store.ListQuery {
	q := store.ListQuery{Filters: map[string]string{}, Search: c.Query("q")}
	if len(filters) == 0 {
		for name := range c.Request.URL.Query() {
			if !pagingParams[name] {
				filters = append(filters, name)
			}
		}
	}
	for _, name := range filters {
		if v, ok := c.GetQuery(name); ok {
			q.Filters[name] = v
		}
	}
	q.Limit, _ = strconv.Atoi(c.Query("limit"))
	q.Offset, _ = strconv.Atoi(c.Query("offset"))
	return q
}
