// Package response writes the JSON envelopes returned by every endpoint.
package response

import (
	"math"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/raakeshmj/socialplane/internal/apierror"
)

const (
	defaultCreatedMessage = "Resource created successfully"
	defaultDeletedMessage = "Resource deleted successfully"
)

// SuccessBody is {success, data, timestamp}.
type SuccessBody[T any] struct {
	Success   bool   `json:"success"`
	Data      T      `json:"data"`
	Timestamp string `json:"timestamp"`
}

// CreatedBody adds a message to SuccessBody.
type CreatedBody[T any] struct {
	Success   bool   `json:"success"`
	Data      T      `json:"data"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// DeletedBody carries no data.
type DeletedBody struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Pagination describes one page of a list.
type Pagination struct {
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// PaginatedBody is a success envelope over a page of items.
type PaginatedBody[T any] struct {
	Success    bool       `json:"success"`
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
	Timestamp  string     `json:"timestamp"`
}

// PageInfo is the caller's view of a page: the total item count and where the page sits.
type PageInfo struct {
	Total    int
	Page     int
	PageSize int
}

var now = time.Now

func timestamp() string {
	return apierror.Timestamp(now())
}

// NewSuccess builds a success envelope.
func NewSuccess[T any](data T) SuccessBody[T] {
	return SuccessBody[T]{Success: true, Data: data, Timestamp: timestamp()}
}

// NewCreated builds a created envelope; an empty message uses the default.
func NewCreated[T any](data T, message string) CreatedBody[T] {
	if message == "" {
		message = defaultCreatedMessage
	}
	return CreatedBody[T]{Success: true, Data: data, Message: message, Timestamp: timestamp()}
}

// NewDeleted builds a deleted envelope; an empty message uses the default.
func NewDeleted(message string) DeletedBody {
	if message == "" {
		message = defaultDeletedMessage
	}
	return DeletedBody{Success: true, Message: message, Timestamp: timestamp()}
}

// NewPagination computes the pagination block. Page and page size are clamped to >= 1
// and a negative total counts as zero.
func NewPagination(info PageInfo) Pagination {
	page := max(info.Page, 1)
	size := max(info.PageSize, 1)
	total := max(info.Total, 0)

	totalPages := int(math.Ceil(float64(total) / float64(size)))
	return Pagination{
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// NewPaginated builds a paginated envelope. A nil slice is encoded as [].
func NewPaginated[T any](data []T, info PageInfo) PaginatedBody[T] {
	if data == nil {
		data = []T{}
	}
	return PaginatedBody[T]{Success: true, Data: data, Pagination: NewPagination(info), Timestamp: timestamp()}
}

// Success writes a success envelope. A zero status means 200.
func Success[T any](w http.ResponseWriter, data T, status int) {
	if status == 0 {
		status = http.StatusOK
	}
	JSON(w, status, NewSuccess(data))
}

// Created writes a 201 created envelope.
func Created[T any](w http.ResponseWriter, data T, message string) {
	JSON(w, http.StatusCreated, NewCreated(data, message))
}

// Deleted writes a 200 deleted envelope.
func Deleted(w http.ResponseWriter, message string) {
	JSON(w, http.StatusOK, NewDeleted(message))
}

// Paginated writes a 200 paginated envelope.
func Paginated[T any](w http.ResponseWriter, data []T, info PageInfo) {
	JSON(w, http.StatusOK, NewPaginated(data, info))
}

// NoContent writes an empty 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Redirect sends a 301 when permanent, otherwise 302.
func Redirect(w http.ResponseWriter, r *http.Request, url string, permanent bool) {
	status := http.StatusFound
	if permanent {
		status = http.StatusMovedPermanently
	}
	http.Redirect(w, r, url, status)
}

// JSON encodes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(apierror.ErrorResponse{Error: apierror.ErrorBody{
			Message:    "Failed to encode response",
			Code:       apierror.CodeInternal,
			StatusCode: status,
			Timestamp:  timestamp(),
		}})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
