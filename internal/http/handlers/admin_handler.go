// Operator API.
//
//   - GET    /stats
//   - GET    /orders/:code
//   - POST   /orders/:code/complete
//   - GET    /posts?q=&limit=
//   - POST   /users/:id/block
//   - POST   /users/:id/unblock
//   - DELETE /users/:id
//
// The router mounts these behind middleware.APIToken and middleware.Operator,
// so the caller holds the API token and names a configured operator.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-service-desk/internal/domain"
	"github.com/tbourn/go-service-desk/internal/http/middleware"
	"github.com/tbourn/go-service-desk/internal/repo"
	"github.com/tbourn/go-service-desk/internal/services"
	"github.com/tbourn/go-service-desk/internal/utils"
)

// OrderResponse is the operator view of an order.
type OrderResponse struct {
	Code         string `json:"code" example:"ab12cd34"`
	UserID       int64  `json:"user_id" example:"101"`
	ServiceTitle string `json:"service_title" example:"Certificate"`
	Status       string `json:"status" example:"new"`
	// Docs is null once the order is completed.
	Docs      *string `json:"docs" example:"Passport copy"`
	CreatedAt string  `json:"created_at" example:"2025-01-01T12:00:00Z"`
}

func orderResponse(v *repo.OrderView) OrderResponse {
	return OrderResponse{
		Code:         v.Code,
		UserID:       v.UserID,
		ServiceTitle: v.ServiceTitle,
		Status:       v.Status,
		Docs:         v.Docs,
		CreatedAt:    v.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// PostSummary is one search hit.
type PostSummary struct {
	ID       uint   `json:"id"`
	SourceID int64  `json:"source_id"`
	Title    string `json:"title"`
}

// Stats godoc
// @ID          getStats
// @Summary     Desk statistics
// @Description Row counts for the desk. active_users counts users seen in the last 24 hours.
// @Tags        Operators
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer <OPERATOR_API_TOKEN>"
// @Param       X-Operator-ID  header  int     true  "Calling operator"  example(900)
//
// @Success     200  {object}  repo.DeskStats
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token or operator id"
// @Failure     403  {object}  handlers.ErrorResponse  "Not an operator"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /stats [get]
func (h *Handlers) Stats(c *gin.Context) {
	st, err := h.users.Stats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load stats")
		return
	}
	ok(c, http.StatusOK, st)
}

// GetOrder godoc
// @ID          getOrder
// @Summary     Look up an order
// @Description Returns the order with the given tracking code.
// @Tags        Operators
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer <OPERATOR_API_TOKEN>"
// @Param       X-Operator-ID  header  int     true  "Calling operator"  example(900)
// @Param       code           path    string  true  "Tracking code"  example(ab12cd34)
//
// @Success     200  {object}  handlers.OrderResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token or operator id"
// @Failure     403  {object}  handlers.ErrorResponse  "Not an operator"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown code"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /orders/{code} [get]
func (h *Handlers) GetOrder(c *gin.Context) {
	v, err := h.orders.Get(c.Request.Context(), c.Param("code"))
	if errors.Is(err, services.ErrOrderNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
		return
	}
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load order")
		return
	}
	ok(c, http.StatusOK, orderResponse(v))
}

// CompleteOrder godoc
// @ID          completeOrder
// @Summary     Complete an order
// @Description Marks the order completed, clears its documents and notifies the requester.
// @Description Completing an already completed order succeeds again.
// @Tags        Operators
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer <OPERATOR_API_TOKEN>"
// @Param       X-Operator-ID  header  int     true  "Calling operator"  example(900)
// @Param       code           path    string  true  "Tracking code"  example(ab12cd34)
//
// @Success     200  {object}  map[string]string
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token or operator id"
// @Failure     403  {object}  handlers.ErrorResponse  "Not an operator"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown code"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /orders/{code}/complete [post]
func (h *Handlers) CompleteOrder(c *gin.Context) {
	opID, _ := middleware.OperatorID(c)
	o, err := h.completer.Complete(c.Request.Context(), opID, c.Param("code"))
	switch {
	case errors.Is(err, services.ErrNotOperator):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not an operator")
		return
	case errors.Is(err, services.ErrOrderNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
		return
	case err != nil:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to complete order")
		return
	}
	ok(c, http.StatusOK, gin.H{"code": o.Code, "status": domain.OrderStatusCompleted})
}

// SearchPosts godoc
// @ID          searchPosts
// @Summary     Search posts by title
// @Description Case-insensitive substring match over post titles, newest first.
// @Tags        Operators
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer <OPERATOR_API_TOKEN>"
// @Param       X-Operator-ID  header  int     true  "Calling operator"  example(900)
// @Param       q              query   string  true   "Keyword"  example(laptop)
// @Param       limit          query   int     false  "Max results, clamped to MAX_POST_LIMIT"  default(10)
//
// @Success     200  {object}  map[string][]handlers.PostSummary
// @Failure     400  {object}  handlers.ErrorResponse  "Empty keyword"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token or operator id"
// @Failure     403  {object}  handlers.ErrorResponse  "Not an operator"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /posts [get]
func (h *Handlers) SearchPosts(c *gin.Context) {
	limit := utils.ClampInt(c.Query("limit"), 10, 1, h.maxPostLimit)
	posts, err := h.posts.SearchLimit(c.Request.Context(), c.Query("q"), limit)
	if errors.Is(err, services.ErrEmptyKeyword) {
		fail(c, http.StatusBadRequest, ErrCodeEmptyKeyword, "query parameter q is required")
		return
	}
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "search failed")
		return
	}
	out := make([]PostSummary, 0, len(posts))
	for _, p := range posts {
		out = append(out, PostSummary{ID: p.ID, SourceID: p.SourceID, Title: p.Title})
	}
	ok(c, http.StatusOK, gin.H{"posts": out})
}

// BlockUser godoc
// @ID          blockUser
// @Summary     Block a user
// @Description Blocked users get a single notice per event and nothing else. Their session is dropped.
// @Tags        Operators
//
// @Param       Authorization  header  string  true  "Bearer <OPERATOR_API_TOKEN>"
// @Param       X-Operator-ID  header  int     true  "Calling operator"  example(900)
// @Param       id             path    int     true  "User id"
//
// @Success     204  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid user id"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token or operator id"
// @Failure     403  {object}  handlers.ErrorResponse  "Not an operator"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown user"
// @Router      /users/{id}/block [post]
func (h *Handlers) BlockUser(c *gin.Context) { h.moderate(c, h.users.Block) }

// UnblockUser godoc
// @ID          unblockUser
// @Summary     Unblock a user
// @Tags        Operators
//
// @Param       Authorization  header  string  true  "Bearer <OPERATOR_API_TOKEN>"
// @Param       X-Operator-ID  header  int     true  "Calling operator"  example(900)
// @Param       id             path    int     true  "User id"
//
// @Success     204  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid user id"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token or operator id"
// @Failure     403  {object}  handlers.ErrorResponse  "Not an operator"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown user"
// @Router      /users/{id}/unblock [post]
func (h *Handlers) UnblockUser(c *gin.Context) { h.moderate(c, h.users.Unblock) }

// DeleteUser godoc
// @ID          deleteUser
// @Summary     Delete a user
// @Description Removes the user with their orders, subscriptions and settings.
// @Tags        Operators
//
// @Param       Authorization  header  string  true  "Bearer <OPERATOR_API_TOKEN>"
// @Param       X-Operator-ID  header  int     true  "Calling operator"  example(900)
// @Param       id             path    int     true  "User id"
//
// @Success     204  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid user id"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token or operator id"
// @Failure     403  {object}  handlers.ErrorResponse  "Not an operator"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown user"
// @Router      /users/{id} [delete]
func (h *Handlers) DeleteUser(c *gin.Context) { h.moderate(c, h.users.Delete) }

// moderate parses the :id path parameter, runs op and maps its errors.
func (h *Handlers) moderate(c *gin.Context, op func(context.Context, int64) error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid user id")
		return
	}
	err = op(c.Request.Context(), id)
	if errors.Is(err, services.ErrUserNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
		return
	}
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "moderation failed")
		return
	}
	noContent(c)
}
