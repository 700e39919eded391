// Webhook ingress.
//
//   - POST /webhook/updates        user message or button press
//   - POST /webhook/channel-posts  post published in the content channel
//
// Both answer 200 once the event is handled (including skipped redeliveries)
// and 400 for events that cannot be decoded, so the platform does not retry
// them.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-service-desk/internal/domain"
	"github.com/tbourn/go-service-desk/internal/gateway"
	"github.com/tbourn/go-service-desk/internal/services"
)

// IngestResponse summarizes one channel-post ingestion.
type IngestResponse struct {
	// Duplicate is set when the update id was already handled.
	Duplicate bool `json:"duplicate,omitempty"`
	// PostID is the stored post, unchanged on re-ingestion of the same source id.
	PostID uint     `json:"post_id,omitempty" example:"17"`
	Tags   []string `json:"tags,omitempty" example:"deals,electronics"`
	// Evicted lists posts removed by the retention cap.
	Evicted []uint `json:"evicted,omitempty"`
	// Delivered and Failed count subscriber notifications.
	Delivered int `json:"delivered" example:"3"`
	Failed    int `json:"failed" example:"0"`
}

// Update godoc
// @ID          handleUpdate
// @Summary     Deliver a user update
// @Description Feeds one user message or button press into the dispatcher. Redeliveries of an
// @Description already handled update id are acknowledged without side effects. A 500 leaves
// @Description the update id unprocessed so the platform's retry is handled again.
// @Tags        Webhook
// @Accept      json
// @Produce     json
//
// @Param       X-Webhook-Secret  header  string          false  "Shared webhook secret (required when configured)"
// @Param       body              body    gateway.Update  true   "Inbound update"
//
// @Success     200  {object}  map[string]bool
// @Failure     400  {object}  handlers.ErrorResponse  "Undecodable body, missing sender or unknown action"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid webhook secret"
// @Failure     500  {object}  handlers.ErrorResponse  "Handling failed"
// @Router      /webhook/updates [post]
func (h *Handlers) Update(c *gin.Context) {
	var upd gateway.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid update body")
		return
	}
	err := h.dispatcher.HandleUpdate(c.Request.Context(), upd)
	switch {
	case err == nil:
		ok(c, http.StatusOK, gin.H{"ok": true})
	case errors.Is(err, services.ErrMalformedUpdate):
		fail(c, http.StatusBadRequest, ErrCodeMalformedUpdate, "update has no sender")
	case errors.Is(err, domain.ErrUnknownAction):
		fail(c, http.StatusBadRequest, ErrCodeUnknownAction, "unknown callback action")
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, "failed to handle update")
	}
}

// ChannelPost godoc
// @ID          ingestChannelPost
// @Summary     Deliver a channel post
// @Description Stores the post, links its hashtags, evicts the oldest posts above the retention
// @Description cap and notifies subscribers of its tags. Redeliveries answer {"duplicate": true}.
// @Tags        Webhook
// @Accept      json
// @Produce     json
//
// @Param       X-Webhook-Secret  header  string               false  "Shared webhook secret (required when configured)"
// @Param       body              body    gateway.ChannelPost  true   "Channel post"
//
// @Success     200  {object}  handlers.IngestResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Undecodable body or missing message id"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid webhook secret"
// @Failure     500  {object}  handlers.ErrorResponse  "Ingestion failed"
// @Router      /webhook/channel-posts [post]
func (h *Handlers) ChannelPost(c *gin.Context) {
	var post gateway.ChannelPost
	if err := c.ShouldBindJSON(&post); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid channel post body")
		return
	}
	res, err := h.dispatcher.HandleChannelPost(c.Request.Context(), post)
	if errors.Is(err, services.ErrMalformedUpdate) {
		fail(c, http.StatusBadRequest, ErrCodeMalformedUpdate, "channel post has no message id")
		return
	}
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeIngestFailed, "failed to ingest post")
		return
	}
	if res == nil {
		ok(c, http.StatusOK, IngestResponse{Duplicate: true})
		return
	}
	ok(c, http.StatusOK, IngestResponse{
		PostID:    res.Post.ID,
		Tags:      res.Tags,
		Evicted:   res.Evicted,
		Delivered: res.Report.Delivered(),
		Failed:    len(res.Report.Failed()),
	})
}
