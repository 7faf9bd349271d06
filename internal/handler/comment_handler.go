package handler

import (
	"net/http"

	"github.com/Baaaki/agora/internal/middleware"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/service"
	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	content *service.ContentService
}

func NewCommentHandler(content *service.ContentService) *CommentHandler {
	return &CommentHandler{content: content}
}

// ListOnPost serves GET /posts/:id/comments.
func (h *CommentHandler) ListOnPost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.list(c, service.CommentTarget{PostID: &id})
}

// ListOnAnswer serves GET /answers/:id/comments.
func (h *CommentHandler) ListOnAnswer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.list(c, service.CommentTarget{AnswerID: &id})
}

func (h *CommentHandler) list(c *gin.Context, target service.CommentTarget) {
	page := pageFrom(c)
	comments, err := h.content.ListComments(c.Request.Context(), target, page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments, "page": page.Page, "limit": page.Limit})
}

// CreateOnPost serves POST /posts/:id/comments.
func (h *CommentHandler) CreateOnPost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.create(c, service.CommentTarget{PostID: &id})
}

// CreateOnAnswer serves POST /answers/:id/comments.
func (h *CommentHandler) CreateOnAnswer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.create(c, service.CommentTarget{AnswerID: &id})
}

func (h *CommentHandler) create(c *gin.Context, target service.CommentTarget) {
	var req BodyRequest
	if !bindJSON(c, &req) {
		return
	}
	comment, err := h.content.CreateComment(c.Request.Context(), middleware.CurrentUser(c), target, req.Body)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// DELETE /comments/:id, behind the ownership guard
func (h *CommentHandler) Delete(c *gin.Context) {
	comment, _ := middleware.Resource[*models.Comment](c)
	if err := h.content.DeleteComment(c.Request.Context(), middleware.CurrentUser(c), comment); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}
