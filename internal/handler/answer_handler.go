package handler

import (
	"net/http"

	"github.com/Baaaki/agora/internal/middleware"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/repository"
	"github.com/Baaaki/agora/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AnswerHandler struct {
	content *service.ContentService
}

func NewAnswerHandler(content *service.ContentService) *AnswerHandler {
	return &AnswerHandler{content: content}
}

type BodyRequest struct {
	Body   string `json:"body" binding:"required"`
	Reason string `json:"reason"`
}

type ModerateAnswerRequest struct {
	Notes  string `json:"notes"`
	Locked *bool  `json:"locked"`
}

// GET /posts/:id/answers
func (h *AnswerHandler) List(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	page := pageFrom(c)
	sort := repository.AnswerSort(c.DefaultQuery("sort", string(repository.AnswerSortVotes)))
	answers, err := h.content.ListAnswers(c.Request.Context(), postID, sort, page)
	if err != nil {
		fail(c, err)
		return
	}

	resp := gin.H{"answers": answers, "page": page.Page, "limit": page.Limit}
	if viewer := middleware.CurrentUser(c); viewer != nil && len(answers) > 0 {
		ids := make([]uuid.UUID, len(answers))
		for i := range answers {
			ids[i] = answers[i].ID
		}
		votes, err := h.content.UserVotes(c.Request.Context(), viewer.ID, models.TargetAnswer, ids)
		if err != nil {
			fail(c, err)
			return
		}
		resp["user_votes"] = votes
	}
	c.JSON(http.StatusOK, resp)
}

// POST /posts/:id/answers
func (h *AnswerHandler) Create(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req BodyRequest
	if !bindJSON(c, &req) {
		return
	}
	answer, err := h.content.CreateAnswer(c.Request.Context(), middleware.CurrentUser(c), postID, req.Body)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"answer": answer})
}

// PUT /answers/:id, behind the ownership guard
func (h *AnswerHandler) Edit(c *gin.Context) {
	answer, _ := middleware.Resource[*models.Answer](c)
	var req BodyRequest
	if !bindJSON(c, &req) {
		return
	}
	updated, err := h.content.EditAnswer(c.Request.Context(), middleware.CurrentUser(c), answer, req.Body, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": updated})
}

// DELETE /answers/:id, behind the ownership guard
func (h *AnswerHandler) Delete(c *gin.Context) {
	answer, _ := middleware.Resource[*models.Answer](c)
	if err := h.content.DeleteAnswer(c.Request.Context(), middleware.CurrentUser(c), answer); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Answer deleted successfully"})
}

// POST /answers/:id/restore, behind the ownership guard
func (h *AnswerHandler) Restore(c *gin.Context) {
	answer, _ := middleware.Resource[*models.Answer](c)
	restored, err := h.content.RestoreAnswer(c.Request.Context(), middleware.CurrentUser(c), answer)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": restored})
}

// POST /answers/:id/vote
func (h *AnswerHandler) Vote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req VoteRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.content.VoteAnswer(c.Request.Context(), middleware.CurrentUser(c), id, *req.Value)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PUT /answers/:id/moderate
func (h *AnswerHandler) Moderate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ModerateAnswerRequest
	if !bindJSON(c, &req) {
		return
	}
	answer, err := h.content.ModerateAnswer(c.Request.Context(), middleware.CurrentUser(c), id, req.Notes, req.Locked)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}
