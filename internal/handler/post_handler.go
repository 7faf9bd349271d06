package handler

import (
	"net/http"
	"strconv"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/internal/middleware"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/repository"
	"github.com/Baaaki/agora/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultTrendingLimit = 10

type PostHandler struct {
	content *service.ContentService
}

func NewPostHandler(content *service.ContentService) *PostHandler {
	return &PostHandler{content: content}
}

type CreatePostRequest struct {
	SpaceID string   `json:"space_id" binding:"required"`
	Title   string   `json:"title" binding:"required"`
	Body    string   `json:"body" binding:"required"`
	Mode    string   `json:"mode" binding:"required"`
	Tags    []string `json:"tags"`
}

type EditPostRequest struct {
	Title  *string  `json:"title"`
	Body   *string  `json:"body"`
	Tags   []string `json:"tags"`
	Reason string   `json:"reason"`
}

type VoteRequest struct {
	Value *int `json:"value" binding:"required"`
}

type AcceptRequest struct {
	AnswerID string `json:"answer_id" binding:"required"`
}

type ModeratePostRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
	Locked *bool  `json:"locked"`
	Pinned *bool  `json:"pinned"`
}

// GET /posts
func (h *PostHandler) List(c *gin.Context) {
	filter, ok := postFilterFrom(c)
	if !ok {
		return
	}
	h.list(c, filter)
}

// GET /posts/unanswered
func (h *PostHandler) Unanswered(c *gin.Context) {
	filter, ok := postFilterFrom(c)
	if !ok {
		return
	}
	filter.Unanswered = true
	h.list(c, filter)
}

func (h *PostHandler) list(c *gin.Context, filter repository.PostFilter) {
	page := pageFrom(c)
	posts, total, err := h.content.ListPosts(c.Request.Context(), filter, repository.PostSort(c.DefaultQuery("sort", string(repository.SortHot))), page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newPage(posts, page, total))
}

// GET /posts/trending
func (h *PostHandler) Trending(c *gin.Context) {
	posts, err := h.content.TrendingPosts(c.Request.Context(), limitFrom(c, defaultTrendingLimit))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// POST /posts
func (h *PostHandler) Create(c *gin.Context) {
	var req CreatePostRequest
	if !bindJSON(c, &req) {
		return
	}
	spaceID, err := uuid.Parse(req.SpaceID)
	if err != nil {
		fail(c, apperr.Validation("Invalid space_id"))
		return
	}

	post, err := h.content.CreatePost(c.Request.Context(), middleware.CurrentUser(c), service.CreatePostInput{
		SpaceID: spaceID,
		Title:   req.Title,
		Body:    req.Body,
		Mode:    models.PostMode(req.Mode),
		Tags:    req.Tags,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": post})
}

// GET /posts/:id
func (h *PostHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	post, err := h.content.GetPost(c.Request.Context(), id, middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return
	}

	resp := gin.H{"post": post}
	if viewer := middleware.CurrentUser(c); viewer != nil {
		votes, err := h.content.UserVotes(c.Request.Context(), viewer.ID, models.TargetPost, []uuid.UUID{post.ID})
		if err != nil {
			fail(c, err)
			return
		}
		resp["user_vote"] = votes[post.ID]
	}
	c.JSON(http.StatusOK, resp)
}

// PUT /posts/:id, behind the ownership guard
func (h *PostHandler) Edit(c *gin.Context) {
	post, _ := middleware.Resource[*models.Post](c)
	var req EditPostRequest
	if !bindJSON(c, &req) {
		return
	}
	updated, err := h.content.EditPost(c.Request.Context(), middleware.CurrentUser(c), post, service.EditPostInput{
		Title:  req.Title,
		Body:   req.Body,
		Tags:   req.Tags,
		Reason: req.Reason,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": updated})
}

// DELETE /posts/:id, behind the ownership guard
func (h *PostHandler) Delete(c *gin.Context) {
	post, _ := middleware.Resource[*models.Post](c)
	if err := h.content.DeletePost(c.Request.Context(), middleware.CurrentUser(c), post); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// POST /posts/:id/restore, behind the ownership guard
func (h *PostHandler) Restore(c *gin.Context) {
	post, _ := middleware.Resource[*models.Post](c)
	restored, err := h.content.RestorePost(c.Request.Context(), middleware.CurrentUser(c), post)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": restored})
}

// POST /posts/:id/vote
func (h *PostHandler) Vote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req VoteRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.content.VotePost(c.Request.Context(), middleware.CurrentUser(c), id, *req.Value)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /posts/:id/accept
func (h *PostHandler) Accept(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req AcceptRequest
	if !bindJSON(c, &req) {
		return
	}
	answerID, err := uuid.Parse(req.AnswerID)
	if err != nil {
		fail(c, apperr.Validation("Invalid answer_id"))
		return
	}
	answer, err := h.content.AcceptAnswer(c.Request.Context(), middleware.CurrentUser(c), id, answerID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Answer accepted", "answer": answer})
}

// DELETE /posts/:id/accept
func (h *PostHandler) Unaccept(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.content.UnacceptAnswer(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Answer unaccepted"})
}

// PUT /posts/:id/moderate
func (h *PostHandler) Moderate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ModeratePostRequest
	if !bindJSON(c, &req) {
		return
	}
	post, err := h.content.ModeratePost(c.Request.Context(), middleware.CurrentUser(c), id, service.ModerateInput{
		Status: models.ContentStatus(req.Status),
		Notes:  req.Notes,
		Locked: req.Locked,
		Pinned: req.Pinned,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

func postFilterFrom(c *gin.Context) (repository.PostFilter, bool) {
	filter := repository.PostFilter{
		Mode: models.PostMode(c.Query("mode")),
		Tag:  c.Query("tag"),
	}
	if raw := c.Query("space_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			fail(c, apperr.Validation("Invalid space_id"))
			return filter, false
		}
		filter.SpaceID = &id
	}
	if raw := c.Query("author_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			fail(c, apperr.Validation("Invalid author_id"))
			return filter, false
		}
		filter.AuthorID = &id
	}
	if unanswered, err := strconv.ParseBool(c.Query("unanswered")); err == nil {
		filter.Unanswered = unanswered
	}
	return filter, true
}
