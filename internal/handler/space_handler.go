package handler

import (
	"net/http"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/internal/middleware"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/repository"
	"github.com/Baaaki/agora/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SpaceHandler addresses every space by its slug.
type SpaceHandler struct {
	spaces  *service.SpaceService
	content *service.ContentService
}

func NewSpaceHandler(spaces *service.SpaceService, content *service.ContentService) *SpaceHandler {
	return &SpaceHandler{spaces: spaces, content: content}
}

type CreateSpaceRequest struct {
	Name             string `json:"name" binding:"required"`
	Description      string `json:"description"`
	Rules            string `json:"rules"`
	IsPublic         *bool  `json:"is_public"`
	AllowQuestions   *bool  `json:"allow_questions"`
	AllowDiscussions *bool  `json:"allow_discussions"`
}

type UpdateSpaceRequest struct {
	Description      *string `json:"description"`
	Rules            *string `json:"rules"`
	IsPublic         *bool   `json:"is_public"`
	AllowQuestions   *bool   `json:"allow_questions"`
	AllowDiscussions *bool   `json:"allow_discussions"`
}

type ModeratorRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// GET /spaces
func (h *SpaceHandler) List(c *gin.Context) {
	page := pageFrom(c)
	spaces, total, err := h.spaces.ListPublic(c.Request.Context(), page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newPage(spaces, page, total))
}

// GET /spaces/trending
func (h *SpaceHandler) Trending(c *gin.Context) {
	spaces, err := h.spaces.Trending(c.Request.Context(), limitFrom(c, defaultTrendingLimit))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"spaces": spaces})
}

// POST /spaces
func (h *SpaceHandler) Create(c *gin.Context) {
	var req CreateSpaceRequest
	if !bindJSON(c, &req) {
		return
	}
	space, err := h.spaces.Create(c.Request.Context(), middleware.CurrentUser(c), service.SpaceInput{
		Name:             req.Name,
		Description:      req.Description,
		Rules:            req.Rules,
		IsPublic:         boolOr(req.IsPublic, true),
		AllowQuestions:   boolOr(req.AllowQuestions, true),
		AllowDiscussions: boolOr(req.AllowDiscussions, true),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"space": space})
}

// GET /spaces/:slug
func (h *SpaceHandler) Get(c *gin.Context) {
	space, ok := h.space(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"space": space})
}

// GET /spaces/:slug/posts
func (h *SpaceHandler) Feed(c *gin.Context) {
	space, ok := h.space(c)
	if !ok {
		return
	}
	filter, ok := postFilterFrom(c)
	if !ok {
		return
	}
	filter.SpaceID = &space.ID

	page := pageFrom(c)
	posts, total, err := h.content.ListPosts(c.Request.Context(), filter, repository.PostSort(c.DefaultQuery("sort", string(repository.SortHot))), page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newPage(posts, page, total))
}

// PUT /spaces/:slug
func (h *SpaceHandler) Update(c *gin.Context) {
	space, ok := h.space(c)
	if !ok {
		return
	}
	var req UpdateSpaceRequest
	if !bindJSON(c, &req) {
		return
	}
	updated, err := h.spaces.Update(c.Request.Context(), middleware.CurrentUser(c), space, service.SpaceUpdate{
		Description:      req.Description,
		Rules:            req.Rules,
		IsPublic:         req.IsPublic,
		AllowQuestions:   req.AllowQuestions,
		AllowDiscussions: req.AllowDiscussions,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"space": updated})
}

// POST /spaces/:slug/join
func (h *SpaceHandler) Join(c *gin.Context) {
	space, ok := h.space(c)
	if !ok {
		return
	}
	joined, err := h.spaces.Join(c.Request.Context(), middleware.CurrentUser(c), space.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Joined space", "space": joined})
}

// POST /spaces/:slug/leave
func (h *SpaceHandler) Leave(c *gin.Context) {
	space, ok := h.space(c)
	if !ok {
		return
	}
	left, err := h.spaces.Leave(c.Request.Context(), middleware.CurrentUser(c), space.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left space", "space": left})
}

// POST /spaces/:slug/moderators
func (h *SpaceHandler) AddModerator(c *gin.Context) {
	space, ok := h.space(c)
	if !ok {
		return
	}
	var req ModeratorRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		fail(c, apperr.Validation("Invalid user_id"))
		return
	}
	updated, err := h.spaces.AddModerator(c.Request.Context(), middleware.CurrentUser(c), space.ID, userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"space": updated})
}

// DELETE /spaces/:slug/moderators/:userID
func (h *SpaceHandler) RemoveModerator(c *gin.Context) {
	space, ok := h.space(c)
	if !ok {
		return
	}
	userID, ok := paramID(c, "userID")
	if !ok {
		return
	}
	updated, err := h.spaces.RemoveModerator(c.Request.Context(), middleware.CurrentUser(c), space.ID, userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"space": updated})
}

// space resolves :slug with the caller's visibility.
func (h *SpaceHandler) space(c *gin.Context) (*models.Space, bool) {
	space, err := h.spaces.Get(c.Request.Context(), c.Param("slug"), middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return space, true
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
