package handler

import (
	"context"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/internal/audit"
	"github.com/Baaaki/agora/internal/middleware"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/service"
	"github.com/Baaaki/agora/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditLog is the moderation journal as the admin API sees it.
type AuditLog interface {
	audit.Recorder
	ReadAll() ([]audit.Entry, error)
	Prune(before time.Time) (int, error)
}

// IPBanList is backed by the rate limiter's Redis set.
type IPBanList interface {
	BanIP(ctx context.Context, ip string) error
	UnbanIP(ctx context.Context, ip string) error
	BannedIPs(ctx context.Context) ([]string, error)
}

type AdminHandler struct {
	users   *service.UserService
	journal AuditLog
	bans    IPBanList
}

// NewAdminHandler accepts a nil ban list when Redis is not configured.
func NewAdminHandler(users *service.UserService, journal AuditLog, bans IPBanList) *AdminHandler {
	return &AdminHandler{
		users:   users,
		journal: journal,
		bans:    bans,
	}
}

type UserIDsRequest struct {
	UserIDs []string `json:"user_ids" binding:"required"`
	Reason  string   `json:"reason"`
}

type RoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type BanIPRequest struct {
	IP     string `json:"ip" binding:"required"`
	Reason string `json:"reason"`
}

// GetAllUsers returns all users, including deactivated ones
// GET /admin/users
func (h *AdminHandler) GetAllUsers(c *gin.Context) {
	page := pageFrom(c)
	users, total, err := h.users.ListUsers(c.Request.Context(), page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newPage(users, page, total))
}

// POST /admin/users/deactivate
func (h *AdminHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

// POST /admin/users/activate
func (h *AdminHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

func (h *AdminHandler) setActive(c *gin.Context, active bool) {
	var req UserIDsRequest
	if !bindJSON(c, &req) {
		return
	}
	ids := make([]uuid.UUID, 0, len(req.UserIDs))
	for _, raw := range req.UserIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			fail(c, apperr.Validationf("Invalid user id %q", raw))
			return
		}
		ids = append(ids, id)
	}

	admin := middleware.CurrentUser(c)
	logger.Log.Info("Admin changing account status",
		zap.String("admin_id", admin.ID.String()),
		zap.Int("count", len(ids)),
		zap.Bool("active", active),
	)

	n, err := h.users.SetActive(c.Request.Context(), admin, ids, active, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Users updated successfully", "updated": n})
}

// PUT /admin/users/:id/role
func (h *AdminHandler) SetRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req RoleRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.SetRole(c.Request.Context(), middleware.CurrentUser(c), id, models.Role(req.Role))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// GET /admin/banned-ips
func (h *AdminHandler) BannedIPs(c *gin.Context) {
	if !h.bansEnabled(c) {
		return
	}
	ips, err := h.bans.BannedIPs(c.Request.Context())
	if err != nil {
		fail(c, apperr.Internal("Failed to list banned IPs", err))
		return
	}
	slices.Sort(ips)
	c.JSON(http.StatusOK, gin.H{"ips": ips})
}

// POST /admin/banned-ips
func (h *AdminHandler) BanIP(c *gin.Context) {
	if !h.bansEnabled(c) {
		return
	}
	var req BanIPRequest
	if !bindJSON(c, &req) {
		return
	}
	if net.ParseIP(req.IP) == nil {
		fail(c, apperr.Validation("Invalid IP address"))
		return
	}
	if err := h.bans.BanIP(c.Request.Context(), req.IP); err != nil {
		fail(c, apperr.Internal("Failed to ban IP", err))
		return
	}
	h.record(c, audit.ActionBanIP, req.IP, req.Reason)
	c.JSON(http.StatusOK, gin.H{"message": "IP banned successfully"})
}

// DELETE /admin/banned-ips/:ip
func (h *AdminHandler) UnbanIP(c *gin.Context) {
	if !h.bansEnabled(c) {
		return
	}
	ip := c.Param("ip")
	if err := h.bans.UnbanIP(c.Request.Context(), ip); err != nil {
		fail(c, apperr.Internal("Failed to unban IP", err))
		return
	}
	h.record(c, audit.ActionUnbanIP, ip, "")
	c.JSON(http.StatusOK, gin.H{"message": "IP unbanned successfully"})
}

// GET /admin/audit?action=&limit=
// Entries are returned newest first.
func (h *AdminHandler) AuditLog(c *gin.Context) {
	entries, err := h.journal.ReadAll()
	if err != nil {
		fail(c, apperr.Internal("Failed to read audit journal", err))
		return
	}
	if action := c.Query("action"); action != "" {
		entries = slices.DeleteFunc(entries, func(e audit.Entry) bool { return string(e.Action) != action })
	}
	slices.Reverse(entries)
	if limit := limitFrom(c, 0); limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// DELETE /admin/audit?before=RFC3339
func (h *AdminHandler) PruneAudit(c *gin.Context) {
	before, err := time.Parse(time.RFC3339, c.Query("before"))
	if err != nil {
		fail(c, apperr.Validation("before must be an RFC 3339 timestamp"))
		return
	}
	removed, err := h.journal.Prune(before.UTC())
	if err != nil {
		fail(c, apperr.Internal("Failed to prune audit journal", err))
		return
	}
	logger.Log.Info("Audit journal pruned",
		zap.String("admin_id", middleware.CurrentUser(c).ID.String()),
		zap.Int("removed", removed),
	)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (h *AdminHandler) bansEnabled(c *gin.Context) bool {
	if h.bans == nil {
		fail(c, apperr.Internal("IP bans require Redis", nil))
		return false
	}
	return true
}

func (h *AdminHandler) record(c *gin.Context, action audit.Action, ip, reason string) {
	admin := middleware.CurrentUser(c)
	if err := h.journal.Record(audit.Entry{
		Action:     action,
		ActorID:    admin.ID,
		TargetType: "ip",
		TargetID:   ip,
		Detail:     reason,
		Timestamp:  time.Now().UTC(),
	}); err != nil {
		logger.Log.Error("Failed to record admin action", zap.String("action", string(action)), zap.Error(err))
	}
}
