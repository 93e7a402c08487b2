package controller

import (
	"slices"
	"strings"
	"time"

	"github.com/sitekeep/adminauth/internal/middleware"
	"github.com/sitekeep/adminauth/internal/service"
	"github.com/sitekeep/adminauth/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

type LockoutEntry struct {
	IP              string     `json:"ip"`
	Attempts        int        `json:"attempts"`
	LastAttempt     time.Time  `json:"lastAttempt"`
	LockedUntil     *time.Time `json:"lockedUntil,omitempty"`
	Locked          bool       `json:"locked"`
	FailedUsernames []string   `json:"failedUsernames"`
}

type LockoutRequest struct {
	IP string `uri:"ip" binding:"required"`
}

type LockoutController struct {
	router   *gin.RouterGroup
	lockouts *service.LockoutService
}

func NewLockoutController(router *gin.RouterGroup, lockouts *service.LockoutService) *LockoutController {
	return &LockoutController{
		router:   router,
		lockouts: lockouts,
	}
}

func (controller *LockoutController) SetupRoutes() {
	controller.router.GET("/lockouts", controller.listHandler)
	controller.router.DELETE("/lockouts/:ip", controller.unlockHandler)
}

func (controller *LockoutController) listHandler(c *gin.Context) {
	set, err := controller.lockouts.List(c.Request.Context())

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to list lockouts")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	now := time.Now()
	entries := make([]LockoutEntry, 0, len(set))

	for ip, record := range set {
		entries = append(entries, LockoutEntry{
			IP:              ip,
			Attempts:        record.Attempts,
			LastAttempt:     record.LastAttempt,
			LockedUntil:     record.LockedUntil,
			Locked:          record.IsLocked(now),
			FailedUsernames: record.FailedUsernames,
		})
	}

	slices.SortFunc(entries, func(a, b LockoutEntry) int {
		return strings.Compare(a.IP, b.IP)
	})

	c.JSON(200, gin.H{
		"status":   200,
		"message":  "OK",
		"lockouts": entries,
	})
}

func (controller *LockoutController) unlockHandler(c *gin.Context) {
	var req LockoutRequest

	err := c.BindUri(&req)
	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to bind URI")
		c.JSON(400, gin.H{
			"status":  400,
			"message": "Bad Request",
		})
		return
	}

	err = controller.lockouts.ClearLockout(c.Request.Context(), req.IP)

	if err != nil {
		tlog.App.Error().Err(err).Str("ip", req.IP).Msg("Failed to clear lockout")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	username := ""
	if identity, err := middleware.GetIdentity(c); err == nil {
		username = identity.Username
	}

	tlog.AuditUnlock(c, username, req.IP)

	c.JSON(200, gin.H{
		"status":  200,
		"message": "Lockout cleared",
	})
}
