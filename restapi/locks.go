package restapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/lock"
)

func (s *Server) registerLocks() {
	s.RegisterMethod(GET, "/locks", s.ListLocks)
	s.RegisterMethod(POST, "/locks", s.AcquireLock)
	s.RegisterMethod(DELETE, "/locks", s.ReleaseLock)
}

// LockRequest names a lock target: a content primary key or a resource.
type LockRequest struct {
	Type     string        `json:"type"`
	PK       *treestore.PK `json:"pk"`
	Resource string        `json:"resource"`
	// Seconds overrides the default duration of the lock type.
	Seconds int `json:"seconds"`
}

func (r LockRequest) target() (lock.Target, error) {
	if r.PK != nil {
		if r.Resource != "" {
			return lock.Target{}, fmt.Errorf("lock either a pk or a resource")
		}
		return lock.ContentTarget(*r.PK), nil
	}
	return lock.ResourceTarget(r.Resource), nil
}

// ListLocks godoc
// @Summary ListLocks returns the unexpired locks visible to the caller.
// @Description Non-supervisors only see their own locks. expression is a CEL boolean over lock.
// @Tags Locks
// @Produce json
// @Param type query string false "loose or permanent"
// @Param userId query int false "holder"
// @Param resource query string false "resource substring"
// @Param expression query string false "CEL filter"
// @Success 200 {object} []lock.Lock
// @Router /locks [get]
// @Security Bearer
func (s *Server) ListLocks(c *gin.Context) {
	var f lock.Filter
	if v := c.Query("type"); v != "" {
		t, err := lock.ParseType(v)
		if err != nil {
			fail(c, err)
			return
		}
		f.Type = t
	}
	if v := c.Query("userId"); v != "" {
		uid, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(c, fmt.Errorf("invalid userId %q", v))
			return
		}
		f.UserID = &uid
	}
	f.Resource = c.Query("resource")
	f.Expression = c.Query("expression")
	locks, err := s.locks.ListLocks(c, nil, actorOf(c), f)
	if err != nil {
		fail(c, err)
		return
	}
	if locks == nil {
		locks = []lock.Lock{}
	}
	c.IndentedJSON(http.StatusOK, locks)
}

// AcquireLock godoc
// @Summary AcquireLock locks a content item or a resource for the caller.
// @Tags Locks
// @Accept json
// @Produce json
// @Param lock body LockRequest true "target and type"
// @Success 200 {object} lock.Lock
// @Failure 403 {object} map[string]any
// @Router /locks [post]
// @Security Bearer
func (s *Server) AcquireLock(c *gin.Context) {
	var req LockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t := lock.Loose
	if req.Type != "" {
		var err error
		if t, err = lock.ParseType(req.Type); err != nil {
			fail(c, err)
			return
		}
	}
	target, err := req.target()
	if err != nil {
		badRequest(c, err)
		return
	}
	l, err := s.locks.LockFor(c, nil, actorOf(c), t, target, time.Duration(req.Seconds)*time.Second)
	if err != nil {
		fail(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, l)
}

// ReleaseLock godoc
// @Summary ReleaseLock removes the caller's lock on a target.
// @Tags Locks
// @Accept json
// @Param lock body LockRequest true "target"
// @Success 204
// @Failure 403 {object} map[string]any
// @Router /locks [delete]
// @Security Bearer
func (s *Server) ReleaseLock(c *gin.Context) {
	var req LockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	target, err := req.target()
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := s.locks.Unlock(c, nil, actorOf(c), target); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
