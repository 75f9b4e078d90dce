package restapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/tree"
)

func (s *Server) registerTrees() {
	s.RegisterMethod(GET_ONE, "/trees/:mode/nodes/:id", s.GetNode)
	s.RegisterMethod(GET, "/trees/:mode/paths", s.ResolvePath)
	s.RegisterMethod(POST, "/trees/:mode/nodes", s.CreateNode)
	s.RegisterMethod(PATCH, "/trees/:mode/nodes/:id", s.UpdateNode)
	s.RegisterMethod(PUT, "/trees/:mode/nodes/:id/move", s.MoveNode)
	s.RegisterMethod(PUT, "/trees/:mode/nodes/:id/copy", s.CopyNode)
	s.RegisterMethod(DELETE, "/trees/:mode/nodes/:id", s.RemoveNode)
	s.RegisterMethod(POST, "/trees/:mode/nodes/:id/activate", s.ActivateNode)
	s.RegisterMethod(POST, "/activate-all", s.ActivateAll)
	s.RegisterMethod(GET, "/check", s.CheckTrees)
}

func nodeParams(c *gin.Context) (treestore.TreeMode, int64, bool) {
	mode, err := treestore.ParseTreeMode(c.Param("mode"))
	if err != nil {
		badRequest(c, err)
		return mode, 0, false
	}
	if c.Param("id") == "" {
		return mode, 0, true
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, fmt.Errorf("invalid node id %q", c.Param("id")))
		return mode, 0, false
	}
	return mode, id, true
}

// GetNode godoc
// @Summary GetNode returns a node, optionally with its descendants.
// @Description Without depth only the node is returned; depth=0 nests the whole subtree, depth=N the next N levels.
// @Tags Trees
// @Produce json
// @Param mode path string true "edit or live"
// @Param id path int true "node id"
// @Param depth query int false "levels below the node"
// @Success 200 {object} treestore.TreeNode
// @Failure 404 {object} map[string]any
// @Router /trees/{mode}/nodes/{id} [get]
// @Security Bearer
func (s *Server) GetNode(c *gin.Context) {
	mode, id, ok := nodeParams(c)
	if !ok {
		return
	}
	if d, set := c.GetQuery("depth"); set {
		depth, err := strconv.Atoi(d)
		if err != nil {
			badRequest(c, fmt.Errorf("invalid depth %q", d))
			return
		}
		n, err := s.trees.GetTree(c, nil, mode, id, depth)
		if err != nil {
			fail(c, err)
			return
		}
		c.IndentedJSON(http.StatusOK, n)
		return
	}
	n, err := s.trees.GetNode(c, nil, mode, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, n)
}

// ResolvePath godoc
// @Summary ResolvePath returns the id of the node at a '/' separated name path.
// @Tags Trees
// @Produce json
// @Param mode path string true "edit or live"
// @Param path query string true "name path below the root"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /trees/{mode}/paths [get]
// @Security Bearer
func (s *Server) ResolvePath(c *gin.Context) {
	mode, _, ok := nodeParams(c)
	if !ok {
		return
	}
	path := c.Query("path")
	id, err := s.trees.GetIDByPath(c, nil, mode, treestore.RootNodeID, path)
	if err != nil {
		fail(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"id": id, "path": path})
}

// CreateNodeRequest is the body of a node creation. With Path set every missing
// segment below ParentID is created and the ids of all segments are returned.
type CreateNodeRequest struct {
	ParentID  int64  `json:"parentId"`
	Name      string `json:"name"`
	Position  int    `json:"position"`
	Reference int64  `json:"reference"`
	Template  string `json:"template"`
	Path      string `json:"path"`
}

// CreateNode godoc
// @Summary CreateNode inserts a node or a path of nodes.
// @Tags Trees
// @Accept json
// @Produce json
// @Param mode path string true "edit or live"
// @Param node body CreateNodeRequest true "node to create"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /trees/{mode}/nodes [post]
// @Security Bearer
func (s *Server) CreateNode(c *gin.Context) {
	mode, _, ok := nodeParams(c)
	if !ok {
		return
	}
	var req CreateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.ParentID == 0 {
		req.ParentID = treestore.RootNodeID
	}
	if req.Path != "" {
		ids, err := s.trees.CreateNodes(c, nil, actorOf(c), mode, req.ParentID, req.Path, req.Position)
		if err != nil {
			fail(c, err)
			return
		}
		c.IndentedJSON(http.StatusCreated, gin.H{"ids": ids})
		return
	}
	id, err := s.trees.CreateNode(c, nil, actorOf(c), mode, tree.NewNode{
		ParentID:  req.ParentID,
		Name:      req.Name,
		Position:  req.Position,
		Reference: req.Reference,
		Template:  req.Template,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, gin.H{"id": id})
}

// UpdateNodeRequest changes the fields that are set.
type UpdateNodeRequest struct {
	Name      *string `json:"name"`
	Template  *string `json:"template"`
	Reference *int64  `json:"reference"`
}

// UpdateNode godoc
// @Summary UpdateNode renames a node, replaces its template or its reference.
// @Tags Trees
// @Accept json
// @Produce json
// @Param mode path string true "edit or live"
// @Param id path int true "node id"
// @Param changes body UpdateNodeRequest true "fields to change"
// @Success 200 {object} treestore.TreeNode
// @Failure 400 {object} map[string]any
// @Router /trees/{mode}/nodes/{id} [patch]
// @Security Bearer
func (s *Server) UpdateNode(c *gin.Context) {
	mode, id, ok := nodeParams(c)
	if !ok {
		return
	}
	var req UpdateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	actor := actorOf(c)
	if req.Name != nil {
		if err := s.trees.UpdateName(c, nil, actor, mode, id, *req.Name); err != nil {
			fail(c, err)
			return
		}
	}
	if req.Template != nil {
		if err := s.trees.SetData(c, nil, actor, mode, id, *req.Template); err != nil {
			fail(c, err)
			return
		}
	}
	if req.Reference != nil {
		if err := s.trees.UpdateReference(c, nil, actor, mode, id, *req.Reference); err != nil {
			fail(c, err)
			return
		}
	}
	n, err := s.trees.GetNode(c, nil, mode, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, n)
}

// PlacementRequest names the destination of a move or a copy.
type PlacementRequest struct {
	ParentID int64 `json:"parentId" binding:"required"`
	Position int   `json:"position"`
}

// MoveNode godoc
// @Summary MoveNode moves a subtree below another parent.
// @Tags Trees
// @Accept json
// @Produce json
// @Param mode path string true "edit or live"
// @Param id path int true "node id"
// @Param destination body PlacementRequest true "new parent and position"
// @Success 200 {object} treestore.TreeNode
// @Failure 400 {object} map[string]any
// @Router /trees/{mode}/nodes/{id}/move [put]
// @Security Bearer
func (s *Server) MoveNode(c *gin.Context) {
	mode, id, ok := nodeParams(c)
	if !ok {
		return
	}
	var req PlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.trees.Move(c, nil, actorOf(c), mode, id, req.ParentID, req.Position); err != nil {
		fail(c, err)
		return
	}
	n, err := s.trees.GetNode(c, nil, mode, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, n)
}

// CopyNode godoc
// @Summary CopyNode duplicates a subtree below another parent.
// @Tags Trees
// @Accept json
// @Produce json
// @Param mode path string true "edit or live"
// @Param id path int true "node id"
// @Param destination body PlacementRequest true "parent and position of the copy"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /trees/{mode}/nodes/{id}/copy [put]
// @Security Bearer
func (s *Server) CopyNode(c *gin.Context) {
	mode, id, ok := nodeParams(c)
	if !ok {
		return
	}
	var req PlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	copyID, err := s.trees.Copy(c, nil, actorOf(c), mode, id, req.ParentID, req.Position)
	if err != nil {
		fail(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, gin.H{"id": copyID})
}

// RemoveNode godoc
// @Summary RemoveNode deletes a node and, with children=true, its subtree.
// @Description Without children the direct children move up to the parent. Live removals always take the subtree.
// @Tags Trees
// @Produce json
// @Param mode path string true "edit or live"
// @Param id path int true "node id"
// @Param children query bool false "remove the subtree"
// @Success 204
// @Failure 404 {object} map[string]any
// @Router /trees/{mode}/nodes/{id} [delete]
// @Security Bearer
func (s *Server) RemoveNode(c *gin.Context) {
	mode, id, ok := nodeParams(c)
	if !ok {
		return
	}
	children, err := strconv.ParseBool(c.DefaultQuery("children", "false"))
	if err != nil {
		badRequest(c, fmt.Errorf("invalid children flag %q", c.Query("children")))
		return
	}
	if err := s.trees.RemoveNode(c, nil, actorOf(c), mode, id, children); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ActivateNode godoc
// @Summary ActivateNode publishes an Edit node, with subtree=true including its descendants.
// @Tags Trees
// @Produce json
// @Param mode path string true "must be edit"
// @Param id path int true "node id"
// @Param subtree query bool false "publish the descendants too"
// @Success 204
// @Failure 400 {object} map[string]any
// @Router /trees/{mode}/nodes/{id}/activate [post]
// @Security Bearer
func (s *Server) ActivateNode(c *gin.Context) {
	mode, id, ok := nodeParams(c)
	if !ok {
		return
	}
	if mode != treestore.Edit {
		badRequest(c, fmt.Errorf("only edit nodes can be activated"))
		return
	}
	subtree, err := strconv.ParseBool(c.DefaultQuery("subtree", "false"))
	if err != nil {
		badRequest(c, fmt.Errorf("invalid subtree flag %q", c.Query("subtree")))
		return
	}
	if subtree {
		err = s.trees.ActivateSubtree(c, nil, actorOf(c), id)
	} else {
		err = s.trees.ActivateNode(c, nil, actorOf(c), id)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ActivateAll godoc
// @Summary ActivateAll replaces the Live tree with the Edit tree.
// @Tags Trees
// @Success 204
// @Router /activate-all [post]
// @Security Bearer
func (s *Server) ActivateAll(c *gin.Context) {
	if err := s.trees.ActivateAll(c, nil, actorOf(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CheckTrees godoc
// @Summary CheckTrees verifies the nested set invariants of both trees.
// @Tags Trees
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 500 {object} map[string]any
// @Router /check [get]
// @Security Bearer
func (s *Server) CheckTrees(c *gin.Context) {
	if err := s.trees.Verify(c); err != nil {
		fail(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"status": "ok"})
}
