package restapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SharedCode/treestore"
)

func statusOf(err error) int {
	switch treestore.CodeOf(err) {
	case treestore.NotFound:
		return http.StatusNotFound
	case treestore.InvalidOperation:
		return http.StatusBadRequest
	case treestore.Denied:
		return http.StatusForbidden
	case treestore.Capacity:
		return http.StatusInsufficientStorage
	case treestore.LockAcquisitionFailure, treestore.Transient:
		return http.StatusConflict
	case treestore.Timeout:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes err with the status derived from its code.
func fail(c *gin.Context, err error) {
	body := gin.H{"message": err.Error(), "code": treestore.CodeOf(err).String()}
	var e treestore.Error
	if errors.As(err, &e) && e.UserData != nil {
		body["details"] = e.UserData
	}
	c.IndentedJSON(statusOf(err), body)
}

func badRequest(c *gin.Context, err error) {
	c.IndentedJSON(http.StatusBadRequest, gin.H{"message": err.Error(), "code": treestore.InvalidOperation.String()})
}
