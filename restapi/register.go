package restapi

import (
	"fmt"
	"sort"

	"github.com/gin-gonic/gin"
)

// HTTPVerb enumerates supported HTTP operations.
type HTTPVerb int

const (
	// Unknown represents an unspecified HTTP verb.
	Unknown HTTPVerb = iota
	// GET lists or retrieves resources.
	GET
	// GET_ONE retrieves a single resource.
	GET_ONE
	// DELETE removes resources.
	DELETE
	// POST creates resources.
	POST
	// PUT replaces resources.
	PUT
	// PATCH partially updates resources.
	PATCH
)

// RestMethod describes a REST route handler.
type RestMethod struct {
	Verb    HTTPVerb
	Path    string
	Handler func(c *gin.Context)
}

// RegisterMethod builds a RestMethod and registers it using Register.
func (s *Server) RegisterMethod(verb HTTPVerb, path string, h func(c *gin.Context)) error {
	return s.Register(RestMethod{
		Verb:    verb,
		Path:    path,
		Handler: h,
	})
}

// Register adds a RestMethod to the server, preventing duplicates. Methods
// registered after Router was called are not served.
func (s *Server) Register(m RestMethod) error {
	key := fmt.Sprintf("%d_%s", m.Verb, m.Path)
	if _, exists := s.methods[key]; exists {
		return fmt.Errorf("can't add %s, an existing handler in REST method map exists", key)
	}
	s.methods[key] = m
	return nil
}

// RestMethods returns the registered methods ordered by path then verb.
func (s *Server) RestMethods() []RestMethod {
	out := make([]RestMethod, 0, len(s.methods))
	for _, m := range s.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Verb < out[j].Verb
	})
	return out
}

func (s *Server) mount(group *gin.RouterGroup, wrap func(gin.HandlerFunc) gin.HandlerFunc) {
	for _, rm := range s.RestMethods() {
		switch rm.Verb {
		case GET:
			fallthrough
		case GET_ONE:
			group.GET(rm.Path, wrap(rm.Handler))
		case DELETE:
			group.DELETE(rm.Path, wrap(rm.Handler))
		case POST:
			group.POST(rm.Path, wrap(rm.Handler))
		case PUT:
			group.PUT(rm.Path, wrap(rm.Handler))
		case PATCH:
			group.PATCH(rm.Path, wrap(rm.Handler))
		default:
			panic(fmt.Sprintf("HTTP verb %d not supported", rm.Verb))
		}
	}
}
