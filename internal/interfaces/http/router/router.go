package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Route is a mounted endpoint with the access level of its group
type Route struct {
	Method string
	Path   string
	Access string
}

// Router mounts route groups under the versioned API prefix
type Router struct {
	engine     *gin.Engine
	apiVersion string
	groups     []*Group
	mounted    []Route
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion sets the version segment of the prefix, e.g. "v2"
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.apiVersion = version }
}

// NewRouter creates a router for engine, defaulting to /api/v1
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BasePath returns the versioned API prefix
func (r *Router) BasePath() string {
	return "/api/" + r.apiVersion
}

// Add queues groups for Setup
func (r *Router) Add(groups ...*Group) *Router {
	r.groups = append(r.groups, groups...)
	return r
}

// Setup mounts every queued group on the engine
func (r *Router) Setup() {
	api := r.engine.Group(r.BasePath())
	for _, g := range r.groups {
		g.mount(api, r.BasePath(), &r.mounted)
	}
	r.groups = nil
}

// Routes lists the endpoints mounted by Setup
func (r *Router) Routes() []Route {
	return r.mounted
}

// Group is a set of routes behind the same guards. Child groups run their
// parent's guards first.
type Group struct {
	access   string
	prefix   string
	guards   []gin.HandlerFunc
	routes   []route
	children []*Group
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewGroup creates a group. access labels the group in Routes; nil guards are skipped
// so an unconfigured guard leaves a route open rather than panicking.
func NewGroup(access, prefix string, guards ...gin.HandlerFunc) *Group {
	g := &Group{access: access, prefix: prefix}
	for _, guard := range guards {
		if guard != nil {
			g.guards = append(g.guards, guard)
		}
	}
	return g
}

// Group creates a child group with the same access label
func (g *Group) Group(prefix string, guards ...gin.HandlerFunc) *Group {
	child := NewGroup(g.access, prefix, guards...)
	g.children = append(g.children, child)
	return child
}

// Handle registers a route
func (g *Group) Handle(method, path string, handlers ...gin.HandlerFunc) *Group {
	g.routes = append(g.routes, route{method: method, path: path, handlers: handlers})
	return g
}

// GET registers a GET route
func (g *Group) GET(path string, handlers ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodGet, path, handlers...)
}

// POST registers a POST route
func (g *Group) POST(path string, handlers ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodPost, path, handlers...)
}

// PUT registers a PUT route
func (g *Group) PUT(path string, handlers ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodPut, path, handlers...)
}

// DELETE registers a DELETE route
func (g *Group) DELETE(path string, handlers ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodDelete, path, handlers...)
}

func (g *Group) mount(parent *gin.RouterGroup, base string, out *[]Route) {
	rg := parent.Group(g.prefix, g.guards...)
	base += g.prefix
	for _, rt := range g.routes {
		rg.Handle(rt.method, rt.path, rt.handlers...)
		*out = append(*out, Route{Method: rt.method, Path: base + rt.path, Access: g.access})
	}
	for _, child := range g.children {
		child.mount(rg, base, out)
	}
}
