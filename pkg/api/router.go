// Package api serves a loaded payload over HTTP: the rendered neuron pages,
// a JSON view of the stored values, and a WebSocket status feed.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
)

// HandlerFunc is the signature of every route handler.
type HandlerFunc func(w http.ResponseWriter, r *http.Request)

// Route binds a method and path pattern to a handler.
type Route struct {
	Method  string
	Pattern string
	Handler HandlerFunc
}

// Router is a small first-match router. Pattern segments starting with ':'
// capture the corresponding path segment. Routes are tried in registration
// order, so literal routes must be registered before overlapping
// parameterised ones.
type Router struct {
	routes []Route
	mu     sync.RWMutex

	NotFound http.Handler
}

// NewRouter creates an empty router with a JSON 404 handler.
func NewRouter() *Router {
	return &Router{
		routes: make([]Route, 0),
		NotFound: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			WriteError(w, http.StatusNotFound, "not_found", "The requested resource was not found")
		}),
	}
}

// Handle registers a handler for the given method and pattern.
func (rt *Router) Handle(method, pattern string, handler HandlerFunc) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.routes = append(rt.routes, Route{
		Method:  method,
		Pattern: pattern,
		Handler: handler,
	})
}

// GET registers a GET handler.
func (rt *Router) GET(pattern string, handler HandlerFunc) {
	rt.Handle(http.MethodGet, pattern, handler)
}

// POST registers a POST handler.
func (rt *Router) POST(pattern string, handler HandlerFunc) {
	rt.Handle(http.MethodPost, pattern, handler)
}

// ServeHTTP dispatches to the first matching route. A path that matches a
// route under a different method gets 405.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	path := r.URL.Path
	methodMismatch := false

	for _, route := range rt.routes {
		params, matched := matchPath(route.Pattern, path)
		if !matched {
			continue
		}
		if route.Method != r.Method {
			methodMismatch = true
			continue
		}
		if len(params) > 0 {
			r = setPathParams(r, params)
		}
		route.Handler(w, r)
		return
	}

	if methodMismatch {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Method "+r.Method+" is not allowed on "+path)
		return
	}
	rt.NotFound.ServeHTTP(w, r)
}

func matchPath(pattern, path string) (map[string]string, bool) {
	patternParts := strings.Split(strings.Trim(pattern, "/"), "/")
	pathParts := strings.Split(strings.Trim(path, "/"), "/")

	if len(patternParts) != len(pathParts) {
		return nil, false
	}

	params := make(map[string]string)
	for i, patternPart := range patternParts {
		if strings.HasPrefix(patternPart, ":") {
			if pathParts[i] == "" {
				return nil, false
			}
			params[patternPart[1:]] = pathParts[i]
		} else if patternPart != pathParts[i] {
			return nil, false
		}
	}

	return params, true
}

type contextKey string

const pathParamsKey contextKey = "pathParams"

func setPathParams(r *http.Request, params map[string]string) *http.Request {
	ctx := context.WithValue(r.Context(), pathParamsKey, params)
	return r.WithContext(ctx)
}

// PathParam returns a captured path segment, or "" if absent.
func PathParam(r *http.Request, name string) string {
	params, ok := r.Context().Value(pathParamsKey).(map[string]string)
	if !ok {
		return ""
	}
	return params[name]
}

// -----------------------------------------------------------------------------
// Response helpers
// -----------------------------------------------------------------------------

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError is the error body of a failed request.
type APIError struct {
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Context     map[string]string `json:"context,omitempty"`
	Suggestions []string          `json:"suggestions,omitempty"`
}

// WriteJSON writes data inside a success envelope.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	writeResponse(w, status, APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// WriteError writes a bare error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeResponse(w, status, APIResponse{
		Error: &APIError{Code: code, Message: message},
	})
}

// WriteTScopeError writes err with a status derived from its category.
// Errors that are not *TScopeError are reported as internal errors.
func WriteTScopeError(w http.ResponseWriter, err error) {
	tsErr, ok := tserrors.AsTScopeError(err)
	if !ok {
		WriteError(w, http.StatusInternalServerError, tserrors.ErrInternalError, err.Error())
		return
	}
	writeResponse(w, statusFor(tsErr), APIResponse{
		Error: &APIError{
			Code:        tsErr.Code,
			Message:     tsErr.Message,
			Context:     tsErr.Context,
			Suggestions: tsErr.Suggestions,
		},
	})
}

func statusFor(err *tserrors.TScopeError) int {
	switch {
	case err.Code == tserrors.ErrNotFound, err.Code == tserrors.ErrCoordinateOutOfRange:
		return http.StatusNotFound
	case err.Code == tserrors.ErrPayloadUnavailable:
		return http.StatusServiceUnavailable
	}
	switch err.Category {
	case tserrors.CategoryValidation, tserrors.CategoryData, tserrors.CategoryTemplate:
		return http.StatusBadRequest
	case tserrors.CategoryIO:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeResponse(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// ReadJSON decodes the request body into target.
func ReadJSON(r *http.Request, target interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}
