// Package api exposes the console's HTTP surface. Handlers are thin: they
// parse the request, call a service, and render the result or map the
// error onto a status code. All invariants live in the service packages.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/authplane/authplane/pkg/gateway"
	"github.com/authplane/authplane/pkg/hierarchy"
	"github.com/authplane/authplane/pkg/observability"
	"github.com/authplane/authplane/pkg/policy"
	"github.com/authplane/authplane/pkg/registry"
)

// Server represents the console API server
type Server struct {
	router    *mux.Router
	gw        gateway.Client
	hierarchy *hierarchy.Service
	registry  *registry.Service
	policy    *policy.Service
	simulator *policy.Simulator
	metrics   *observability.Metrics
}

// NewServer creates a new API server over the given gateway. metrics may
// be nil when metrics are disabled.
func NewServer(gw gateway.Client, metrics *observability.Metrics) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		gw:        gw,
		hierarchy: hierarchy.New(gw),
		registry:  registry.New(gw),
		policy:    policy.New(gw),
		simulator: policy.NewSimulator(gw),
		metrics:   metrics,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	r := s.router.PathPrefix("/api/v1").Subrouter()

	// Directory routes (tenant/service pickers)
	r.HandleFunc("/tenants", s.listTenants).Methods("GET")
	r.HandleFunc("/services", s.listServices).Methods("GET")

	// Role hierarchy routes
	r.HandleFunc("/services/{service_id}/roles", s.listRoles).Methods("GET")
	r.HandleFunc("/services/{service_id}/roles", s.createRole).Methods("POST")
	r.HandleFunc("/services/{service_id}/roles/anomalies", s.detectAnomalies).Methods("GET")
	r.HandleFunc("/services/{service_id}/roles/{role_id}", s.getRole).Methods("GET")
	r.HandleFunc("/services/{service_id}/roles/{role_id}", s.updateRole).Methods("PUT")
	r.HandleFunc("/services/{service_id}/roles/{role_id}", s.deleteRole).Methods("DELETE")
	r.HandleFunc("/services/{service_id}/roles/{role_id}/parent", s.setRoleParent).Methods("PUT")
	r.HandleFunc("/services/{service_id}/roles/{role_id}/effective-permissions", s.effectivePermissions).Methods("GET")

	// Permission catalog and binding routes
	r.HandleFunc("/services/{service_id}/permissions", s.listPermissions).Methods("GET")
	r.HandleFunc("/services/{service_id}/permissions", s.createPermission).Methods("POST")
	r.HandleFunc("/permissions/{permission_id}", s.deletePermission).Methods("DELETE")
	r.HandleFunc("/roles/{role_id}/permissions", s.listRolePermissions).Methods("GET")
	r.HandleFunc("/roles/{role_id}/permissions/{permission_id}", s.bindPermission).Methods("POST")
	r.HandleFunc("/roles/{role_id}/permissions/{permission_id}", s.unbindPermission).Methods("DELETE")

	// Policy lifecycle routes
	r.HandleFunc("/tenants/{tenant_id}/abac/policies", s.listPolicyVersions).Methods("GET")
	r.HandleFunc("/tenants/{tenant_id}/abac/policies", s.createDraft).Methods("POST")
	r.HandleFunc("/tenants/{tenant_id}/abac/policies/active", s.getActivePolicy).Methods("GET")
	r.HandleFunc("/tenants/{tenant_id}/abac/policies/{version_id}", s.getPolicyVersion).Methods("GET")
	r.HandleFunc("/tenants/{tenant_id}/abac/policies/{version_id}", s.updateDraft).Methods("PUT")
	r.HandleFunc("/tenants/{tenant_id}/abac/policies/{version_id}", s.deletePolicyVersion).Methods("DELETE")
	r.HandleFunc("/tenants/{tenant_id}/abac/policies/{version_id}/publish", s.publishPolicyVersion).Methods("POST")
	r.HandleFunc("/tenants/{tenant_id}/abac/policies/{version_id}/rollback", s.rollbackPolicyVersion).Methods("POST")
	r.HandleFunc("/tenants/{tenant_id}/abac/simulate", s.simulate).Methods("POST")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
