package api

import (
	"net/http"

	"github.com/authplane/authplane/pkg/gateway"
	"github.com/authplane/authplane/pkg/httputil"
)

// listTenants handles GET /api/v1/tenants
func (s *Server) listTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := s.gw.ListTenants(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, tenants)
}

// listServices handles GET /api/v1/services
func (s *Server) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.gw.ListServices(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, services)
}

// listRoles handles GET /api/v1/services/{service_id}/roles
func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := httputil.PathVarOrError(w, r, "service_id")
	if !ok {
		return
	}
	roles, err := s.hierarchy.ListRoles(r.Context(), serviceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, roles)
}

// getRole handles GET /api/v1/services/{service_id}/roles/{role_id}
func (s *Server) getRole(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := httputil.PathVarOrError(w, r, "service_id")
	if !ok {
		return
	}
	roleID, ok := httputil.PathVarOrError(w, r, "role_id")
	if !ok {
		return
	}
	role, err := s.hierarchy.GetRole(r.Context(), serviceID, roleID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

// createRole handles POST /api/v1/services/{service_id}/roles
func (s *Server) createRole(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := httputil.PathVarOrError(w, r, "service_id")
	if !ok {
		return
	}
	var in gateway.RoleInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	role, err := s.hierarchy.CreateRole(r.Context(), serviceID, in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, role)
}

// updateRole handles PUT /api/v1/services/{service_id}/roles/{role_id}
func (s *Server) updateRole(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := httputil.PathVarOrError(w, r, "service_id")
	if !ok {
		return
	}
	roleID, ok := httputil.PathVarOrError(w, r, "role_id")
	if !ok {
		return
	}
	var in gateway.RoleUpdate
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	role, err := s.hierarchy.UpdateRole(r.Context(), serviceID, roleID, in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

// deleteRole handles DELETE /api/v1/services/{service_id}/roles/{role_id}
func (s *Server) deleteRole(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := httputil.PathVarOrError(w, r, "service_id")
	if !ok {
		return
	}
	roleID, ok := httputil.PathVarOrError(w, r, "role_id")
	if !ok {
		return
	}
	if err := s.hierarchy.DeleteRole(r.Context(), serviceID, roleID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// setParentRequest carries the parent_role_id key explicitly so a null
// clears the parent while an absent body is rejected.
type setParentRequest struct {
	ParentRoleID *string `json:"parent_role_id"`
}

// setRoleParent handles PUT /api/v1/services/{service_id}/roles/{role_id}/parent
func (s *Server) setRoleParent(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := httputil.PathVarOrError(w, r, "service_id")
	if !ok {
		return
	}
	roleID, ok := httputil.PathVarOrError(w, r, "role_id")
	if !ok {
		return
	}
	var in setParentRequest
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	if err := s.hierarchy.SetParent(r.Context(), serviceID, roleID, in.ParentRoleID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// effectivePermissions handles GET .../roles/{role_id}/effective-permissions
func (s *Server) effectivePermissions(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := httputil.PathVarOrError(w, r, "service_id")
	if !ok {
		return
	}
	roleID, ok := httputil.PathVarOrError(w, r, "role_id")
	if !ok {
		return
	}
	set, err := s.hierarchy.EffectivePermissions(r.Context(), serviceID, roleID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, set)
}

// detectAnomalies handles GET /api/v1/services/{service_id}/roles/anomalies
func (s *Server) detectAnomalies(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := httputil.PathVarOrError(w, r, "service_id")
	if !ok {
		return
	}
	anomalies, err := s.hierarchy.DetectAnomalies(r.Context(), serviceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.HierarchyAnomaliesFound.WithLabelValues(serviceID, "orphaned").Set(float64(len(anomalies.Orphaned)))
		s.metrics.HierarchyAnomaliesFound.WithLabelValues(serviceID, "cyclic").Set(float64(len(anomalies.Cyclic)))
	}
	httputil.WriteSuccess(w, anomalies)
}
