package api

import (
	"net/http"

	"github.com/authplane/authplane/pkg/gateway"
	"github.com/authplane/authplane/pkg/httputil"
)

// listPermissions handles GET /api/v1/services/{service_id}/permissions
func (s *Server) listPermissions(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := httputil.PathVarOrError(w, r, "service_id")
	if !ok {
		return
	}
	perms, err := s.registry.List(r.Context(), serviceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, perms)
}

// createPermission handles POST /api/v1/services/{service_id}/permissions
func (s *Server) createPermission(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := httputil.PathVarOrError(w, r, "service_id")
	if !ok {
		return
	}
	var in gateway.PermissionInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	perm, err := s.registry.Create(r.Context(), serviceID, in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, perm)
}

// deletePermission handles DELETE /api/v1/permissions/{permission_id}
func (s *Server) deletePermission(w http.ResponseWriter, r *http.Request) {
	permissionID, ok := httputil.PathVarOrError(w, r, "permission_id")
	if !ok {
		return
	}
	if err := s.registry.Delete(r.Context(), permissionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listRolePermissions handles GET /api/v1/roles/{role_id}/permissions
func (s *Server) listRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.PathVarOrError(w, r, "role_id")
	if !ok {
		return
	}
	perms, err := s.registry.ListForRole(r.Context(), roleID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, perms)
}

// bindPermission handles POST /api/v1/roles/{role_id}/permissions/{permission_id}
func (s *Server) bindPermission(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.PathVarOrError(w, r, "role_id")
	if !ok {
		return
	}
	permissionID, ok := httputil.PathVarOrError(w, r, "permission_id")
	if !ok {
		return
	}
	if err := s.registry.Bind(r.Context(), roleID, permissionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// unbindPermission handles DELETE /api/v1/roles/{role_id}/permissions/{permission_id}
func (s *Server) unbindPermission(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.PathVarOrError(w, r, "role_id")
	if !ok {
		return
	}
	permissionID, ok := httputil.PathVarOrError(w, r, "permission_id")
	if !ok {
		return
	}
	if err := s.registry.Unbind(r.Context(), roleID, permissionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
