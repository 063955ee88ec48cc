package api

import (
	"net/http"

	"github.com/authplane/authplane/pkg/gateway"
	"github.com/authplane/authplane/pkg/httputil"
)

// listPolicyVersions handles GET /api/v1/tenants/{tenant_id}/abac/policies
func (s *Server) listPolicyVersions(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.PathVarOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	list, err := s.policy.ListVersions(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// getPolicyVersion handles GET .../abac/policies/{version_id}
func (s *Server) getPolicyVersion(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.PathVarOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	versionID, ok := httputil.PathVarOrError(w, r, "version_id")
	if !ok {
		return
	}
	v, err := s.policy.GetVersion(r.Context(), tenantID, versionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, v)
}

type draftRequest struct {
	Policy     *gateway.PolicyDocument `json:"policy"`
	ChangeNote string                  `json:"change_note,omitempty"`
}

// createDraft handles POST /api/v1/tenants/{tenant_id}/abac/policies
func (s *Server) createDraft(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.PathVarOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	var in draftRequest
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	v, err := s.policy.CreateDraft(r.Context(), tenantID, in.Policy, in.ChangeNote)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, v)
}

// updateDraft handles PUT .../abac/policies/{version_id}
func (s *Server) updateDraft(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.PathVarOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	versionID, ok := httputil.PathVarOrError(w, r, "version_id")
	if !ok {
		return
	}
	var in draftRequest
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	if err := s.policy.UpdateDraft(r.Context(), tenantID, versionID, in.Policy, in.ChangeNote); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

type publishRequest struct {
	Mode gateway.Mode `json:"mode"`
}

// publishPolicyVersion handles POST .../abac/policies/{version_id}/publish
func (s *Server) publishPolicyVersion(w http.ResponseWriter, r *http.Request) {
	s.activateVersion(w, r, "publish")
}

// rollbackPolicyVersion handles POST .../abac/policies/{version_id}/rollback.
// Same transition as publish; the separate endpoint records the
// operator's intent.
func (s *Server) rollbackPolicyVersion(w http.ResponseWriter, r *http.Request) {
	s.activateVersion(w, r, "rollback")
}

func (s *Server) activateVersion(w http.ResponseWriter, r *http.Request, action string) {
	tenantID, ok := httputil.PathVarOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	versionID, ok := httputil.PathVarOrError(w, r, "version_id")
	if !ok {
		return
	}
	var in publishRequest
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	var err error
	if action == "rollback" {
		err = s.policy.Rollback(r.Context(), tenantID, versionID, in.Mode)
	} else {
		err = s.policy.Publish(r.Context(), tenantID, versionID, in.Mode)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.PolicyPublishesTotal.WithLabelValues(action, string(in.Mode)).Inc()
	}
	httputil.WriteNoContent(w)
}

// getActivePolicy handles GET .../abac/policies/active
func (s *Server) getActivePolicy(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.PathVarOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	active, err := s.policy.GetActive(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if active == nil {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "no active policy version")
		return
	}
	httputil.WriteSuccess(w, active)
}

// deletePolicyVersion handles DELETE .../abac/policies/{version_id}
func (s *Server) deletePolicyVersion(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.PathVarOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	versionID, ok := httputil.PathVarOrError(w, r, "version_id")
	if !ok {
		return
	}
	if err := s.policy.DeleteVersion(r.Context(), tenantID, versionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// simulate handles POST /api/v1/tenants/{tenant_id}/abac/simulate
func (s *Server) simulate(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.PathVarOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	var in gateway.SimulationRequest
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	res, err := s.simulator.Simulate(r.Context(), tenantID, in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.SimulationsTotal.WithLabelValues(res.Decision).Inc()
	}
	httputil.WriteSuccess(w, res)
}
