package gateway

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/authplane/authplane/pkg/errdefs"
)

// Memory is an in-process Client used by dev mode and tests. It applies the
// same lifecycle semantics as the remote store: per-tenant monotonic
// version numbers, at most one active version, immutable published history.
//
// Role parent edits are deliberately NOT validated here; the remote store
// accepts whatever it is sent, which is exactly why the console performs
// hierarchy validation client-side and why DetectAnomalies exists.
//
// Simulation treats every rule condition as satisfied; condition-tree
// evaluation belongs to the real engine. Action and resource-type matching
// follows the engine's contract: an empty list or "*" is a wildcard and
// comparison is case-insensitive.
type Memory struct {
	mu sync.RWMutex

	tenants  map[string]Tenant
	services map[string]Service

	roles       map[string]Role
	permissions map[string]Permission
	// bindings is the (role, permission) edge set.
	bindings map[string]map[string]bool

	policies map[string]*tenantPolicies
}

type tenantPolicies struct {
	set       PolicySet
	versions  []*PolicyVersion
	documents map[string]PolicyDocument
	nextNo    int
}

// NewMemory creates an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{
		tenants:     make(map[string]Tenant),
		services:    make(map[string]Service),
		roles:       make(map[string]Role),
		permissions: make(map[string]Permission),
		bindings:    make(map[string]map[string]bool),
		policies:    make(map[string]*tenantPolicies),
	}
}

// AddTenant seeds a tenant and returns it.
func (m *Memory) AddTenant(name string) Tenant {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := Tenant{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	m.tenants[t.ID] = t
	m.policies[t.ID] = &tenantPolicies{
		set:       PolicySet{Mode: ModeDisabled},
		documents: make(map[string]PolicyDocument),
		nextNo:    1,
	}
	return t
}

// AddService seeds a service and returns it.
func (m *Memory) AddService(name string) Service {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Service{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	m.services[s.ID] = s
	return s
}

// PutRole injects a role verbatim, including inconsistent parent
// references. Used to reproduce malformed remote state in tests.
func (m *Memory) PutRole(r Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Permissions = nil
	m.roles[r.ID] = r
}

// ListTenants returns all tenants.
func (m *Memory) ListTenants(ctx context.Context) ([]Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListServices returns all services.
func (m *Memory) ListServices(ctx context.Context) ([]Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Service, 0, len(m.services))
	for _, s := range m.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListRoles returns the roles of one service.
func (m *Memory) ListRoles(ctx context.Context, serviceID string) ([]Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.services[serviceID]; !ok {
		return nil, errdefs.Newf("gateway.ListRoles", errdefs.KindNotFound, "service %s not found", serviceID)
	}
	var out []Role
	for _, r := range m.roles {
		if r.ServiceID == serviceID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetRole returns one role with its direct permissions nested.
func (m *Memory) GetRole(ctx context.Context, roleID string) (*Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.roles[roleID]
	if !ok {
		return nil, errdefs.Newf("gateway.GetRole", errdefs.KindNotFound, "role %s not found", roleID)
	}
	r.Permissions = m.rolePermissionsLocked(roleID)
	return &r, nil
}

// CreateRole adds a role to a service.
func (m *Memory) CreateRole(ctx context.Context, serviceID string, in RoleInput) (*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.services[serviceID]; !ok {
		return nil, errdefs.Newf("gateway.CreateRole", errdefs.KindNotFound, "service %s not found", serviceID)
	}
	r := Role{
		ID:           uuid.NewString(),
		ServiceID:    serviceID,
		Name:         in.Name,
		Description:  in.Description,
		ParentRoleID: in.ParentRoleID,
	}
	m.roles[r.ID] = r
	return &r, nil
}

// UpdateRole renames or re-describes a role.
func (m *Memory) UpdateRole(ctx context.Context, roleID string, in RoleUpdate) (*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[roleID]
	if !ok {
		return nil, errdefs.Newf("gateway.UpdateRole", errdefs.KindNotFound, "role %s not found", roleID)
	}
	if in.Name != nil {
		r.Name = *in.Name
	}
	if in.Description != nil {
		r.Description = *in.Description
	}
	m.roles[roleID] = r
	return &r, nil
}

// SetRoleParent stores the parent reference as given, without hierarchy
// validation.
func (m *Memory) SetRoleParent(ctx context.Context, roleID string, parentID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[roleID]
	if !ok {
		return errdefs.Newf("gateway.SetRoleParent", errdefs.KindNotFound, "role %s not found", roleID)
	}
	r.ParentRoleID = parentID
	m.roles[roleID] = r
	return nil
}

// DeleteRole removes a role and its bindings. Children keep their (now
// dangling) parent reference, mirroring the remote store's behavior.
func (m *Memory) DeleteRole(ctx context.Context, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return errdefs.Newf("gateway.DeleteRole", errdefs.KindNotFound, "role %s not found", roleID)
	}
	delete(m.roles, roleID)
	delete(m.bindings, roleID)
	return nil
}

// ListPermissions returns the permission catalog of one service.
func (m *Memory) ListPermissions(ctx context.Context, serviceID string) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.services[serviceID]; !ok {
		return nil, errdefs.Newf("gateway.ListPermissions", errdefs.KindNotFound, "service %s not found", serviceID)
	}
	var out []Permission
	for _, p := range m.permissions {
		if p.ServiceID == serviceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// CreatePermission adds a permission; duplicate codes per service conflict.
func (m *Memory) CreatePermission(ctx context.Context, serviceID string, in PermissionInput) (*Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.services[serviceID]; !ok {
		return nil, errdefs.Newf("gateway.CreatePermission", errdefs.KindNotFound, "service %s not found", serviceID)
	}
	for _, p := range m.permissions {
		if p.ServiceID == serviceID && p.Code == in.Code {
			return nil, errdefs.Newf("gateway.CreatePermission", errdefs.KindConflict,
				"permission code %q already exists", in.Code)
		}
	}
	p := Permission{
		ID:          uuid.NewString(),
		ServiceID:   serviceID,
		Code:        in.Code,
		Name:        in.Name,
		Description: in.Description,
	}
	m.permissions[p.ID] = p
	return &p, nil
}

// DeletePermission removes a permission. Bindings referencing it are left
// in place and simply no longer grant anything.
func (m *Memory) DeletePermission(ctx context.Context, permissionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.permissions[permissionID]; !ok {
		return errdefs.Newf("gateway.DeletePermission", errdefs.KindNotFound, "permission %s not found", permissionID)
	}
	delete(m.permissions, permissionID)
	return nil
}

// AssignPermission adds an edge; assigning an existing edge is a no-op.
func (m *Memory) AssignPermission(ctx context.Context, roleID, permissionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return errdefs.Newf("gateway.AssignPermission", errdefs.KindNotFound, "role %s not found", roleID)
	}
	if _, ok := m.permissions[permissionID]; !ok {
		return errdefs.Newf("gateway.AssignPermission", errdefs.KindNotFound, "permission %s not found", permissionID)
	}
	if m.bindings[roleID] == nil {
		m.bindings[roleID] = make(map[string]bool)
	}
	m.bindings[roleID][permissionID] = true
	return nil
}

// RemovePermission removes an edge; removing an absent edge is a no-op.
func (m *Memory) RemovePermission(ctx context.Context, roleID, permissionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return errdefs.Newf("gateway.RemovePermission", errdefs.KindNotFound, "role %s not found", roleID)
	}
	delete(m.bindings[roleID], permissionID)
	return nil
}

// ListRolePermissions returns permissions directly bound to a role.
func (m *Memory) ListRolePermissions(ctx context.Context, roleID string) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.roles[roleID]; !ok {
		return nil, errdefs.Newf("gateway.ListRolePermissions", errdefs.KindNotFound, "role %s not found", roleID)
	}
	return m.rolePermissionsLocked(roleID), nil
}

func (m *Memory) rolePermissionsLocked(roleID string) []Permission {
	var out []Permission
	for pid := range m.bindings[roleID] {
		if p, ok := m.permissions[pid]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (m *Memory) tenantPoliciesLocked(op, tenantID string) (*tenantPolicies, error) {
	tp, ok := m.policies[tenantID]
	if !ok {
		return nil, errdefs.Newf(op, errdefs.KindNotFound, "tenant %s not found", tenantID)
	}
	return tp, nil
}

// ListPolicyVersions returns the tenant's policy set and version
// summaries, newest first.
func (m *Memory) ListPolicyVersions(ctx context.Context, tenantID string) (*PolicyList, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tp, err := m.tenantPoliciesLocked("gateway.ListPolicyVersions", tenantID)
	if err != nil {
		return nil, err
	}
	out := &PolicyList{PolicySet: tp.set}
	for _, v := range tp.versions {
		summary := *v
		summary.Policy = nil
		out.Versions = append(out.Versions, summary)
	}
	sort.Slice(out.Versions, func(i, j int) bool {
		return out.Versions[i].VersionNo > out.Versions[j].VersionNo
	})
	return out, nil
}

// GetPolicyVersion returns one version including its document.
func (m *Memory) GetPolicyVersion(ctx context.Context, tenantID, versionID string) (*PolicyVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tp, err := m.tenantPoliciesLocked("gateway.GetPolicyVersion", tenantID)
	if err != nil {
		return nil, err
	}
	for _, v := range tp.versions {
		if v.ID == versionID {
			out := *v
			doc := tp.documents[versionID]
			out.Policy = &doc
			return &out, nil
		}
	}
	return nil, errdefs.Newf("gateway.GetPolicyVersion", errdefs.KindNotFound, "policy version %s not found", versionID)
}

// CreateDraft appends a draft version. Version numbers are assigned from a
// per-tenant counter that never rewinds, so numbers are never reused even
// after deletions.
func (m *Memory) CreateDraft(ctx context.Context, tenantID string, doc PolicyDocument, changeNote string) (*PolicyVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tp, err := m.tenantPoliciesLocked("gateway.CreateDraft", tenantID)
	if err != nil {
		return nil, err
	}
	v := &PolicyVersion{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		VersionNo:  tp.nextNo,
		Status:     StatusDraft,
		ChangeNote: changeNote,
		CreatedAt:  time.Now().UTC(),
	}
	tp.nextNo++
	tp.versions = append(tp.versions, v)
	tp.documents[v.ID] = doc
	out := *v
	out.Policy = &doc
	return &out, nil
}

// UpdateDraft replaces the document of a draft. Non-draft versions are
// immutable.
func (m *Memory) UpdateDraft(ctx context.Context, tenantID, versionID string, doc PolicyDocument, changeNote string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tp, err := m.tenantPoliciesLocked("gateway.UpdateDraft", tenantID)
	if err != nil {
		return err
	}
	for _, v := range tp.versions {
		if v.ID != versionID {
			continue
		}
		if v.Status != StatusDraft {
			return errdefs.Newf("gateway.UpdateDraft", errdefs.KindNotEditable,
				"version %d is %s; only drafts may be edited", v.VersionNo, v.Status)
		}
		tp.documents[versionID] = doc
		if changeNote != "" {
			v.ChangeNote = changeNote
		}
		return nil
	}
	return errdefs.Newf("gateway.UpdateDraft", errdefs.KindNotFound, "policy version %s not found", versionID)
}

// PublishVersion activates a version, superseding the previous active one.
func (m *Memory) PublishVersion(ctx context.Context, tenantID, versionID string, mode Mode) error {
	return m.activate("gateway.PublishVersion", tenantID, versionID, mode)
}

// RollbackVersion re-activates a version. Identical transition to
// PublishVersion; only the operation name differs.
func (m *Memory) RollbackVersion(ctx context.Context, tenantID, versionID string, mode Mode) error {
	return m.activate("gateway.RollbackVersion", tenantID, versionID, mode)
}

func (m *Memory) activate(op, tenantID, versionID string, mode Mode) error {
	if !mode.Valid() {
		return errdefs.Newf(op, errdefs.KindInvalidInput, "mode must be enforce or shadow, got %q", mode)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tp, err := m.tenantPoliciesLocked(op, tenantID)
	if err != nil {
		return err
	}

	var target *PolicyVersion
	for _, v := range tp.versions {
		if v.ID == versionID {
			target = v
			break
		}
	}
	if target == nil {
		return errdefs.Newf(op, errdefs.KindNotFound, "policy version %s not found", versionID)
	}

	if tp.set.PublishedVersionID != nil && *tp.set.PublishedVersionID == versionID && tp.set.Mode == mode {
		return errdefs.Newf(op, errdefs.KindConflict,
			"version %d is already active in %s mode", target.VersionNo, mode)
	}

	for _, v := range tp.versions {
		if v.ID != versionID && v.Status.Active() {
			v.Status = StatusSuperseded
		}
	}
	if mode == ModeEnforce {
		target.Status = StatusPublished
	} else {
		target.Status = StatusShadow
	}
	id := target.ID
	tp.set.PublishedVersionID = &id
	tp.set.Mode = mode
	return nil
}

// DeleteVersion removes a version from the history. The active version
// cannot be deleted.
func (m *Memory) DeleteVersion(ctx context.Context, tenantID, versionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tp, err := m.tenantPoliciesLocked("gateway.DeleteVersion", tenantID)
	if err != nil {
		return err
	}
	for i, v := range tp.versions {
		if v.ID != versionID {
			continue
		}
		if tp.set.PublishedVersionID != nil && *tp.set.PublishedVersionID == versionID {
			return errdefs.Newf("gateway.DeleteVersion", errdefs.KindConflict,
				"version %d is the active version", v.VersionNo)
		}
		tp.versions = append(tp.versions[:i], tp.versions[i+1:]...)
		delete(tp.documents, versionID)
		return nil
	}
	return errdefs.Newf("gateway.DeleteVersion", errdefs.KindNotFound, "policy version %s not found", versionID)
}

// Simulate evaluates the candidate (or active) policy at the rule level.
// Conditions are treated as satisfied; deny rules override, and when the
// document contains allow rules, matching none of them denies.
func (m *Memory) Simulate(ctx context.Context, tenantID string, req SimulationRequest) (*SimulationResult, error) {
	const op = "gateway.Simulate"
	if req.Simulation.Action == "" || req.Simulation.ResourceType == "" {
		return nil, errdefs.New(op, errdefs.KindInvalidInput, "action and resource_type are required")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	tp, err := m.tenantPoliciesLocked(op, tenantID)
	if err != nil {
		return nil, err
	}

	doc := req.Policy
	if doc == nil {
		if tp.set.PublishedVersionID == nil {
			return nil, errdefs.New(op, errdefs.KindInvalidInput,
				"no active policy version; provide a candidate policy")
		}
		d := tp.documents[*tp.set.PublishedVersionID]
		doc = &d
	}

	rules := make([]Rule, len(doc.Rules))
	copy(rules, doc.Rules)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })

	hasAllowRules := false
	for _, r := range rules {
		if r.Effect == EffectAllow {
			hasAllowRules = true
			break
		}
	}

	result := &SimulationResult{
		MatchedAllowRuleIDs: []string{},
		MatchedDenyRuleIDs:  []string{},
	}
	for _, r := range rules {
		if !matchesList(r.Actions, req.Simulation.Action) {
			continue
		}
		if !matchesList(r.ResourceTypes, req.Simulation.ResourceType) {
			continue
		}
		switch r.Effect {
		case EffectAllow:
			result.MatchedAllowRuleIDs = append(result.MatchedAllowRuleIDs, r.ID)
		case EffectDeny:
			result.MatchedDenyRuleIDs = append(result.MatchedDenyRuleIDs, r.ID)
		}
	}

	denied := len(result.MatchedDenyRuleIDs) > 0 ||
		(hasAllowRules && len(result.MatchedAllowRuleIDs) == 0)
	if denied {
		result.Decision = "deny"
	} else {
		result.Decision = "allow"
	}
	return result, nil
}

// matchesList implements the engine's list matching: empty list or "*"
// matches anything, comparison is case-insensitive.
func matchesList(values []string, key string) bool {
	if len(values) == 0 {
		return true
	}
	for _, v := range values {
		if v == "*" || strings.EqualFold(v, key) {
			return true
		}
	}
	return false
}

var _ Client = (*Memory)(nil)
