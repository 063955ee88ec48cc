// Package hierarchy validates and inspects the per-service role tree.
//
// The remote store does not guarantee a consistent hierarchy; another
// operator may edit roles between any two calls, and malformed parent
// references can arrive from outside this console entirely. Every
// operation therefore works from a fresh snapshot and every traversal is
// bounded by a visited set. Anomalies are reported, never repaired.
package hierarchy

import (
	"context"
	"sort"

	"github.com/authplane/authplane/pkg/errdefs"
	"github.com/authplane/authplane/pkg/gateway"
)

// Service validates role hierarchy edits and computes derived views.
type Service struct {
	gw gateway.Client
}

// New creates a hierarchy service over the given gateway.
func New(gw gateway.Client) *Service {
	return &Service{gw: gw}
}

// ListRoles returns the roles of one service.
func (s *Service) ListRoles(ctx context.Context, serviceID string) ([]gateway.Role, error) {
	roles, err := s.gw.ListRoles(ctx, serviceID)
	if err != nil {
		return nil, errdefs.WithOp("hierarchy.ListRoles", err)
	}
	return roles, nil
}

// GetRole returns one role with its directly bound permissions.
func (s *Service) GetRole(ctx context.Context, serviceID, roleID string) (*gateway.Role, error) {
	return s.roleInService(ctx, "hierarchy.GetRole", serviceID, roleID)
}

// roleInService fetches a role and verifies it belongs to the named
// service. A role living in another service is reported as NotFound so
// role IDs never resolve across service scopes.
func (s *Service) roleInService(ctx context.Context, op, serviceID, roleID string) (*gateway.Role, error) {
	role, err := s.gw.GetRole(ctx, roleID)
	if err != nil {
		return nil, errdefs.WithOp(op, err)
	}
	if role.ServiceID != serviceID {
		return nil, errdefs.Newf(op, errdefs.KindNotFound, "role %s not found in this service", roleID)
	}
	return role, nil
}

// CreateRole creates a role. A requested parent is validated against the
// current snapshot like a SetParent edit.
func (s *Service) CreateRole(ctx context.Context, serviceID string, in gateway.RoleInput) (*gateway.Role, error) {
	const op = "hierarchy.CreateRole"
	if in.Name == "" {
		return nil, errdefs.New(op, errdefs.KindInvalidInput, "role name is required")
	}
	if in.ParentRoleID != nil {
		roles, err := s.gw.ListRoles(ctx, serviceID)
		if err != nil {
			return nil, errdefs.WithOp(op, err)
		}
		if byID(roles)[*in.ParentRoleID] == nil {
			return nil, errdefs.Newf(op, errdefs.KindInvalidParent,
				"parent role %s does not exist in this service", *in.ParentRoleID)
		}
	}
	role, err := s.gw.CreateRole(ctx, serviceID, in)
	if err != nil {
		return nil, errdefs.WithOp(op, err)
	}
	return role, nil
}

// UpdateRole renames or re-describes a role in the named service.
func (s *Service) UpdateRole(ctx context.Context, serviceID, roleID string, in gateway.RoleUpdate) (*gateway.Role, error) {
	const op = "hierarchy.UpdateRole"
	if _, err := s.roleInService(ctx, op, serviceID, roleID); err != nil {
		return nil, err
	}
	role, err := s.gw.UpdateRole(ctx, roleID, in)
	if err != nil {
		return nil, errdefs.WithOp(op, err)
	}
	return role, nil
}

// DeleteRole removes a role from the named service. Children keep their
// parent reference and will show up as orphaned until re-parented.
func (s *Service) DeleteRole(ctx context.Context, serviceID, roleID string) error {
	const op = "hierarchy.DeleteRole"
	if _, err := s.roleInService(ctx, op, serviceID, roleID); err != nil {
		return err
	}
	if err := s.gw.DeleteRole(ctx, roleID); err != nil {
		return errdefs.WithOp(op, err)
	}
	return nil
}

// SetParent re-parents a role after validating the edit against a fresh
// snapshot. The parent must exist in the same service, and assigning it
// must not create a cycle: if roleID appears anywhere on the new parent's
// ancestor chain the edit is rejected. A nil parent makes the role a root.
//
// The snapshot is re-fetched on every call; a concurrently edited
// hierarchy must not be trusted between calls.
func (s *Service) SetParent(ctx context.Context, serviceID, roleID string, parentID *string) error {
	const op = "hierarchy.SetParent"

	roles, err := s.gw.ListRoles(ctx, serviceID)
	if err != nil {
		return errdefs.WithOp(op, err)
	}
	index := byID(roles)
	if index[roleID] == nil {
		return errdefs.Newf(op, errdefs.KindNotFound, "role %s not found in this service", roleID)
	}

	if parentID != nil {
		if *parentID == roleID {
			return errdefs.New(op, errdefs.KindInvalidParent, "a role cannot be its own parent")
		}
		parent := index[*parentID]
		if parent == nil {
			return errdefs.Newf(op, errdefs.KindInvalidParent,
				"parent role %s does not exist in this service", *parentID)
		}
		// Walk the prospective parent's ancestor chain. Finding roleID
		// there means the parent is a descendant of the role.
		visited := map[string]bool{}
		for cur := parent; cur != nil; {
			if cur.ID == roleID {
				return errdefs.Newf(op, errdefs.KindInvalidParent,
					"cannot set parent: %s is a descendant of %s", *parentID, roleID)
			}
			if visited[cur.ID] {
				// Pre-existing cycle above the parent. The edit itself
				// does not involve roleID, so it is allowed; the cycle
				// stays visible through DetectAnomalies.
				break
			}
			visited[cur.ID] = true
			if cur.ParentRoleID == nil {
				break
			}
			cur = index[*cur.ParentRoleID]
		}
	}

	if err := s.gw.SetRoleParent(ctx, roleID, parentID); err != nil {
		return errdefs.WithOp(op, err)
	}
	return nil
}

// EffectiveSet is the inherited permission view of one role.
type EffectiveSet struct {
	// Permissions is the union of the role's own bound permissions and
	// those of every ancestor, deduplicated, sorted by code.
	Permissions []gateway.Permission `json:"permissions"`
	// Cyclic is true when the ancestor walk revisited a node. The union
	// is still complete over the reachable roles.
	Cyclic bool `json:"cyclic"`
}

// EffectivePermissions computes the union of directly bound permissions
// over the role and all of its ancestors. The walk stops at the first
// already-visited node, so a cyclic chain terminates and is reported via
// Cyclic rather than looping. A dangling parent reference simply ends the
// chain. Side-effect-free.
func (s *Service) EffectivePermissions(ctx context.Context, serviceID, roleID string) (*EffectiveSet, error) {
	const op = "hierarchy.EffectivePermissions"

	role, err := s.roleInService(ctx, op, serviceID, roleID)
	if err != nil {
		return nil, err
	}
	roles, err := s.gw.ListRoles(ctx, serviceID)
	if err != nil {
		return nil, errdefs.WithOp(op, err)
	}
	index := byID(roles)

	set := &EffectiveSet{Permissions: []gateway.Permission{}}
	seen := map[string]bool{}
	visited := map[string]bool{}
	for cur := role; cur != nil; {
		if visited[cur.ID] {
			set.Cyclic = true
			break
		}
		visited[cur.ID] = true

		perms, err := s.gw.ListRolePermissions(ctx, cur.ID)
		if err != nil {
			return nil, errdefs.WithOp(op, err)
		}
		for _, p := range perms {
			if !seen[p.ID] {
				seen[p.ID] = true
				set.Permissions = append(set.Permissions, p)
			}
		}
		if cur.ParentRoleID == nil {
			break
		}
		cur = index[*cur.ParentRoleID]
	}
	sort.Slice(set.Permissions, func(i, j int) bool {
		return set.Permissions[i].Code < set.Permissions[j].Code
	})
	return set, nil
}

// Anomalies lists the hierarchy violations found in one service.
type Anomalies struct {
	// Orphaned roles declare a parent that does not exist in the
	// current role set.
	Orphaned []gateway.Role `json:"orphaned"`
	// Cyclic roles are those whose ancestor walk revisits a node,
	// whether the role sits on the cycle or merely below one.
	Cyclic []gateway.Role `json:"cyclic"`
}

// DetectAnomalies scans a fresh snapshot of the service's roles for
// orphaned parent references and parent-chain cycles. Every walk is
// bounded by a visited set, so this terminates on arbitrary input and
// never fails on malformed data; only gateway errors are returned.
func (s *Service) DetectAnomalies(ctx context.Context, serviceID string) (*Anomalies, error) {
	roles, err := s.gw.ListRoles(ctx, serviceID)
	if err != nil {
		return nil, errdefs.WithOp("hierarchy.DetectAnomalies", err)
	}
	index := byID(roles)

	out := &Anomalies{Orphaned: []gateway.Role{}, Cyclic: []gateway.Role{}}
	for _, r := range roles {
		if r.ParentRoleID != nil && index[*r.ParentRoleID] == nil {
			out.Orphaned = append(out.Orphaned, r)
		}
		if walkRevisits(r, index) {
			out.Cyclic = append(out.Cyclic, r)
		}
	}
	sort.Slice(out.Orphaned, func(i, j int) bool { return out.Orphaned[i].Name < out.Orphaned[j].Name })
	sort.Slice(out.Cyclic, func(i, j int) bool { return out.Cyclic[i].Name < out.Cyclic[j].Name })
	return out, nil
}

// walkRevisits reports whether the ancestor walk from r hits a node twice.
func walkRevisits(r gateway.Role, index map[string]*gateway.Role) bool {
	visited := map[string]bool{}
	for cur := &r; cur != nil; {
		if visited[cur.ID] {
			return true
		}
		visited[cur.ID] = true
		if cur.ParentRoleID == nil {
			return false
		}
		cur = index[*cur.ParentRoleID]
	}
	return false
}

func byID(roles []gateway.Role) map[string]*gateway.Role {
	index := make(map[string]*gateway.Role, len(roles))
	for i := range roles {
		index[roles[i].ID] = &roles[i]
	}
	return index
}
