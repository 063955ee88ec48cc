// Package registry manages the flat permission catalog of a service and
// the edge set binding roles to permissions.
package registry

import (
	"context"
	"strings"

	"github.com/authplane/authplane/pkg/errdefs"
	"github.com/authplane/authplane/pkg/gateway"
)

// Service wraps catalog and binding operations around the gateway.
type Service struct {
	gw gateway.Client
}

// New creates a registry service over the given gateway.
func New(gw gateway.Client) *Service {
	return &Service{gw: gw}
}

// List returns the permission catalog of one service.
func (s *Service) List(ctx context.Context, serviceID string) ([]gateway.Permission, error) {
	perms, err := s.gw.ListPermissions(ctx, serviceID)
	if err != nil {
		return nil, errdefs.WithOp("registry.List", err)
	}
	return perms, nil
}

// Create adds a permission to the catalog. The code must be non-empty and
// unique within the service; duplicates are rejected from a fresh snapshot
// before the write is forwarded.
func (s *Service) Create(ctx context.Context, serviceID string, in gateway.PermissionInput) (*gateway.Permission, error) {
	const op = "registry.Create"
	if strings.TrimSpace(in.Code) == "" {
		return nil, errdefs.New(op, errdefs.KindInvalidInput, "permission code is required")
	}
	existing, err := s.gw.ListPermissions(ctx, serviceID)
	if err != nil {
		return nil, errdefs.WithOp(op, err)
	}
	for _, p := range existing {
		if p.Code == in.Code {
			return nil, errdefs.Newf(op, errdefs.KindInvalidInput,
				"permission code %q already exists in this service", in.Code)
		}
	}
	p, err := s.gw.CreatePermission(ctx, serviceID, in)
	if err != nil {
		// Another operator may have created the code between the
		// snapshot and the write.
		if errdefs.IsConflict(err) {
			return nil, errdefs.Newf(op, errdefs.KindInvalidInput,
				"permission code %q already exists in this service", in.Code)
		}
		return nil, errdefs.WithOp(op, err)
	}
	return p, nil
}

// Delete removes a permission from the catalog. Bindings that referenced
// it are not granted anymore; they are not cleaned up here.
func (s *Service) Delete(ctx context.Context, permissionID string) error {
	if err := s.gw.DeletePermission(ctx, permissionID); err != nil {
		return errdefs.WithOp("registry.Delete", err)
	}
	return nil
}

// Bind grants a permission to a role. Binding an already-bound pair is a
// no-op success; administration tools must tolerate double submission.
func (s *Service) Bind(ctx context.Context, roleID, permissionID string) error {
	err := s.gw.AssignPermission(ctx, roleID, permissionID)
	if err != nil && errdefs.IsConflict(err) {
		// Already bound, possibly by a concurrent operator.
		return nil
	}
	if err != nil {
		return errdefs.WithOp("registry.Bind", err)
	}
	return nil
}

// Unbind revokes a permission from a role. Unbinding an absent pair is a
// no-op success. A NotFound from the gateway is only swallowed when the
// role itself exists; a missing role is still an error.
func (s *Service) Unbind(ctx context.Context, roleID, permissionID string) error {
	const op = "registry.Unbind"
	err := s.gw.RemovePermission(ctx, roleID, permissionID)
	if err == nil {
		return nil
	}
	if errdefs.IsNotFound(err) {
		if _, gerr := s.gw.GetRole(ctx, roleID); gerr == nil {
			return nil
		}
	}
	return errdefs.WithOp(op, err)
}

// ListForRole returns the permissions directly bound to a role. Inherited
// grants are the hierarchy package's job.
func (s *Service) ListForRole(ctx context.Context, roleID string) ([]gateway.Permission, error) {
	perms, err := s.gw.ListRolePermissions(ctx, roleID)
	if err != nil {
		return nil, errdefs.WithOp("registry.ListForRole", err)
	}
	return perms, nil
}
