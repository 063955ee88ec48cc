// Package policy owns the draft/publish/rollback lifecycle of a tenant's
// policy versions and the simulation contract against the
// evaluation engine.
//
// Version history is append-only. Version numbers are assigned by the
// store, strictly increase per tenant and are never reused. At most one
// version is active (published or shadow) per tenant at a time; publishing
// or rolling back supersedes the previously active version without
// touching its document. Rollback and publish are the same transition;
// only the caller's intent differs.
package policy

import (
	"context"
	"encoding/json"

	"github.com/authplane/authplane/pkg/errdefs"
	"github.com/authplane/authplane/pkg/gateway"
)

// Service drives the policy version state machine for one gateway.
type Service struct {
	gw gateway.Client
}

// New creates a policy service over the given gateway.
func New(gw gateway.Client) *Service {
	return &Service{gw: gw}
}

// validateDocument checks the shape of a policy document. Conditions are
// opaque to this layer; they only have to be valid JSON. Rule semantics
// belong to the evaluation engine.
func validateDocument(op string, doc *gateway.PolicyDocument) error {
	if doc == nil || doc.Rules == nil {
		return errdefs.New(op, errdefs.KindInvalidInput, "policy rules must be an array")
	}
	if len(doc.Rules) == 0 {
		return errdefs.New(op, errdefs.KindInvalidInput, "policy must contain at least one rule")
	}
	for i, r := range doc.Rules {
		if r.ID == "" {
			return errdefs.Newf(op, errdefs.KindInvalidInput, "rule %d is missing an id", i)
		}
		if r.Effect != gateway.EffectAllow && r.Effect != gateway.EffectDeny {
			return errdefs.Newf(op, errdefs.KindInvalidInput,
				"rule %q effect must be allow or deny, got %q", r.ID, r.Effect)
		}
		if len(r.Condition) > 0 && !json.Valid(r.Condition) {
			return errdefs.Newf(op, errdefs.KindInvalidInput, "rule %q condition is not valid JSON", r.ID)
		}
	}
	return nil
}

// ListVersions returns the tenant's policy set and version history,
// newest first.
func (s *Service) ListVersions(ctx context.Context, tenantID string) (*gateway.PolicyList, error) {
	list, err := s.gw.ListPolicyVersions(ctx, tenantID)
	if err != nil {
		return nil, errdefs.WithOp("policy.ListVersions", err)
	}
	return list, nil
}

// GetVersion returns one version including its document.
func (s *Service) GetVersion(ctx context.Context, tenantID, versionID string) (*gateway.PolicyVersion, error) {
	v, err := s.gw.GetPolicyVersion(ctx, tenantID, versionID)
	if err != nil {
		return nil, errdefs.WithOp("policy.GetVersion", err)
	}
	return v, nil
}

// CreateDraft validates the document locally and appends a new draft
// version to the tenant's history.
func (s *Service) CreateDraft(ctx context.Context, tenantID string, doc *gateway.PolicyDocument, changeNote string) (*gateway.PolicyVersion, error) {
	const op = "policy.CreateDraft"
	if err := validateDocument(op, doc); err != nil {
		return nil, err
	}
	v, err := s.gw.CreateDraft(ctx, tenantID, *doc, changeNote)
	if err != nil {
		return nil, errdefs.WithOp(op, err)
	}
	return v, nil
}

// UpdateDraft replaces the document of a version still in draft. Any
// other status is immutable history and fails with NotEditable.
func (s *Service) UpdateDraft(ctx context.Context, tenantID, versionID string, doc *gateway.PolicyDocument, changeNote string) error {
	const op = "policy.UpdateDraft"
	if err := validateDocument(op, doc); err != nil {
		return err
	}
	if err := s.gw.UpdateDraft(ctx, tenantID, versionID, *doc, changeNote); err != nil {
		return errdefs.WithOp(op, err)
	}
	return nil
}

// Publish activates a version in the given mode. The previously active
// version, if any, becomes superseded; its document is untouched.
// Publishing the already-active version in the same mode is a Conflict.
func (s *Service) Publish(ctx context.Context, tenantID, versionID string, mode gateway.Mode) error {
	const op = "policy.Publish"
	if !mode.Valid() {
		return errdefs.Newf(op, errdefs.KindInvalidInput, "mode must be enforce or shadow, got %q", mode)
	}
	if err := s.gw.PublishVersion(ctx, tenantID, versionID, mode); err != nil {
		return errdefs.WithOp(op, err)
	}
	return nil
}

// Rollback re-activates an existing version, typically a superseded one.
// Mechanically identical to Publish.
func (s *Service) Rollback(ctx context.Context, tenantID, versionID string, mode gateway.Mode) error {
	const op = "policy.Rollback"
	if !mode.Valid() {
		return errdefs.Newf(op, errdefs.KindInvalidInput, "mode must be enforce or shadow, got %q", mode)
	}
	if err := s.gw.RollbackVersion(ctx, tenantID, versionID, mode); err != nil {
		return errdefs.WithOp(op, err)
	}
	return nil
}

// GetActive returns the tenant's active version and mode, or nil when no
// version is active.
func (s *Service) GetActive(ctx context.Context, tenantID string) (*gateway.ActiveVersion, error) {
	const op = "policy.GetActive"
	list, err := s.gw.ListPolicyVersions(ctx, tenantID)
	if err != nil {
		return nil, errdefs.WithOp(op, err)
	}
	if list.PolicySet.PublishedVersionID == nil {
		return nil, nil
	}
	for _, v := range list.Versions {
		if v.ID == *list.PolicySet.PublishedVersionID {
			return &gateway.ActiveVersion{Version: v, Mode: list.PolicySet.Mode}, nil
		}
	}
	// The set points at a version the history no longer contains.
	return nil, errdefs.Newf(op, errdefs.KindNotFound,
		"active version %s is missing from the tenant's history", *list.PolicySet.PublishedVersionID)
}

// DeleteVersion removes a version from the history. Rare administrative
// action; the active version is refused.
func (s *Service) DeleteVersion(ctx context.Context, tenantID, versionID string) error {
	const op = "policy.DeleteVersion"
	list, err := s.gw.ListPolicyVersions(ctx, tenantID)
	if err != nil {
		return errdefs.WithOp(op, err)
	}
	if list.PolicySet.PublishedVersionID != nil && *list.PolicySet.PublishedVersionID == versionID {
		return errdefs.New(op, errdefs.KindConflict, "the active version cannot be deleted")
	}
	if err := s.gw.DeleteVersion(ctx, tenantID, versionID); err != nil {
		return errdefs.WithOp(op, err)
	}
	return nil
}
