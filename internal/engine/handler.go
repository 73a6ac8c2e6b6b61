package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"

	"restricted-backend/internal/identity"
	"restricted-backend/internal/membership"
	"restricted-backend/internal/notify"
	"restricted-backend/internal/restriction"
	"restricted-backend/internal/store"
)

// PackageAuthorizer answers whether an identity holds management rights on
// a package. Managers bypass restriction checks and see unredacted
// allowlists.
type PackageAuthorizer interface {
	CanManagePackage(ctx context.Context, identity, packageID string) (bool, error)
}

type Handler struct {
	store    *store.Store
	lookup   membership.Lookup
	authz    PackageAuthorizer
	notifier *notify.Notifier
}

func NewHandler(s *store.Store, lookup membership.Lookup, authz PackageAuthorizer, notifier *notify.Notifier) *Handler {
	return &Handler{store: s, lookup: lookup, authz: authz, notifier: notifier}
}

// ShowResource handles GET /api/resources/:id. Package managers always see
// the resource; everyone else goes through the restriction evaluator, and
// non-privileged viewers get a redacted allowlist.
func (h *Handler) ShowResource(c *fiber.Ctx) error {
	id := c.Params("id")
	viewer := identity.FromContext(c)

	resource, err := store.GetResource(c.Context(), h.store.Pool, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("resource", id)
		}
		return fmt.Errorf("get resource %s: %w", id, err)
	}

	packageID, _ := resource["package_id"].(string)
	privileged, err := h.isPrivileged(c.Context(), viewer, packageID)
	if err != nil {
		return err
	}

	if !privileged {
		decision, err := h.evaluate(c.Context(), viewer.Username(), resource, packageID)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			return ForbiddenError(decision.Reason)
		}
	}

	return c.JSON(fiber.Map{
		"data": restriction.RedactForListing(resource, privileged, viewer.Username()),
	})
}

// SearchResources handles GET /api/resources. Every result's allowlist is
// redacted for the viewer; ?accessible=true additionally drops resources
// the viewer cannot open and corrects the count.
func (h *Handler) SearchResources(c *fiber.Ctx) error {
	viewer := identity.FromContext(c)
	query := c.Query("q")
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)
	accessibleOnly := c.QueryBool("accessible", false)

	results, count, err := store.SearchResources(c.Context(), h.store.Pool, query, limit, offset)
	if err != nil {
		return err
	}

	if accessibleOnly {
		pkgByID, err := h.packageContexts(c.Context(), results)
		if err != nil {
			return err
		}
		results, count, err = restriction.FilterAccessible(
			c.Context(), results, viewer.Username(), pkgByID, h.lookup)
		if err != nil {
			return h.mapLookupFailure(err)
		}
	}

	redacted := make([]map[string]any, 0, len(results))
	for _, res := range results {
		packageID, _ := res["package_id"].(string)
		privileged, err := h.isPrivileged(c.Context(), viewer, packageID)
		if err != nil {
			return err
		}
		redacted = append(redacted, restriction.RedactForListing(res, privileged, viewer.Username()))
	}

	return c.JSON(fiber.Map{
		"data": redacted,
		"meta": fiber.Map{"count": count, "limit": limit, "offset": offset},
	})
}

// CheckAccess handles GET /api/check_access. Both package_id and
// resource_id are required; package_id accepts an id or a name. The
// response carries the decision and, on denial, the tier reason.
func (h *Handler) CheckAccess(c *fiber.Ctx) error {
	packageRef := c.Query("package_id")
	resourceID := c.Query("resource_id")
	if packageRef == "" {
		return ValidationError("Missing package_id")
	}
	if resourceID == "" {
		return ValidationError("Missing resource_id")
	}

	viewer := identity.FromContext(c)

	pkg, err := store.GetPackage(c.Context(), h.store.Pool, packageRef)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("package", packageRef)
		}
		return fmt.Errorf("get package %s: %w", packageRef, err)
	}
	packageID, _ := pkg["id"].(string)
	ownerOrg, _ := pkg["owner_org"].(string)

	resource, err := store.GetResource(c.Context(), h.store.Pool, resourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("resource", resourceID)
		}
		return fmt.Errorf("get resource %s: %w", resourceID, err)
	}

	privileged, err := h.isPrivileged(c.Context(), viewer, packageID)
	if err != nil {
		return err
	}
	if privileged {
		return c.JSON(fiber.Map{"data": restriction.Decision{Allowed: true}})
	}

	decision, err := restriction.EvaluateRaw(c.Context(), viewer.Username(), resource,
		restriction.PackageContext{OwnerOrgID: ownerOrg}, h.lookup)
	if err != nil {
		return h.mapLookupFailure(err)
	}
	return c.JSON(fiber.Map{"data": decision})
}

// UpdateRestriction handles PUT /api/resources/:id/restriction. Only
// package managers may change the policy. Email entries in allowed_users
// are resolved to usernames before the write; after it, every newly granted
// user is notified once.
func (h *Handler) UpdateRestriction(c *fiber.Ctx) error {
	id := c.Params("id")
	viewer := identity.FromContext(c)
	if viewer == nil {
		return UnauthorizedError("Authentication required")
	}

	var body struct {
		Restricted string `json:"restricted"`
	}
	if err := c.BodyParser(&body); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Restricted == "" {
		return ValidationError("Missing restricted value")
	}

	resource, err := store.GetResource(c.Context(), h.store.Pool, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("resource", id)
		}
		return fmt.Errorf("get resource %s: %w", id, err)
	}

	packageID, _ := resource["package_id"].(string)
	privileged, err := h.isPrivileged(c.Context(), viewer, packageID)
	if err != nil {
		return err
	}
	if !privileged {
		return ForbiddenError("Only package managers may change resource restrictions")
	}

	normalized, err := restriction.NormalizeAllowedUsers(c.Context(), body.Restricted,
		func(ctx context.Context, email string) (string, error) {
			return store.UsernameForEmail(ctx, h.store.Pool, email)
		})
	if err != nil {
		return fmt.Errorf("resolve allowed users: %w", err)
	}

	prev, updated, err := h.store.UpdateResourceRestriction(c.Context(), id, normalized)
	if err != nil {
		return fmt.Errorf("update restriction: %w", err)
	}

	granted := restriction.DiffGrantedUsers(prev, updated["restricted"])
	if len(granted) > 0 && h.notifier != nil {
		// Delivery must not fail or delay the write response.
		go h.notifier.NotifyGranted(context.Background(), granted, updated)
	}

	return c.JSON(fiber.Map{
		"data": restriction.RedactForListing(updated, true, viewer.Username()),
	})
}

// evaluate runs the restriction policy for one resource, resolving the
// package owner org through the gateway. Gateway failures come back as the
// LOOKUP_FAILED app error.
func (h *Handler) evaluate(ctx context.Context, username string, resource map[string]any, packageID string) (restriction.Decision, error) {
	ownerOrg, err := h.lookup.PackageOwnerOrg(ctx, packageID)
	if err != nil {
		return restriction.Decision{}, LookupFailedError(err)
	}

	decision, err := restriction.EvaluateRaw(ctx, username, resource,
		restriction.PackageContext{OwnerOrgID: ownerOrg}, h.lookup)
	if err != nil {
		return restriction.Decision{}, h.mapLookupFailure(err)
	}
	return decision, nil
}

func (h *Handler) isPrivileged(ctx context.Context, viewer *identity.Identity, packageID string) (bool, error) {
	if viewer.IsSysadmin() {
		return true, nil
	}
	if viewer == nil || packageID == "" {
		return false, nil
	}
	ok, err := h.authz.CanManagePackage(ctx, viewer.Username(), packageID)
	if err != nil {
		return false, LookupFailedError(err)
	}
	return ok, nil
}

// packageContexts resolves owner orgs for every distinct package in a
// result set, one lookup per package.
func (h *Handler) packageContexts(ctx context.Context, resources []map[string]any) (map[string]restriction.PackageContext, error) {
	pkgByID := make(map[string]restriction.PackageContext)
	for _, res := range resources {
		pkgID, _ := res["package_id"].(string)
		if pkgID == "" {
			continue
		}
		if _, done := pkgByID[pkgID]; done {
			continue
		}
		ownerOrg, err := h.lookup.PackageOwnerOrg(ctx, pkgID)
		if err != nil {
			return nil, LookupFailedError(err)
		}
		pkgByID[pkgID] = restriction.PackageContext{OwnerOrgID: ownerOrg}
	}
	return pkgByID, nil
}

// mapLookupFailure converts gateway failures to the LOOKUP_FAILED response
// so they are never mistaken for a denial. Other errors pass through to the
// app error handler.
func (h *Handler) mapLookupFailure(err error) error {
	if errors.Is(err, restriction.ErrMembershipLookup) {
		log.Printf("engine: membership lookup failed: %v", err)
		return LookupFailedError(err)
	}
	return err
}
