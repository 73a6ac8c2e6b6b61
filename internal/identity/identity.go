package identity

import "github.com/gofiber/fiber/v2"

// Identity is the authenticated requester, set by the auth middleware. A
// nil *Identity means anonymous; the policy engine treats that as its own
// tier, not an error.
type Identity struct {
	Name     string `json:"name"`
	Sysadmin bool   `json:"sysadmin"`
}

// Username returns the identity's username, empty for anonymous.
func (i *Identity) Username() string {
	if i == nil {
		return ""
	}
	return i.Name
}

// IsSysadmin reports whether the identity has site-wide admin rights.
func (i *Identity) IsSysadmin() bool {
	return i != nil && i.Sysadmin
}

// FromContext extracts the Identity from a Fiber context, nil when
// anonymous.
func FromContext(c *fiber.Ctx) *Identity {
	id, _ := c.Locals("identity").(*Identity)
	return id
}

// Set stores the Identity on the request context.
func Set(c *fiber.Ctx, id *Identity) {
	c.Locals("identity", id)
}
