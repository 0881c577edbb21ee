package decision

import "github.com/sawpanic/advisoryengine/internal/reasontag"

// derivePermission implements Stage G (spec §4.6): execution permission
// is decided from the tag set, never from confidence.
func derivePermission(tags []reasontag.Tag) ExecutionPermission {
	switch reasontag.HighestLevel(tags) {
	case reasontag.BLOCK:
		return Deny
	case reasontag.DEGRADE:
		return AllowReduced
	default:
		return Allow
	}
}

// atLeastAsRestrictiveAs returns the more restrictive of p and floor,
// used to force a minimum restriction level (e.g. degraded mode forcing
// at least ALLOW_REDUCED) without loosening an already-stricter DENY.
func atLeastAsRestrictiveAs(p, floor ExecutionPermission) ExecutionPermission {
	if p > floor {
		return p
	}
	return floor
}
