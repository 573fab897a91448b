package limits

import "fmt"

// Resource is a metered resource type tag. The set is closed: use
// ParseResource at the edges and the constants below everywhere else.
type Resource string

const (
	ResourceCustomers     Resource = "customers"
	ResourceQRCodes       Resource = "qr_codes"
	ResourceDocuments     Resource = "documents"
	ResourceAPICalls      Resource = "api_calls"
	ResourceStorage       Resource = "storage"
	ResourceTeamMembers   Resource = "team_members"
	ResourceWebhooks      Resource = "webhooks"
	ResourceCustomDomains Resource = "custom_domains"
	ResourceEmailSends    Resource = "email_sends"
)

// AllResources lists every known resource in display order.
var AllResources = []Resource{
	ResourceCustomers,
	ResourceQRCodes,
	ResourceDocuments,
	ResourceAPICalls,
	ResourceStorage,
	ResourceTeamMembers,
	ResourceWebhooks,
	ResourceCustomDomains,
	ResourceEmailSends,
}

// Valid reports whether r is one of the known resource types.
func (r Resource) Valid() bool {
	switch r {
	case ResourceCustomers, ResourceQRCodes, ResourceDocuments, ResourceAPICalls, ResourceStorage,
		ResourceTeamMembers, ResourceWebhooks, ResourceCustomDomains, ResourceEmailSends:
		return true
	}
	return false
}

func (r Resource) String() string { return string(r) }

// ParseResource converts a wire tag into a Resource.
func ParseResource(s string) (Resource, error) {
	r := Resource(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidResourceType, s)
	}
	return r, nil
}
