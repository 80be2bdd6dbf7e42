package accountsdk

import "time"

// Identity is the signed in account as issued by the server. Front ends
// compare IDs, never email addresses, to decide whether a row is "me".
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Kind  string `json:"kind"`
	Role  string `json:"role"`
}

type LoginResult struct {
	AccessToken string   `json:"access_token"`
	User        Identity `json:"user"`
}

type User struct {
	ID               string     `json:"id"`
	Kind             string     `json:"kind"`
	Email            string     `json:"email"`
	FullName         string     `json:"full_name"`
	OrganizationName string     `json:"organization_name,omitempty"`
	ContactNumber    string     `json:"contact_number,omitempty"`
	Role             string     `json:"role"`
	Status           string     `json:"status"`
	HasAccreditation bool       `json:"has_accreditation"`
	CreatedAt        time.Time  `json:"created_at"`
	VerifiedAt       *time.Time `json:"verified_at,omitempty"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
}

// Document is an accreditation file attached to an organization registration.
type Document struct {
	Filename string
	Content  []byte
}

type OrgRegistration struct {
	OrganizationName string `json:"organization_name"`
	FullName         string `json:"full_name"`
	Email            string `json:"email"`
	ContactNumber    string `json:"contact_number,omitempty"`
	Password         string `json:"password"`
	ConfirmPassword  string `json:"confirm_password"`

	Accreditation *Document `json:"-"`
}

type VerifyResult struct {
	Status           string `json:"status"`
	AwaitingApproval bool   `json:"awaiting_approval"`
	Message          string `json:"-"`
}

// ResetFlow is the raw reset session payload. ExpiresIn and ResendIn are whole
// seconds relative to the moment the server answered.
type ResetFlow struct {
	FlowToken  string    `json:"flow_token"`
	Email      string    `json:"email"`
	State      string    `json:"state"`
	CodeLength int       `json:"code_length"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	ExpiresIn  int64     `json:"expires_in"`
	ResendIn   int64     `json:"resend_in"`
	Message    string    `json:"-"`
}

type RedeemResult struct {
	RedirectAfter int64  `json:"redirect_after"`
	Message       string `json:"-"`
}

type AccreditationLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// User kinds and roles accepted by the directory endpoints.
const (
	KindStaff        = "staff"
	KindOrganization = "organization"

	StateActive    = "ACTIVE"
	StateExpired   = "EXPIRED"
	StateCompleted = "COMPLETED"
)
