package constant

// Casbin objects.
const (
	PermAccountUsers     = "account.users"
	PermAccountApprovals = "account.approvals"
)

// Casbin actions.
const (
	PermActRead     = "read"
	PermActUpdate   = "update"
	PermActDelete   = "delete"
	PermActModerate = "moderate"
)
