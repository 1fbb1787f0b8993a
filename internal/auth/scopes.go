package auth

// Known OAuth scopes used by the service.
const (
	ScopeCarbonWrite = "carbon:write"
	ScopeCarbonRead  = "carbon:read"
)
