package portal

// Route path constants, relative to the configured API base URL
const (
	// Supplier account routes
	RouteLogin    = "/suppliers/login"
	RouteRegister = "/suppliers/register"

	// Procurement routes
	RouteNeeds          = "/needs"
	RouteSubmitProposal = "/proposals/submit"
)
