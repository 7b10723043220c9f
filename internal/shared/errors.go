package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Catalog errors
	ErrCatalogAuth   = fmt.Errorf("catalog authentication failed")
	ErrCatalogLookup = fmt.Errorf("catalog lookup failed")

	// Delivery errors
	ErrFetch       = fmt.Errorf("fetch failed")
	ErrPublish     = fmt.Errorf("publish failed")
	ErrPublishAuth = fmt.Errorf("publishing credentials rejected")

	// Storage errors
	ErrLedgerIO = fmt.Errorf("ledger I/O failed")

	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
