package service

//go:generate mockgen -source=authorizer.go -destination=authorizer_mock.go -package=service

// Authorizer checks the administrator credential that gates destructive
// operations such as deleting sales.
type Authorizer interface {
	ValidateAdminPassword(password string) bool
}
