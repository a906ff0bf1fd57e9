package auth

import "context"

var _ Checker = (*LoginChecker)(nil)
var _ Checker = (*LoginTestChecker)(nil)

// Checker tells the auth middleware whether a coach session token is valid.
type Checker interface {
	IsLogged(ctx context.Context, token string) (bool, error)
}
