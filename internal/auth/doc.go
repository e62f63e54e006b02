// Package auth authenticates API callers of the automation service.
//
// Callers present an HS256 JWT whose subject is the user (or service)
// identity and whose role selects a fixed permission set. The subject is
// carried into every core.Context the API creates, so state changes caused
// by an executed action are attributed to the caller.
//
// Tokens are minted by the Gray Logic core or with
// `graylogic-automation token`; this service never stores credentials.
package auth
