// Package auth implements Atlassian OAuth 2.0 (3LO) login, token refresh and
// the persisted list of logged-in accounts.
package auth
