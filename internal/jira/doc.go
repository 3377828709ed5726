// Package jira provides an HTTP client for the Jira Cloud REST API (v3).
//
// # Overview
//
// A Client is bound to one logged-in account. Requests go to
// https://api.atlassian.com/ex/jira/{cloudId} and carry the account's OAuth
// access token as a bearer token.
//
// The package is split into:
//
//   - client.go: construction, request plumbing and worklog mutations
//   - transport.go: bearer injection and refresh-on-401
//   - worklogs.go: paged retrieval of the account's recent worklogs
//   - search.go: issue search used by the add dialog
//   - adf.go: Atlassian Document Format conversion for comments
//   - types.go: data structures mirroring the Jira API schema
//
// # Token Refresh
//
// A 401 response triggers a single refresh through the Refresher and the
// request is replayed once. Rotated tokens are handed to Options.OnRefresh
// for persistence. If the refresh token itself is rejected the refresher's
// error (auth.ErrSessionExpired) is returned unchanged, wrapped in the
// usual *url.Error.
//
// # Worklog Retrieval
//
// RemoteWorklogs searches issues with
//
//	worklogAuthor = {accountId} AND worklogDate > -{N}w
//
// 40 issues at a time. Issues whose embedded worklog page is incomplete are
// paged through the issue worklog endpoint 5000 entries at a time, limited
// to worklogs started within the same window. Either loop gives up after 20
// calls.
//
// Only worklogs authored by the account that carry both a start and a time
// spent are returned. Durations are parsed from the display value (1d = 8h,
// 1w = 5d) and fall back to timeSpentSeconds.
//
// # Errors
//
// Non-2xx responses become *APIError, which includes Jira's errorMessages.
// IsNotFound distinguishes 404s so callers can treat vanished worklogs as
// already deleted.
package jira
