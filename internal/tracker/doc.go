// Package tracker reconciles locally tracked worklogs with Jira.
//
// The Service keeps two collections in storage: the remote cache
// (worklogsRemote), replaced on every refresh, and the local change set
// (worklogsLocal), which holds created, edited and deleted entries until
// they are pushed. Readers always see worklog.Merge(remote, local).
//
// Push backs up the change set to worklogsLocalBackups before talking to
// Jira so Restore can undo a push that went wrong.
package tracker
