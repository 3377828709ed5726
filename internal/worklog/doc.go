// Package worklog holds the time entry model and the pure logic around it:
// Jira duration parsing, day arithmetic, merging local changes over the
// remote collection, and the running timer.
//
// Worklogs move through four states. Entries fetched from Jira are synced.
// Changing a synced entry marks it edited, creating one offline marks it
// created (with a local- ID), and deleting a remote entry marks it deleted
// until the deletion reaches Jira. Created entries that are deleted before
// they are pushed simply disappear.
package worklog
