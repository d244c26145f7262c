// Package accounts registers, authenticates and deletes user accounts.
//
// Registration stamps the active tenant on the new user, creates the user's
// personal team and initializes it as the current team. This is the one
// well-defined place where a current team is assigned implicitly.
package accounts
