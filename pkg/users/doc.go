// Package users persists user accounts.
//
// Users are tenant-scoped: Service.Create stamps the active tenant and
// Service.List only returns users of the active tenant when running in an
// interactive execution context. Users are soft-deleted.
//
// The current_team_id column is written by the teams package through
// SetCurrentTeam and ClearCurrentTeam, which accept any storage.Querier so they
// can participate in a team lifecycle transaction.
package users
