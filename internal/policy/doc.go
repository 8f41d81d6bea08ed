// Package policy holds the route permission table for the eloboost backend.
//
// The table maps request paths to the role required to reach them:
//   - Page routes (owner/dashboard, dashboard, ...)
//   - API routes (api/owner/users, api/client/profile, ...)
//   - Prefix patterns ending in "/*" that cover whole API subtrees
//
// Paths that appear nowhere in the table are public. The table is built once
// at startup and is read-only afterwards, so it is safe for concurrent use.
package policy
