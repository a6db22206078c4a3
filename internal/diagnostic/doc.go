// Package diagnostic keeps a queryable log of what the simulator did:
// devices plugged and unplugged, groups created, membership and rule
// changes, operator commands.
package diagnostic
