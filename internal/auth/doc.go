// Package auth implements authentication and authorization for the Item Sorter Container.
//
// Bearer tokens are JWTs signed with HS256 (shared secret) or RS256 (PEM
// public key). Viewers hold the read and telemetry scopes; operators also hold
// dispatch, which is required to queue orders and start the robot.
package auth
