// Package auth owns account signup and signin, password hashing, and the
// bearer tokens that authenticate mutating API calls.
//
// Passwords are stored as bcrypt hashes. Tokens are HS256 JWTs signed with
// the configured secret and carry the user id and username.
package auth
