// Package credentials resolves OAuth client registrations (client id and
// secret) per provider. Production deployments use the environment-backed
// source; tests use the static one.
package credentials
