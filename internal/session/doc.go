// Package session defines the credential store records (Session,
// BearerToken, OAuthCredential) and the Store interface with in-memory and
// Redis backends. The store is the single mutator of its records; every
// credential rotation is a single full write so concurrent readers never see
// a partially updated token set.
package session
