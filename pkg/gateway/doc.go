// Package gateway defines the request/response contract with the remote
// identity-administration API and provides two implementations of it:
//
//   - HTTP: the production client. Every call is a single synchronous JSON
//     round trip with a bounded timeout; failures map onto the errdefs
//     taxonomy and carry the originating operation name.
//   - Memory: an in-process implementation with the same semantics, used by
//     dev mode and tests.
//
// Field names in the wire types are part of the external contract and must
// not be changed.
package gateway
