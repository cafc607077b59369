// Package client is the remote side of the vault.
//
// GRPCClient implements services.Vault against a saveme daemon. It keeps the
// access token returned by Unlock, injects it into every call through a
// unary interceptor and maps gRPC status codes back to the sentinel errors
// of the vault packages, so callers can keep using errors.Is.
//
// Media crosses the wire inline. AddFile reads the source file, RevealFile
// and View write the returned bytes to the destination path.
package client
