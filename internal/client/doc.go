// Package client talks to the remote sync authority.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface): Push a batch
//     of dirty records, Pull the records changed since a watermark, Ping.
//  2. HTTPClient, speaking the JSON protocol of the mobile app
//     (POST /sync/push, GET /sync/pull, GET /health).
//  3. GRPCClient, carrying the same JSON documents as google.protobuf.Struct
//     messages and injecting credentials through a unary interceptor.
//  4. OwnerFromToken, which derives the owner id from a session token.
//
// # Error Handling
//
// Transport conditions are exposed as sentinel errors that callers can match
// with errors.Is: ErrUnavailable, ErrUnauthorized, ErrBadResponse.
//
// Pulled records are decoded leniently: status and item type strings are passed
// through unparsed, and records whose timestamps cannot be read are reported
// in Batch.Rejected instead of failing the whole pull.
//
// Implementations are safe for concurrent use. All operations accept a
// context.Context and honor cancellation and deadlines.
package client
