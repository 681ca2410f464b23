// Package client contains the client-side building blocks for talking to the
// entitlement server.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract for the Entitlement Source (see the Client
//     interface): Ping, GetAggregateStatus, GetTabEntitlement, ListOffers and
//     Purchase.
//  2. A concrete gRPC implementation (see GRPCClient) that manages a
//     connection, injects the access token via an interceptor, and maps gRPC
//     status codes to sentinel errors.
//  3. Local persistence bootstrap utilities (InitDatabase, RunMigrations) that
//     open the SQLite database and apply the embedded goose migrations.
//
// # Error Handling
//
// Transport failures are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrNotFound, ErrInvalidArgument.
//
// Concurrency & Contexts
//
// GRPCClient is safe for concurrent use. All operations accept context.Context
// and honor cancellation and deadlines.
package client
