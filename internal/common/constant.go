// Package common contains constants and sentinel errors shared by the
// DairyKeeper client and the entitlement server.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the access
// token on outbound requests.
const AccessTokenHeaderName = "access_token"
