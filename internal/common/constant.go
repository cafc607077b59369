package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// MillisPerHour is used by the epoch-ms bookkeeping of shares and schedules.
const MillisPerHour int64 = 60 * 60 * 1000
