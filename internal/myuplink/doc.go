// Package myuplink is a minimal client for the myUplink cloud API used by
// NIBE heat pumps.
//
// Only the calls needed to keep a local attribute model in sync are
// implemented:
//
//	GET   /v2/devices/{id}/points?parameters=a,b,c   FetchDataPoints
//	PATCH /v2/devices/{id}/points                    WriteParameters
//	GET   /v2/devices/{id}                           DeviceInfo
//	GET   /v2/systems/me                             ListDevices
//
// Every failure wraps ErrTransport. A 404 additionally wraps ErrNotFound,
// which callers treat as a permanent absence rather than a retryable fault.
// Token acquisition is outside this package; a TokenSource supplies the
// bearer token for each request.
package myuplink
