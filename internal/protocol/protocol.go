// Package protocol defines the observer wire format. Messages are JSON
// objects; every one carries a "type" field. The server only accepts
// SUBSCRIBE and answers with WELCOME, then streams STATE snapshots.
package protocol

const Version = "1.0"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeWelcome   = "WELCOME"
	TypeState     = "STATE"
	TypeError     = "ERROR"
)
