package protocol

// Error codes sent in ERROR messages.
const (
	ErrBadJSON         = "E_BAD_JSON"
	ErrBadType         = "E_BAD_TYPE"
	ErrVersionMismatch = "E_VERSION_MISMATCH"
	ErrNotSubscribed   = "E_NOT_SUBSCRIBED"
	ErrInternal        = "E_INTERNAL"
)

var knownCodes = map[string]bool{
	ErrBadJSON:         true,
	ErrBadType:         true,
	ErrVersionMismatch: true,
	ErrNotSubscribed:   true,
	ErrInternal:        true,
}

func KnownCode(code string) bool { return knownCodes[code] }
