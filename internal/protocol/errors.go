package protocol

import "errors"

// ErrProtocolDesync is the sentinel wrapped by any framing/opcode/
// sequence mismatch (spec §7). BoardDriver returns it to its caller;
// it does not flush the transport, re-probe with GetId, or count
// consecutive desyncs.
var ErrProtocolDesync = errors.New("protocol desync")
