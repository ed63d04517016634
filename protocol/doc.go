// Package protocol defines the wire protocol spoken between browser clients
// and the relay.
//
// Every frame is an envelope carrying an event name and a payload:
//
//	{"event": "playerMovement", "data": {"position": {"x": 1, "y": 0, "z": 2}, "rotation": {"y": 0.5}}}
//
// Client events form a closed set (Movement, Shoot, PowerUpCollected,
// PlayerDamaged). DecodeEvent turns a raw payload into one of these types
// and rejects unknown event names with ErrUnknownEvent. Each event validates
// its own required fields and reports ErrMalformedPayload when they are
// missing or not finite.
//
// Two codecs are available. JSON uses text frames and is the default.
// MessagePack uses binary frames with the same field names and is selected
// by clients with ?encoding=msgpack.
package protocol
