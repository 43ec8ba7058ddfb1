package driver

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/hashicorp/go-msgpack/codec"
)

// CommandType tags a client->driver command ring record (spec.md §6
// "Command protocol").
type CommandType uint8

const (
	CmdAddPublication CommandType = iota
	CmdRemovePublication
	CmdAddSubscription
	CmdRemoveSubscription
	CmdClientKeepalive
	CmdAddDestination
)

// CommandHeader is the fixed prefix of every command record: length,
// type, and the client correlation id (spec.md §6: "request records
// start with a header (length, type, client correlation id)").
type CommandHeader struct {
	Length        int32
	Type          CommandType
	ClientID      int64
	CorrelationID int64
}

// AddPublicationPayload is the typed argument struct for CmdAddPublication.
type AddPublicationPayload struct {
	Channel        string
	StreamID       int32
	ExplicitSession bool
	SessionID      int32
}

// AddSubscriptionPayload is the typed argument struct for CmdAddSubscription.
type AddSubscriptionPayload struct {
	Channel  string
	StreamID int32
	Tether   bool
}

// RemoveResourcePayload is shared by CmdRemovePublication and
// CmdRemoveSubscription.
type RemoveResourcePayload struct {
	RegistrationID int64
}

// Command is a fully decoded, authenticated command ready for dispatch.
type Command struct {
	Header  CommandHeader
	Payload interface{}
}

var (
	ErrUnknownClient = errors.New("driver: command from unknown or dead client")
	ErrShortCommand  = errors.New("driver: command record shorter than its header")
)

var msgpackHandle = &codec.MsgpackHandle{}

// EncodeCommand serializes header+payload into a single ring-buffer
// record, msgpack-encoding header and payload independently and
// concatenating them (grounded on the teacher's net_transport.go, which
// frames one byte of RPC type followed by a msgpack-encoded request;
// this generalizes that two-part frame from a TCP RPC into a ring-buffer
// record, spec.md §6).
func EncodeCommand(header CommandHeader, payload interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, msgpackHandle)
	if err := enc.Encode(header); err != nil {
		return nil, fmt.Errorf("encode command header: %w", err)
	}
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("encode command payload: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeCommand decodes one ring-buffer record and authenticates its
// client before touching the payload at all (spec.md §12.4
// "auth-before-dispatch"). Every handler except the explicit keepalive
// lazily registers a client on its first command, mirroring
// DriverConductor's getOrAddClient (called from onAddIpcPublication,
// onAddSubscription, etc.); CmdClientKeepalive alone uses a plain lookup
// (findClient, no auto-add) and is rejected if the client was never seen.
func DecodeCommand(raw []byte, clients *ClientRegistry) (Command, error) {
	dec := codec.NewDecoder(bytes.NewReader(raw), msgpackHandle)

	var header CommandHeader
	if err := dec.Decode(&header); err != nil {
		return Command{}, fmt.Errorf("decode command header: %w", err)
	}

	clientID := ClientID(header.ClientID)
	if header.Type == CmdClientKeepalive {
		if _, ok := clients.Get(clientID); !ok || !clients.IsLive(clientID) {
			return Command{}, ErrUnknownClient
		}
	} else {
		clients.GetOrAdd(clientID)
	}
	clients.Touch(clientID)

	payload, err := decodePayload(header.Type, dec)
	if err != nil {
		return Command{}, err
	}
	return Command{Header: header, Payload: payload}, nil
}

func decodePayload(t CommandType, dec *codec.Decoder) (interface{}, error) {
	switch t {
	case CmdAddPublication:
		var p AddPublicationPayload
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode add-publication payload: %w", err)
		}
		return p, nil
	case CmdAddSubscription:
		var p AddSubscriptionPayload
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode add-subscription payload: %w", err)
		}
		return p, nil
	case CmdRemovePublication, CmdRemoveSubscription:
		var p RemoveResourcePayload
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode remove-resource payload: %w", err)
		}
		return p, nil
	case CmdClientKeepalive, CmdAddDestination:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown command type %d", t)
	}
}
