package zbc

import (
	"fmt"

	"github.com/sixtyeight/zeebe/pkg/codec"
)

// Handler is the capability set both request variants implement. The
// controller is polymorphic over this interface; it never knows whether
// it is driving a command or a control message.
type Handler interface {
	// PickTarget chooses the endpoint this request should be sent to,
	// consulting top. It returns ok=false when the topology cannot yet
	// answer, which sends the controller to REFRESH.
	PickTarget(top Topology) (endpoint Endpoint, ok bool)
	// Serialize produces the complete wire frame for this request: the
	// body, compressed as the handler declares, behind the frame header.
	// Errors here are local exceptions.
	Serialize() ([]byte, error)
	// MatchesResponse, DecodeSuccess, and Compression satisfy
	// codec.ResponseMatcher.
	MatchesResponse(h codec.Header) bool
	DecodeSuccess(body []byte, blockLength, schemaVersion uint16) (interface{}, error)
	Compression() codec.Compression
	// Describe is used in the deadline-exhaustion failure narrative.
	Describe() string
}

// ReceiverAware is an optional capability a decoded success object may
// implement; when it does, the controller calls SetReceiver with the
// endpoint that produced the response before completing the sink.
type ReceiverAware interface {
	SetReceiver(endpoint Endpoint)
}

// ObjectMapper is the shared serializer CommandHandler uses to turn a
// Command's opaque payload into wire bytes. It is injected, never owned or
// initialized by a handler or the controller.
type ObjectMapper interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// Command is the opaque request body a CommandHandler wraps.
type Command struct {
	Key           PartitionKey
	Payload       interface{}
	RequestTpl    uint16 // template id this command's own frame carries
	SuccessTpl    uint16 // template id its response is expected to carry
	SchemaID      uint16
	Version       uint16
	CompressionFn codec.Compression
	// NewResult constructs the zero value to unmarshal a success body
	// into. It is called once per DecodeSuccess.
	NewResult func() interface{}
}

// CommandHandler targets a specific (topic, partition) resolved through the
// topology and serializes its command through the shared ObjectMapper.
type CommandHandler struct {
	Command Command
	Mapper  ObjectMapper
}

func (h *CommandHandler) PickTarget(top Topology) (Endpoint, bool) {
	return top.Pick(h.Command.Key)
}

func (h *CommandHandler) Serialize() ([]byte, error) {
	body, err := h.Mapper.Marshal(h.Command.Payload)
	if err != nil {
		return nil, err
	}
	return codec.EncodeRequest(h.Command.RequestTpl, h.Command.SchemaID, h.Command.Version, body, h.Command.CompressionFn)
}

func (h *CommandHandler) MatchesResponse(hdr codec.Header) bool {
	return hdr.TemplateID == h.Command.SuccessTpl
}

func (h *CommandHandler) DecodeSuccess(body []byte, blockLength, schemaVersion uint16) (interface{}, error) {
	result := h.Command.NewResult()
	if err := h.Mapper.Unmarshal(body, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (h *CommandHandler) Compression() codec.Compression { return h.Command.CompressionFn }

func (h *CommandHandler) Describe() string {
	return fmt.Sprintf("command(topic=%s partition=%d)", h.Command.Key.Topic, h.Command.Key.Partition)
}

// ControlMessageRouting selects how a ControlMessageHandler picks its
// target endpoint when it is not bound to a specific partition.
type ControlMessageRouting int8

const (
	RouteToLeader ControlMessageRouting = iota
	RouteToNode
	RouteRandom
)

// ControlMessage is the opaque request body a ControlMessageHandler wraps.
type ControlMessage struct {
	Routing       ControlMessageRouting
	Node          int32        // used when Routing == RouteToNode
	Key           PartitionKey // used when Routing == RouteToLeader
	Payload       []byte       // pre-serialized; control messages carry raw bytes, no shared mapper
	RequestTpl    uint16
	SuccessTpl    uint16
	SchemaID      uint16
	Version       uint16
	CompressionFn codec.Compression
	NewResult     func() interface{}
	Unmarshal     func(body []byte, v interface{}) error
	Kind          string
}

// ControlMessageHandler wraps a typed control message; it may target the
// broker leader, a specific node, or a random endpoint depending on
// message kind.
type ControlMessageHandler struct {
	Message ControlMessage
}

func (h *ControlMessageHandler) PickTarget(top Topology) (Endpoint, bool) {
	switch h.Message.Routing {
	case RouteToLeader:
		return top.Pick(h.Message.Key)
	case RouteToNode:
		return top.PickNode(h.Message.Node)
	case RouteRandom:
		return top.PickRandom()
	default:
		return Endpoint{}, false
	}
}

func (h *ControlMessageHandler) Serialize() ([]byte, error) {
	return codec.EncodeRequest(h.Message.RequestTpl, h.Message.SchemaID, h.Message.Version, h.Message.Payload, h.Message.CompressionFn)
}

func (h *ControlMessageHandler) MatchesResponse(hdr codec.Header) bool {
	return hdr.TemplateID == h.Message.SuccessTpl
}

func (h *ControlMessageHandler) DecodeSuccess(body []byte, blockLength, schemaVersion uint16) (interface{}, error) {
	result := h.Message.NewResult()
	if err := h.Message.Unmarshal(body, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (h *ControlMessageHandler) Compression() codec.Compression { return h.Message.CompressionFn }

func (h *ControlMessageHandler) Describe() string {
	return fmt.Sprintf("control-message(kind=%s routing=%d)", h.Message.Kind, h.Message.Routing)
}
