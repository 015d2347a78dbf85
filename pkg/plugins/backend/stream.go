package backend

import (
	"context"
	"encoding/json"
	"errors"
)

// StreamHandler handles streams. Subscribe negotiates whether a channel path is
// streamed, Publish accepts data for a path and Run pushes data until ctx is done.
type StreamHandler interface {
	SubscribeStream(ctx context.Context, req *SubscribeStreamRequest) (*SubscribeStreamResponse, error)
	PublishStream(ctx context.Context, req *PublishStreamRequest) (*PublishStreamResponse, error)
	RunStream(ctx context.Context, req *RunStreamRequest, sender *StreamSender) error
}

// SubscribeStreamStatus is the outcome of a subscribe negotiation
type SubscribeStreamStatus int

const (
	SubscribeStreamStatusOK SubscribeStreamStatus = iota
	SubscribeStreamStatusNotFound
	SubscribeStreamStatusPermissionDenied
)

// PublishStreamStatus is the outcome of a publish call
type PublishStreamStatus int

const (
	PublishStreamStatusOK PublishStreamStatus = iota
	PublishStreamStatusNotFound
	PublishStreamStatusPermissionDenied
)

// SubscribeStreamRequest asks whether Path may be streamed
type SubscribeStreamRequest struct {
	PluginContext PluginContext   `json:"pluginContext"`
	Path          string          `json:"path"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// InitialData is sent to a subscriber before any streamed packet
type InitialData struct {
	data []byte
}

// Data returns the raw initial payload
func (d *InitialData) Data() []byte {
	return d.data
}

// NewInitialData wraps an already-encoded JSON payload
func NewInitialData(data json.RawMessage) (*InitialData, error) {
	if !json.Valid(data) {
		return nil, errors.New("invalid JSON in initial data")
	}
	return &InitialData{data: data}, nil
}

// SubscribeStreamResponse is the answer to a subscribe negotiation
type SubscribeStreamResponse struct {
	Status      SubscribeStreamStatus `json:"status"`
	InitialData *InitialData          `json:"-"`
}

// PublishStreamRequest carries one data point for Path
type PublishStreamRequest struct {
	PluginContext PluginContext   `json:"pluginContext"`
	Path          string          `json:"path"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// PublishStreamResponse is the answer to a publish call
type PublishStreamResponse struct {
	Status PublishStreamStatus `json:"status"`
	Data   json.RawMessage     `json:"data,omitempty"`
}

// RunStreamRequest starts a long-lived stream for Path
type RunStreamRequest struct {
	PluginContext PluginContext   `json:"pluginContext"`
	Path          string          `json:"path"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// StreamPacket is a single unit pushed to stream subscribers
type StreamPacket struct {
	Data json.RawMessage `json:"data"`
}

// StreamPacketSender delivers packets to the host side of a stream
type StreamPacketSender interface {
	Send(*StreamPacket) error
}

// StreamPacketSenderFunc is an adapter to allow the use of ordinary functions as StreamPacketSender
type StreamPacketSenderFunc func(*StreamPacket) error

// Send calls fn(p)
func (fn StreamPacketSenderFunc) Send(p *StreamPacket) error {
	return fn(p)
}

// StreamSender allows a RunStream implementation to push data
type StreamSender struct {
	packetSender StreamPacketSender
}

// NewStreamSender creates a StreamSender backed by packetSender
func NewStreamSender(packetSender StreamPacketSender) *StreamSender {
	return &StreamSender{packetSender: packetSender}
}

// SendJSON sends an already-encoded JSON document
func (s *StreamSender) SendJSON(data []byte) error {
	if !json.Valid(data) {
		return errors.New("invalid JSON in stream packet")
	}
	return s.packetSender.Send(&StreamPacket{Data: data})
}

// SendValue encodes v as JSON and sends it
func (s *StreamSender) SendValue(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.packetSender.Send(&StreamPacket{Data: data})
}
