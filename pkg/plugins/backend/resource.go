package backend

import (
	"context"
	"net/http"
)

// CallResourceHandler handles resource calls
type CallResourceHandler interface {
	CallResource(ctx context.Context, req *CallResourceRequest, sender CallResourceResponseSender) error
}

// CallResourceHandlerFunc is an adapter to allow the use of ordinary functions as CallResourceHandler
type CallResourceHandlerFunc func(ctx context.Context, req *CallResourceRequest, sender CallResourceResponseSender) error

// CallResource calls fn(ctx, req, sender)
func (fn CallResourceHandlerFunc) CallResource(ctx context.Context, req *CallResourceRequest, sender CallResourceResponseSender) error {
	return fn(ctx, req, sender)
}

// CallResourceRequest represents a resource-style call: method, path, headers and body
type CallResourceRequest struct {
	PluginContext PluginContext       `json:"pluginContext"`
	Path          string              `json:"path"`
	Method        string              `json:"method"`
	URL           string              `json:"url"`
	Headers       map[string][]string `json:"headers,omitempty"`
	Body          []byte              `json:"body,omitempty"`
}

// CallResourceResponse is one chunk of a resource call response. Status and Headers
// are only meaningful on the first chunk.
type CallResourceResponse struct {
	Status  int                 `json:"status"`
	Headers map[string][]string `json:"headers,omitempty"`
	Body    []byte              `json:"body,omitempty"`
}

// CallResourceResponseSender receives response chunks. Send is called sequentially,
// never concurrently. A Send error means the receiver is gone and the call should abort.
type CallResourceResponseSender interface {
	Send(resp *CallResourceResponse) error
}

// CallResourceResponseSenderFunc is an adapter to allow the use of ordinary functions as CallResourceResponseSender
type CallResourceResponseSenderFunc func(resp *CallResourceResponse) error

// Send calls fn(resp)
func (fn CallResourceResponseSenderFunc) Send(resp *CallResourceResponse) error {
	return fn(resp)
}

// SendPlainText sends a single text/plain chunk
func SendPlainText(sender CallResourceResponseSender, status int, body []byte) error {
	return sender.Send(&CallResourceResponse{
		Status: status,
		Headers: map[string][]string{
			"Content-Type": {"text/plain"},
		},
		Body: body,
	})
}

// SendStatus sends a body-less chunk carrying only a status code
func SendStatus(sender CallResourceResponseSender, status int) error {
	return sender.Send(&CallResourceResponse{
		Status: status,
		Body:   []byte(http.StatusText(status)),
	})
}
