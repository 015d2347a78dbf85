package backend

import (
	"context"
	"encoding/json"
	"time"
)

// QueryDataHandler handles data queries
type QueryDataHandler interface {
	QueryData(ctx context.Context, req *QueryDataRequest) (*QueryDataResponse, error)
}

// QueryDataHandlerFunc is an adapter to allow the use of ordinary functions as QueryDataHandler
type QueryDataHandlerFunc func(ctx context.Context, req *QueryDataRequest) (*QueryDataResponse, error)

// QueryData calls fn(ctx, req)
func (fn QueryDataHandlerFunc) QueryData(ctx context.Context, req *QueryDataRequest) (*QueryDataResponse, error) {
	return fn(ctx, req)
}

// QueryDataRequest contains one or more queries for a single plugin
type QueryDataRequest struct {
	PluginContext PluginContext     `json:"pluginContext"`
	Headers       map[string]string `json:"headers,omitempty"`
	Queries       []DataQuery       `json:"queries"`
}

// TimeRange is the requested time window of a query
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Duration returns the length of the time range
func (tr TimeRange) Duration() time.Duration {
	return tr.To.Sub(tr.From)
}

// DataQuery is a single query. JSON is the plugin-specific query model.
type DataQuery struct {
	RefID         string          `json:"refId"`
	QueryType     string          `json:"queryType,omitempty"`
	MaxDataPoints int64           `json:"maxDataPoints,omitempty"`
	Interval      time.Duration   `json:"interval,omitempty"`
	TimeRange     TimeRange       `json:"timeRange"`
	JSON          json.RawMessage `json:"json,omitempty"`
}

// Status is an HTTP-like status attached to a single data response
type Status int

// DataResponse holds the result of one query. Frames is the plugin's encoded frame data.
type DataResponse struct {
	Frames json.RawMessage `json:"frames,omitempty"`
	Error  error           `json:"-"`
	Status Status          `json:"status,omitempty"`
}

// MarshalJSON adds the error text, which encoding/json would otherwise drop
func (r DataResponse) MarshalJSON() ([]byte, error) {
	type alias DataResponse
	out := struct {
		alias
		Error string `json:"error,omitempty"`
	}{alias: alias(r)}
	if r.Error != nil {
		out.Error = r.Error.Error()
	}
	return json.Marshal(out)
}

// Responses maps a query RefID to its response
type Responses map[string]DataResponse

// QueryDataResponse aggregates one DataResponse per requested RefID
type QueryDataResponse struct {
	Responses Responses `json:"results"`
}

// NewQueryDataResponse returns a response with an initialized Responses map
func NewQueryDataResponse() *QueryDataResponse {
	return &QueryDataResponse{
		Responses: make(Responses),
	}
}

// ErrDataResponse builds a failed DataResponse with the given status and message
func ErrDataResponse(status Status, message string) DataResponse {
	return DataResponse{
		Error:  dataResponseError(message),
		Status: status,
	}
}

type dataResponseError string

func (e dataResponseError) Error() string { return string(e) }
