// Package httptransport is the reference transport: a GraphQL-over-HTTP
// executor factory for transport.Registry. It is what a gateway configures
// most subgraphs with, adapted from the teacher's own executor.doRequest and
// gateway.NewGateway subgraph HTTP client wiring.
package httptransport

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fusionrt/fusion-runtime/execplane"
)

// RetryOption configures how many times and with what per-attempt timeout a
// subgraph call is retried on transport failure.
type RetryOption struct {
	Attempts int           `yaml:"attempts" default:"1"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Options is the per-subgraph transport configuration, carried in
// execplane.TransportEntry.Options.
type Options struct {
	Endpoint                    string
	Retry                       RetryOption
	EnableOpentelemetryTracing  bool
	EnableHangOverRequestHeader bool
}

// optionsFrom decodes the loosely-typed TransportEntry.Options map a host
// configures into Options. Unset keys keep their zero value.
func optionsFrom(raw map[string]any) (Options, error) {
	var opts Options
	endpoint, ok := raw["endpoint"].(string)
	if !ok || endpoint == "" {
		return Options{}, fmt.Errorf("httptransport: TransportEntry.Options missing required \"endpoint\" string")
	}
	opts.Endpoint = endpoint

	if attempts, ok := raw["retry_attempts"].(int); ok {
		opts.Retry.Attempts = attempts
	}
	if timeout, ok := raw["retry_timeout"].(time.Duration); ok {
		opts.Retry.Timeout = timeout
	}
	if v, ok := raw["enable_opentelemetry_tracing"].(bool); ok {
		opts.EnableOpentelemetryTracing = v
	}
	if v, ok := raw["enable_hang_over_request_header"].(bool); ok {
		opts.EnableHangOverRequestHeader = v
	}

	return opts, nil
}

// New returns a transport.ModuleShape-compatible factory: call its
// GetSubgraphExecutor directly, or register it on a transport.Registry with
// Register("http", New()).
func New() *Module { return &Module{} }

// Module implements transport.ModuleShape for GraphQL-over-HTTP subgraphs.
type Module struct{}

// GetSubgraphExecutor builds an execplane.Executor bound to the subgraph
// named by ctx, reading its endpoint and retry policy from
// ctx.GetTransportEntry().Options.
func (m *Module) GetSubgraphExecutor(ctx execplane.SubgraphExecCtx) (execplane.Executor, error) {
	opts, err := optionsFrom(ctx.GetTransportEntry().Options)
	if err != nil {
		return nil, err
	}

	client := &http.Client{}
	if opts.EnableOpentelemetryTracing {
		client.Transport = otelhttp.NewTransport(http.DefaultTransport)
	}

	attempts := opts.Retry.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	return func(execCtx context.Context, req *execplane.ExecutionRequest) (any, error) {
		var lastErr error
		for i := 0; i < attempts; i++ {
			result, err := doExecute(execCtx, client, opts, req)
			if err == nil {
				return result, nil
			}
			lastErr = err
		}
		return nil, fmt.Errorf("httptransport: subgraph %q: %w", ctx.SubgraphName, lastErr)
	}, nil
}

func doExecute(ctx context.Context, client *http.Client, opts Options, req *execplane.ExecutionRequest) (*execplane.ExecutionResult, error) {
	reqCtx := ctx
	cancel := func() {}
	if opts.Retry.Timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, opts.Retry.Timeout)
	}
	defer cancel()

	body := map[string]any{
		"query":     req.Document,
		"variables": req.Variables,
	}
	if req.OperationName != "" {
		body["operationName"] = req.OperationName
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding subgraph request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, opts.Endpoint, bytes.NewBuffer(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if opts.EnableHangOverRequestHeader {
		if header := execplane.GetRequestHeaderFromContext(ctx); header != nil {
			for k, values := range header {
				for _, v := range values {
					httpReq.Header.Add(k, v)
				}
			}
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from subgraph endpoint %s", resp.StatusCode, opts.Endpoint)
	}

	var envelope struct {
		Data   map[string]any `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding subgraph response: %w", err)
	}

	result := &execplane.ExecutionResult{Data: envelope.Data}
	for _, e := range envelope.Errors {
		result.Errors = append(result.Errors, fmt.Errorf("%s", e.Message))
	}
	return result, nil
}
