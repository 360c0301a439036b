package pluginhost

import (
	"context"
	"fmt"
	"net/rpc"
	"sync"

	goplugin "github.com/hashicorp/go-plugin"

	"github.com/fusionrt/fusion-runtime/execplane"
	"github.com/fusionrt/fusion-runtime/transport"
)

// executorPlugin is the net/rpc goplugin.Plugin implementation shared by
// host and plugin binary. A transport-<kind> binary's main package wires
// its ModuleShape into this via Serve.
type executorPlugin struct {
	Impl transport.ModuleShape
}

func (p *executorPlugin) Server(*goplugin.MuxBroker) (any, error) {
	return &rpcServer{impl: p.Impl, executors: make(map[string]execplane.Executor)}, nil
}

func (p *executorPlugin) Client(b *goplugin.MuxBroker, c *rpc.Client) (any, error) {
	return &rpcClient{client: c}, nil
}

// rpcSubgraphArgs is the serializable projection of execplane.SubgraphExecCtx
// that crosses the process boundary: closures (GetSubgraph, ResolveFactory)
// don't survive RPC, so only the subgraph name and resolved transport entry
// travel across.
type rpcSubgraphArgs struct {
	SubgraphName     string
	TransportKind    string
	TransportOptions map[string]any
}

type rpcAck struct{ OK bool }

// rpcExecRequest is the serializable projection of execplane.ExecutionRequest.
type rpcExecRequest struct {
	SubgraphName  string
	Document      string
	Variables     map[string]any
	OperationName string
}

type rpcExecResult struct {
	Data   map[string]any
	Errors []string
}

// Serve is called from a transport-<kind> binary's main package; it blocks
// forever, serving impl over the net/rpc protocol until the host kills it.
func Serve(impl transport.ModuleShape) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: goplugin.PluginSet{
			PluginName: &executorPlugin{Impl: impl},
		},
	})
}

// rpcClient implements transport.ModuleShape on the host side, forwarding
// every call to the plugin subprocess.
type rpcClient struct{ client *rpc.Client }

func (r *rpcClient) GetSubgraphExecutor(ctx execplane.SubgraphExecCtx) (execplane.Executor, error) {
	entry := ctx.GetTransportEntry()
	args := &rpcSubgraphArgs{
		SubgraphName:     string(ctx.SubgraphName),
		TransportKind:    entry.Kind,
		TransportOptions: entry.Options,
	}

	var ack rpcAck
	if err := r.client.Call("Plugin.GetSubgraphExecutor", args, &ack); err != nil {
		return nil, fmt.Errorf("pluginhost: GetSubgraphExecutor RPC failed: %w", err)
	}
	if !ack.OK {
		return nil, &transport.ErrMisshapen{Kind: entry.Kind, Reason: "plugin declined subgraph"}
	}

	name := string(ctx.SubgraphName)
	return func(_ context.Context, req *execplane.ExecutionRequest) (any, error) {
		execArgs := &rpcExecRequest{
			SubgraphName:  name,
			Document:      req.Document,
			Variables:     req.Variables,
			OperationName: req.OperationName,
		}

		var result rpcExecResult
		if err := r.client.Call("Plugin.Execute", execArgs, &result); err != nil {
			return nil, fmt.Errorf("pluginhost: Execute RPC failed: %w", err)
		}

		errs := make([]error, 0, len(result.Errors))
		for _, msg := range result.Errors {
			errs = append(errs, fmt.Errorf("%s", msg))
		}
		return &execplane.ExecutionResult{Data: result.Data, Errors: errs}, nil
	}, nil
}

// rpcServer runs inside the transport-<kind> binary, dispatching RPC calls
// to the real ModuleShape implementation.
type rpcServer struct {
	impl transport.ModuleShape

	mu        sync.Mutex
	executors map[string]execplane.Executor
}

func (s *rpcServer) GetSubgraphExecutor(args *rpcSubgraphArgs, ack *rpcAck) error {
	execCtx := execplane.SubgraphExecCtx{
		SubgraphName: execplane.SubgraphName(args.SubgraphName),
		GetSubgraph:  func() any { return nil },
		GetTransportEntry: func() execplane.TransportEntry {
			return execplane.TransportEntry{Kind: args.TransportKind, Options: args.TransportOptions}
		},
		ResolveFactory: func(string) (execplane.Factory, error) {
			return nil, fmt.Errorf("pluginhost: nested transport resolution is not available inside a plugin process")
		},
		TransportContext: &execplane.TransportContext{},
	}

	exec, err := s.impl.GetSubgraphExecutor(execCtx)
	if err != nil {
		ack.OK = false
		return err
	}

	s.mu.Lock()
	s.executors[args.SubgraphName] = exec
	s.mu.Unlock()

	ack.OK = true
	return nil
}

func (s *rpcServer) Execute(args *rpcExecRequest, result *rpcExecResult) error {
	s.mu.Lock()
	exec, ok := s.executors[args.SubgraphName]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("pluginhost: no executor built for subgraph %q", args.SubgraphName)
	}

	req := &execplane.ExecutionRequest{
		Document:      args.Document,
		Variables:     args.Variables,
		OperationName: args.OperationName,
	}

	res, err := exec(context.Background(), req)
	if err != nil {
		return err
	}

	er, ok := res.(*execplane.ExecutionResult)
	if !ok {
		return fmt.Errorf("pluginhost: plugin executor returned a non-*ExecutionResult value; streaming subgraphs are not supported across a plugin boundary")
	}

	result.Data = er.Data
	result.Errors = make([]string, 0, len(er.Errors))
	for _, e := range er.Errors {
		result.Errors = append(result.Errors, e.Error())
	}
	return nil
}
