package hooks

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/fusionrt/fusion-runtime/execplane"
)

// Tracing starts one span per subgraph call, named "subgraph.execute". The
// teacher applies OpenTelemetry at the HTTP transport layer
// (otelhttp.NewTransport); this is the same concern expressed as a hook
// instead, which works uniformly across every transport kind, not only HTTP.
//
// A pre-hook is not handed the request's context.Context, so spans started
// here are root spans rather than children of the inbound request span;
// transport/httptransport's otelhttp-based tracing remains the way to get a
// single trace spanning the gateway and an HTTP subgraph call.
func Tracing(tracerName string) execplane.OnSubgraphExecuteHook {
	tracer := otel.Tracer(tracerName)

	return func(payload *execplane.HookPayload) (execplane.OnSubgraphExecuteDoneHook, error) {
		_, span := tracer.Start(context.Background(), "subgraph.execute",
			oteltrace.WithAttributes(
				attribute.String("subgraph.name", string(payload.SubgraphName)),
			))

		return func(done *execplane.DonePayload) (*execplane.StreamObservers, error) {
			defer span.End()
			if done.Err != nil {
				span.RecordError(done.Err)
				span.SetStatus(codes.Error, done.Err.Error())
				return nil, nil
			}
			if len(done.Result.Errors) > 0 {
				span.SetStatus(codes.Error, "subgraph returned graphql errors")
			}
			return nil, nil
		}, nil
	}
}
