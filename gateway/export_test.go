package gateway

import (
	"context"
	"log/slog"

	"github.com/fusionrt/fusion-runtime/execplane"
)

// BuildEngineForTest exposes buildEngine to black-box tests, wiring a
// default http-only transport runtime from hosts so callers don't need to
// construct an execplane.Runtime themselves.
func BuildEngineForTest(sdls map[string]string, hosts map[string]string) (*executionEngine, error) {
	entries := make(map[string]GatewayService, len(hosts))
	services := make([]GatewayService, 0, len(hosts))
	for name, host := range hosts {
		svc := GatewayService{Name: name, Host: host, Kind: "http"}
		entries[name] = svc
		services = append(services, svc)
	}

	registry := buildTransportRegistry(nil)
	runtime := execplane.NewRuntime(execplane.Config{
		Transports:        registry,
		TransportEntryMap: transportEntriesFor(services, GatewayOption{}),
	})

	return buildEngine(context.Background(), sdls, entries, runtime, slog.Default())
}

// CopyMapForTest exposes copyMap to black-box tests.
func CopyMapForTest(m map[string]string) map[string]string {
	return copyMap(m)
}
