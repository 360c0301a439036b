// Package pluginhost discovers transport modules packaged as separate
// executables, named by convention "transport-<kind>" — the Go analogue of
// a dynamic module import: Go has no runtime import(), so "discover a
// module by name" becomes "discover and launch a conventionally-named
// binary", the same convention OpenTofu uses for "terraform-provider-<name>".
package pluginhost

import (
	"errors"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"

	"github.com/fusionrt/fusion-runtime/transport"
)

// Handshake is shared between host and plugin binary; the magic cookie
// guards against accidentally executing an unrelated program named
// transport-<kind> found earlier on $PATH.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "FUSION_TRANSPORT_PLUGIN",
	MagicCookieValue: "a3f6d9c9-5e3b-4e68-9d58-6a9b0f9e4f3a",
}

// PluginName is the single dispensed plugin name every transport-<kind>
// binary must register under.
const PluginName = "transport"

// Host discovers and launches transport-<kind> binaries. Dirs lists the
// directories searched, in order, before falling back to $PATH; an empty
// Dirs searches $PATH only.
type Host struct {
	Dirs   []string
	Logger hclog.Logger

	clients map[string]*goplugin.Client
}

// NewHost returns a Host that searches dirs (in order) then $PATH for
// transport-<kind> binaries.
func NewHost(dirs []string, logger hclog.Logger) *Host {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Host{Dirs: dirs, Logger: logger, clients: make(map[string]*goplugin.Client)}
}

// Discover implements transport.Discoverer.
func (h *Host) Discover(kind string) (transport.ModuleShape, error) {
	binName := "transport-" + kind

	path, err := h.lookPath(binName)
	if err != nil {
		return nil, err
	}

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins: goplugin.PluginSet{
			PluginName: &executorPlugin{},
		},
		Cmd:              exec.Command(path),
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolNetRPC},
		Logger:           h.Logger,
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, err
	}

	raw, err := rpcClient.Dispense(PluginName)
	if err != nil {
		client.Kill()
		return nil, err
	}

	module, ok := raw.(transport.ModuleShape)
	if !ok {
		client.Kill()
		return nil, &transport.ErrMisshapen{Kind: kind, Reason: "dispensed plugin does not implement ModuleShape"}
	}

	h.clients[kind] = client
	return module, nil
}

// Close terminates every plugin subprocess launched so far.
func (h *Host) Close() {
	for _, c := range h.clients {
		c.Kill()
	}
}

func (h *Host) lookPath(binName string) (string, error) {
	for _, dir := range h.Dirs {
		if path, err := exec.LookPath(dir + "/" + binName); err == nil {
			return path, nil
		}
	}
	if path, err := exec.LookPath(binName); err == nil {
		return path, nil
	}
	return "", errors.New("pluginhost: no " + binName + " executable found")
}
