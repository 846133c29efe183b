package routeros

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/andys/netcollector/device"
	"github.com/andys/netcollector/flow"
	"github.com/andys/netcollector/worker"
)

// Source is the worker name owning the router flows
const Source = "router"

// Flow names served by the router poller
const (
	FlowDHCPLeases     = "dhcp_server_leases"
	FlowLANTraffic     = "lan_traffic_usage"
	FlowInterfaceUsage = "interface_usage"
)

const defaultLeaseColor = "#44dddd"

// Traffic classes
const (
	TrafficLocal    = "local"
	TrafficUpload   = "upload"
	TrafficDownload = "download"
	TrafficWAN      = "wan"
)

var (
	// DefaultLAN is the range treated as local when none is configured
	DefaultLAN = netip.MustParsePrefix("192.168.0.0/16")

	// DefaultInterfaces are monitored when none are configured
	DefaultInterfaces = []string{"ether1-gateway", "ether2-master-local"}
)

// Options tunes the router extraction routines
type Options struct {
	LAN        netip.Prefix
	Interfaces []string
}

// Extractors returns the router routines keyed by flow name. It must be
// called once per process: the traffic routine keeps its first-run state
// across reconnects.
func Extractors(opts Options) map[string]worker.Extractor[API] {
	if !opts.LAN.IsValid() {
		opts.LAN = DefaultLAN
	}
	if len(opts.Interfaces) == 0 {
		opts.Interfaces = DefaultInterfaces
	}
	traffic := NewTrafficAccounting(opts.LAN)
	return map[string]worker.Extractor[API]{
		FlowDHCPLeases:     {Width: 6, Extract: DHCPLeases},
		FlowLANTraffic:     {Width: 7, Extract: traffic.Extract},
		FlowInterfaceUsage: {Width: 9, Extract: InterfaceUsage(opts.Interfaces)},
	}
}

// ParseLeaseComment splits a lease comment of the form "name;;color". A
// comment without the separator is taken as the name with the default color.
func ParseLeaseComment(comment string) (name, color string) {
	parts := strings.Split(comment, ";;")
	if len(parts) < 2 {
		return comment, defaultLeaseColor
	}
	name, color = parts[0], parts[1]
	if !strings.HasPrefix(color, "#") {
		color = "#" + color
	}
	return name, color
}

// DHCPLeases reads the DHCP server lease table. Rows are
// (mac, address, host name, name, color, active).
func DHCPLeases(_ context.Context, api API, _ flow.Definition) ([]flow.Row, error) {
	leases, err := api.Run("/ip/dhcp-server/lease/print")
	if err != nil {
		return nil, err
	}

	rows := make([]flow.Row, 0, len(leases))
	for _, lease := range leases {
		name, color := ParseLeaseComment(lease["comment"])
		hostName := lease["host-name"]
		if hostName == "" {
			hostName = "unknown"
		}
		active := 0
		if lease["status"] == "bound" {
			active = 1
		}
		rows = append(rows, flow.Row{
			lease["mac-address"],
			lease["address"],
			hostName,
			name,
			color,
			active,
		})
	}
	return rows, nil
}

// Classify names the direction of a flow between src and dst relative to the
// LAN and returns the address on the LAN side. Addresses that do not parse are
// treated as outside the LAN.
func Classify(lan netip.Prefix, src, dst string) (class, localIP string) {
	srcIn := inPrefix(lan, src)
	dstIn := inPrefix(lan, dst)
	switch {
	case srcIn && dstIn:
		return TrafficLocal, src
	case srcIn:
		return TrafficUpload, src
	case dstIn:
		return TrafficDownload, dst
	default:
		return TrafficWAN, ""
	}
}

func inPrefix(lan netip.Prefix, s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return lan.Contains(addr.Unmap())
}

// TrafficAccounting reads IP accounting snapshots. Taking a snapshot resets
// the router's counters, so the first one after start covers everything since
// boot and is thrown away.
type TrafficAccounting struct {
	lan      netip.Prefix
	firstRun bool
}

// NewTrafficAccounting creates the routine for the given LAN range
func NewTrafficAccounting(lan netip.Prefix) *TrafficAccounting {
	return &TrafficAccounting{lan: lan, firstRun: true}
}

// Extract takes and reads a snapshot. Rows are
// (run interval, class, src, dst, local ip, bytes, packets).
func (t *TrafficAccounting) Extract(_ context.Context, api API, def flow.Definition) ([]flow.Row, error) {
	if _, err := api.Run("/ip/accounting/snapshot/take"); err != nil {
		return nil, err
	}
	entries, err := api.Run("/ip/accounting/snapshot/print")
	if err != nil {
		return nil, err
	}

	interval := def.PollInterval.Seconds()
	rows := make([]flow.Row, 0, len(entries))
	for _, e := range entries {
		src := strings.TrimSpace(e["src-address"])
		dst := strings.TrimSpace(e["dst-address"])
		bytes, err := parseCounter(e, "bytes")
		if err != nil {
			return nil, err
		}
		packets, err := parseCounter(e, "packets")
		if err != nil {
			return nil, err
		}
		class, local := Classify(t.lan, src, dst)
		rows = append(rows, flow.Row{interval, class, src, dst, local, bytes, packets})
	}

	if t.firstRun {
		t.firstRun = false
		return nil, nil
	}
	return rows, nil
}

// InterfaceUsage returns a routine sampling the traffic rates of the named
// interfaces. Rows are (name, rx/tx bits, rx/tx packets, rx/tx drops,
// rx/tx errors), all per second.
func InterfaceUsage(interfaces []string) func(context.Context, API, flow.Definition) ([]flow.Row, error) {
	arg := "=interface=" + strings.Join(interfaces, ",")
	return func(_ context.Context, api API, _ flow.Definition) ([]flow.Row, error) {
		samples, err := api.Run("/interface/monitor-traffic", arg, "=once=")
		if err != nil {
			return nil, err
		}

		rows := make([]flow.Row, 0, len(samples))
		for _, s := range samples {
			row := flow.Row{s["name"]}
			for _, key := range rateKeys {
				v, err := parseCounter(s, key)
				if err != nil {
					return nil, err
				}
				row = append(row, v)
			}
			rows = append(rows, row)
		}
		return rows, nil
	}
}

var rateKeys = []string{
	"rx-bits-per-second",
	"tx-bits-per-second",
	"rx-packets-per-second",
	"tx-packets-per-second",
	"rx-drops-per-second",
	"tx-drops-per-second",
	"rx-errors-per-second",
	"tx-errors-per-second",
}

func parseCounter(attrs map[string]string, key string) (int64, error) {
	raw := strings.TrimSpace(attrs[key])
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", device.ErrProtocol, key, raw)
	}
	return v, nil
}
