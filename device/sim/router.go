// Package sim fakes the polled devices so the collector can run without
// hardware.
package sim

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/andys/netcollector/device"
)

type host struct {
	mac     string
	address string
	name    string
	comment string
}

// Router answers the RouterOS commands the collector issues with generated
// data. Hosts are fixed for the life of the Router so that lease rows upsert
// onto the same keys.
type Router struct {
	mu     sync.Mutex
	faker  *gofakeit.Faker
	hosts  []host
	closed bool
}

// NewRouter creates a simulated router with the given number of LAN hosts
func NewRouter(seed uint64, hosts int) *Router {
	f := gofakeit.New(seed)
	r := &Router{faker: f}
	for i := 0; i < hosts; i++ {
		h := host{
			mac:     f.MacAddress(),
			address: fmt.Sprintf("192.168.88.%d", 10+i),
			name:    f.Username(),
		}
		if f.Bool() {
			h.comment = f.FirstName() + ";;" + strings.TrimPrefix(f.HexColor(), "#")
		} else {
			h.comment = f.FirstName()
		}
		r.hosts = append(r.hosts, h)
	}
	return r
}

// Run implements routeros.API
func (r *Router) Run(sentence ...string) ([]map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("%w: session closed", device.ErrProtocol)
	}
	if len(sentence) == 0 {
		return nil, fmt.Errorf("%w: empty sentence", device.ErrProtocol)
	}

	switch sentence[0] {
	case "/ip/dhcp-server/lease/print":
		return r.leases(), nil
	case "/ip/accounting/snapshot/take":
		return nil, nil
	case "/ip/accounting/snapshot/print":
		return r.snapshot(), nil
	case "/interface/monitor-traffic":
		return r.monitor(sentence[1:]), nil
	default:
		return nil, fmt.Errorf("%w: no such command %s", device.ErrProtocol, sentence[0])
	}
}

func (r *Router) leases() []map[string]string {
	out := make([]map[string]string, 0, len(r.hosts))
	for _, h := range r.hosts {
		status := "bound"
		if r.faker.Number(0, 9) == 0 {
			status = "waiting"
		}
		out = append(out, map[string]string{
			"mac-address": h.mac,
			"address":     h.address,
			"host-name":   h.name,
			"comment":     h.comment,
			"status":      status,
		})
	}
	return out
}

func (r *Router) snapshot() []map[string]string {
	if len(r.hosts) == 0 {
		return nil
	}
	n := r.faker.Number(1, 2*len(r.hosts))
	out := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		local := r.hosts[r.faker.Number(0, len(r.hosts)-1)].address
		remote := r.faker.IPv4Address()
		src, dst := local, remote
		if r.faker.Bool() {
			src, dst = remote, local
		}
		out = append(out, map[string]string{
			"src-address": src,
			"dst-address": dst,
			"bytes":       strconv.Itoa(r.faker.Number(64, 5_000_000)),
			"packets":     strconv.Itoa(r.faker.Number(1, 4000)),
		})
	}
	return out
}

func (r *Router) monitor(args []string) []map[string]string {
	var names []string
	for _, a := range args {
		if v, ok := strings.CutPrefix(a, "=interface="); ok {
			names = strings.Split(v, ",")
		}
	}
	out := make([]map[string]string, 0, len(names))
	for _, name := range names {
		sample := map[string]string{"name": name}
		for _, dir := range []string{"rx", "tx"} {
			sample[dir+"-bits-per-second"] = strconv.Itoa(r.faker.Number(0, 100_000_000))
			sample[dir+"-packets-per-second"] = strconv.Itoa(r.faker.Number(0, 10_000))
			sample[dir+"-drops-per-second"] = strconv.Itoa(r.faker.Number(0, 2))
			sample[dir+"-errors-per-second"] = "0"
		}
		out = append(out, sample)
	}
	return out
}

// Close implements routeros.API
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
