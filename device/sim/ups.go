package sim

import (
	"fmt"
	"sync"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/andys/netcollector/device"
)

var upsStatuses = []string{
	"On Line, No Alarms Present",
	"On Line, No Alarms Present",
	"On Line, No Alarms Present",
	"On Battery",
	"On Line, Battery Communication Lost",
}

// UPS is a simulated apc.Terminal
type UPS struct {
	mu     sync.Mutex
	faker  *gofakeit.Faker
	closed bool
}

// NewUPS creates a simulated UPS console
func NewUPS(seed uint64) *UPS {
	return &UPS{faker: gofakeit.New(seed)}
}

// Status implements apc.Terminal
func (u *UPS) Status() (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return "", fmt.Errorf("%w: session closed", device.ErrProtocol)
	}
	return u.faker.RandomString(upsStatuses), nil
}

// Close implements apc.Terminal
func (u *UPS) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = true
	return nil
}
