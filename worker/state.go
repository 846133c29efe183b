package worker

import (
	"context"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// Connection states shared by pollers and the persister
const (
	StateDisconnected = "disconnected"
	StateConnected    = "connected"
	StateStopping     = "stopping"
	StateStopped      = "stopped"
)

const (
	eventConnect = "connect"
	eventDrop    = "drop"
	eventStop    = "stop"
	eventStopped = "stopped"
)

func newConnectionFSM(log *zap.SugaredLogger) *fsm.FSM {
	return fsm.NewFSM(
		StateDisconnected,
		fsm.Events{
			{Name: eventConnect, Src: []string{StateDisconnected}, Dst: StateConnected},
			{Name: eventDrop, Src: []string{StateConnected}, Dst: StateDisconnected},
			{Name: eventStop, Src: []string{StateDisconnected, StateConnected}, Dst: StateStopping},
			{Name: eventStopped, Src: []string{StateStopping}, Dst: StateStopped},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debugw("State changed", "from", e.Src, "to", e.Dst)
			},
		},
	)
}

// fire sends an event. Transitions must happen during shutdown too, so the
// cancellation of ctx is not passed on.
func fire(ctx context.Context, machine *fsm.FSM, event string, log *zap.SugaredLogger) {
	if err := machine.Event(context.WithoutCancel(ctx), event); err != nil {
		log.Warnw("Invalid state transition", "event", event, "state", machine.Current(), "error", err)
	}
}
