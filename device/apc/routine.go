package apc

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/andys/netcollector/flow"
	"github.com/andys/netcollector/worker"
)

// Source is the worker name owning the UPS flows
const Source = "ups"

// FlowUPSStatus is the UPS status flow
const FlowUPSStatus = "ups_status"

const onlineStatus = "On Line, No Alarms Present"

// Extractors returns the UPS routines keyed by flow name
func Extractors(log *zap.SugaredLogger) map[string]worker.Extractor[Terminal] {
	status := &UPSStatus{log: log}
	return map[string]worker.Extractor[Terminal]{
		FlowUPSStatus: {Width: 2, Extract: status.Extract},
	}
}

// UPSStatus samples the status line. Rows are (status, online).
type UPSStatus struct {
	log *zap.SugaredLogger
}

// Extract reads the current status. A screen without a status line is logged
// and yields no rows.
func (u *UPSStatus) Extract(_ context.Context, term Terminal, _ flow.Definition) ([]flow.Row, error) {
	status, err := term.Status()
	if err != nil {
		return nil, err
	}
	if status == "" {
		u.log.Errorw("Unable to retrieve UPS status")
		return nil, nil
	}

	online := 0
	if strings.Contains(status, onlineStatus) {
		online = 1
		u.log.Debugw("UPS status received", "status", status)
	} else {
		u.log.Warnw("UPS is not reporting on line", "status", status)
	}
	return []flow.Row{{status, online}}, nil
}
