package apc

import (
	"context"
	"errors"
	"testing"

	"github.com/frankban/quicktest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/andys/netcollector/device"
	"github.com/andys/netcollector/flow"
)

type fakeTerminal struct {
	status string
	err    error
}

func (f *fakeTerminal) Status() (string, error) { return f.status, f.err }
func (f *fakeTerminal) Close() error            { return nil }

func observedLogger() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core).Sugar(), logs
}

const statusScreen = "\r\n------- Device Manager ---------\r\n" +
	"  Model: Smart-UPS 1500\r\n" +
	"  Status of UPS : On Line, No Alarms Present\r\n" +
	"  Last Transfer : Due to software command or UPS's test control\r\n" +
	"\r\n     1- Status\r\n"

func TestParseStatus(t *testing.T) {
	c := quicktest.New(t)

	status, ok := ParseStatus(statusScreen)
	c.Assert(ok, quicktest.IsTrue)
	c.Assert(status, quicktest.Equals, "On Line, No Alarms Present")

	_, ok = ParseStatus("  Model: Smart-UPS 1500\r\n")
	c.Assert(ok, quicktest.IsFalse)
}

func TestUPSStatus_Online(t *testing.T) {
	c := quicktest.New(t)
	log, logs := observedLogger()
	ex := Extractors(log)[FlowUPSStatus]
	c.Assert(ex.Width, quicktest.Equals, 2)

	rows, err := ex.Extract(context.Background(), &fakeTerminal{status: "On Line, No Alarms Present"}, flow.Definition{})
	c.Assert(err, quicktest.IsNil)
	c.Assert(rows, quicktest.DeepEquals, []flow.Row{{"On Line, No Alarms Present", 1}})
	c.Assert(logs.FilterLevelExact(zap.WarnLevel).Len(), quicktest.Equals, 0)
}

func TestUPSStatus_OnBattery(t *testing.T) {
	c := quicktest.New(t)
	log, logs := observedLogger()
	u := &UPSStatus{log: log}

	rows, err := u.Extract(context.Background(), &fakeTerminal{status: "On Battery"}, flow.Definition{})
	c.Assert(err, quicktest.IsNil)
	c.Assert(rows, quicktest.DeepEquals, []flow.Row{{"On Battery", 0}})
	c.Assert(logs.FilterLevelExact(zap.WarnLevel).Len(), quicktest.Equals, 1)
}

func TestUPSStatus_NoStatusLine(t *testing.T) {
	c := quicktest.New(t)
	log, logs := observedLogger()
	u := &UPSStatus{log: log}

	rows, err := u.Extract(context.Background(), &fakeTerminal{}, flow.Definition{})
	c.Assert(err, quicktest.IsNil)
	c.Assert(rows, quicktest.HasLen, 0)
	c.Assert(logs.FilterMessage("Unable to retrieve UPS status").Len(), quicktest.Equals, 1)
}

func TestUPSStatus_TerminalError(t *testing.T) {
	c := quicktest.New(t)
	log, _ := observedLogger()
	u := &UPSStatus{log: log}

	_, err := u.Extract(context.Background(), &fakeTerminal{err: device.ErrProtocol}, flow.Definition{})
	c.Assert(errors.Is(err, device.ErrProtocol), quicktest.IsTrue)
}
