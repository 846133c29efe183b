package routeros

import (
	"bytes"
	"errors"
	"testing"

	"github.com/frankban/quicktest"
	"github.com/go-routeros/routeros/v3"
)

type failingConn struct {
	bytes.Buffer
	err    error
	closed bool
}

func (f *failingConn) Close() error {
	f.closed = true
	return f.err
}

func TestClientClose(t *testing.T) {
	c := quicktest.New(t)

	conn := &failingConn{err: errors.New("connection reset by peer")}
	rc, err := routeros.NewClient(conn)
	c.Assert(err, quicktest.IsNil)

	client := &Client{conn: rc}
	c.Assert(client.Close(), quicktest.ErrorMatches, "connection reset by peer")
	c.Assert(conn.closed, quicktest.IsTrue)

	// A second close is a no-op.
	c.Assert(client.Close(), quicktest.IsNil)
}
