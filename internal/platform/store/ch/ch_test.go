package ch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"exoseek/internal/platform/testkit"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

type fakeBatch struct {
	driver.Batch // unimplemented methods panic

	rows    [][]any
	failAt  int
	sent    bool
	aborted bool
	sendErr error
}

func (b *fakeBatch) Append(v ...any) error {
	if b.failAt > 0 && len(b.rows)+1 == b.failAt {
		return errors.New("bad row")
	}
	b.rows = append(b.rows, v)
	return nil
}

func (b *fakeBatch) Send() error  { b.sent = true; return b.sendErr }
func (b *fakeBatch) Abort() error { b.aborted = true; return nil }

type fakeConn struct {
	batch    *fakeBatch
	query    string
	pingErr  error
	closed   bool
	queryErr error
}

func (c *fakeConn) PrepareBatch(_ context.Context, q string, _ ...driver.PrepareBatchOption) (driver.Batch, error) {
	c.query = q
	return c.batch, nil
}

func (c *fakeConn) Query(_ context.Context, q string, _ ...any) (driver.Rows, error) {
	c.query = q
	return nil, c.queryErr
}

func (c *fakeConn) Exec(_ context.Context, q string, _ ...any) error {
	c.query = q
	return c.queryErr
}

func (c *fakeConn) Ping(context.Context) error { return c.pingErr }
func (c *fakeConn) Close() error               { c.closed = true; return nil }

func TestOpen_RejectsEmptyURL(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty URL")
	}
}

func TestOpen_DialsWithClientInfo(t *testing.T) {
	testkit.Serial(t)

	fc := &fakeConn{}
	var got *clickhouse.Options
	testkit.Swap(t, &dial, func(opt *clickhouse.Options) (conn, error) {
		got = opt
		return fc, nil
	})

	cl, err := Open(context.Background(), Config{URL: "clickhouse://localhost:9000/default", ClientRole: "api", ClientTag: "dev"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if cl == nil || got == nil {
		t.Fatalf("dial not called")
	}
	if len(got.ClientInfo.Products) == 0 || got.ClientInfo.Products[0].Name != "exoseek" {
		t.Fatalf("client info not set: %+v", got.ClientInfo)
	}
}

func TestOpen_PingFailureCloses(t *testing.T) {
	testkit.Serial(t)

	fc := &fakeConn{pingErr: errors.New("refused")}
	testkit.Swap(t, &dial, func(*clickhouse.Options) (conn, error) { return fc, nil })

	if _, err := Open(context.Background(), Config{URL: "clickhouse://localhost:9000"}); err == nil {
		t.Fatalf("expected ping error")
	}
	if !fc.closed {
		t.Fatalf("connection should be closed after failed ping")
	}
}

func TestInsert_AppendsAndSends(t *testing.T) {
	t.Parallel()

	fb := &fakeBatch{}
	fc := &fakeConn{batch: fb}
	cl := &CH{c: fc}

	if err := cl.Insert(context.Background(), "events", [][]any{{1, "a"}, {2, "b"}}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if fc.query != "INSERT INTO events" {
		t.Fatalf("unexpected prepare query %q", fc.query)
	}
	if len(fb.rows) != 2 || !fb.sent {
		t.Fatalf("batch not filled and sent: %+v", fb)
	}
}

func TestInsert_EmptyIsNoop(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{}
	if err := (&CH{c: fc}).Insert(context.Background(), "events", nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if fc.query != "" {
		t.Fatalf("no batch should be prepared for empty input")
	}
}

func TestInsert_AppendErrorAborts(t *testing.T) {
	t.Parallel()

	fb := &fakeBatch{failAt: 2}
	err := (&CH{c: &fakeConn{batch: fb}}).Insert(context.Background(), "events", [][]any{{1}, {2}, {3}})
	if err == nil || !strings.Contains(err.Error(), "row 1") {
		t.Fatalf("expected append error naming the row, got %v", err)
	}
	if !fb.aborted || fb.sent {
		t.Fatalf("batch should be aborted and not sent")
	}
}

func TestQuery_PropagatesError(t *testing.T) {
	t.Parallel()

	cl := &CH{c: &fakeConn{queryErr: errors.New("syntax")}}
	if _, err := cl.Query(context.Background(), "SELEC 1"); err == nil {
		t.Fatalf("expected query error")
	}
}

func TestExec_Delegates(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{}
	if err := (&CH{c: fc}).Exec(context.Background(), "CREATE TABLE t (x UInt8) ENGINE = Memory"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if !strings.HasPrefix(fc.query, "CREATE TABLE") {
		t.Fatalf("statement not passed through: %q", fc.query)
	}
}

func TestClose_NilSafe(t *testing.T) {
	t.Parallel()

	var cl *CH
	if err := cl.Close(); err != nil {
		t.Fatalf("Close on nil: %v", err)
	}
	fc := &fakeConn{}
	if err := (&CH{c: fc}).Close(); err != nil || !fc.closed {
		t.Fatalf("Close did not reach the connection")
	}
}
