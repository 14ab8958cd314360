package report

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"errors"
	"net/netip"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"IXScan/internal/config"
	"IXScan/internal/engine/aggregator"
	"IXScan/internal/engine/manager"
	"IXScan/internal/model"
	"IXScan/internal/routeserver"
)

var snapshot = time.Date(2023, 7, 24, 16, 0, 0, 0, time.UTC)

func testTable(t *testing.T) *routeserver.Table {
	t.Helper()
	table, err := routeserver.NewTable([]model.RouteServer{
		{ASN: 6695, Name: "DE-CIX Frankfurt"},
		{ASN: 6777, Name: "AMS-IX"},
		{ASN: 99, Name: "Test-IX"},
		{ASN: 8714, Name: "LINX"},
	})
	require.NoError(t, err)
	return table
}

func testResult(t *testing.T, failures ...model.SourceFailure) *manager.Result {
	t.Helper()
	state := aggregator.NewState()
	for _, o := range []model.Observation{
		{Member: 20, RouteServer: 99, Prefix: netip.MustParsePrefix("10.0.0.0/24")},
		{Member: 21, RouteServer: 99, Prefix: netip.MustParsePrefix("2001:db8::/32")},
		{Member: 30, RouteServer: 8714, Prefix: netip.MustParsePrefix("192.0.2.0/24")},
		{Member: 31, RouteServer: 6777, Prefix: netip.MustParsePrefix("198.51.100.0/24")},
	} {
		require.NoError(t, state.Add(o))
	}
	state.Finalize()
	return &manager.Result{
		State:    state,
		Sources:  3,
		Failures: failures,
		Stats:    model.Stats{Records: 10, MissingPaths: 1, AmbiguousPaths: 2, Observations: 4, SourcesCompleted: 3 - len(failures)},
	}
}

func TestBuild_Ordering(t *testing.T) {
	rep := Build(snapshot, testTable(t), testResult(t))

	require.Len(t, rep.Rows, 4)
	// 99 has two members; AMS-IX and LINX tie on one and keep declaration order;
	// DE-CIX has no observations and is still listed.
	assert.Equal(t, []model.ReportRow{
		{Name: "Test-IX", ASN: 99, Members: 2, IPv4Prefixes: 1, IPv6Prefixes: 1},
		{Name: "AMS-IX", ASN: 6777, Members: 1, IPv4Prefixes: 1},
		{Name: "LINX", ASN: 8714, Members: 1, IPv4Prefixes: 1},
		{Name: "DE-CIX Frankfurt", ASN: 6695},
	}, rep.Rows)

	require.Len(t, rep.Details, 4)
	assert.Equal(t, model.ASN(99), rep.Details[0].ASN)
	assert.Equal(t, []model.ASN{20, 21}, rep.Details[0].Members)
	assert.Empty(t, rep.Details[3].Members)
	assert.Equal(t, snapshot, rep.Snapshot)
}

func render(t *testing.T, rep *model.Report) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, NewTextWriter(&buf).Write(context.Background(), rep))
	return buf.String()
}

func TestTextWriter_Deterministic(t *testing.T) {
	table := testTable(t)
	first := render(t, Build(snapshot, table, testResult(t)))
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, render(t, Build(snapshot, table, testResult(t))))
	}

	assert.Contains(t, first, "re-appending members")
	assert.Contains(t, first, "Test-IX")
	assert.Less(t, strings.Index(first, "Test-IX"), strings.Index(first, "DE-CIX Frankfurt"))
	assert.Contains(t, first, "3 of 3 sources completed")
	assert.NotContains(t, first, "WARNING")
}

func TestTextWriter_Failures(t *testing.T) {
	failure := model.SourceFailure{
		Source: model.DataSource{Collector: "route-views2", URL: "http://example.net/rib.bz2"},
		Err:    "source unavailable: connection refused",
	}
	out := render(t, Build(snapshot, testTable(t), testResult(t, failure)))

	assert.Contains(t, out, "2 of 3 sources completed")
	assert.Contains(t, out, "WARNING: 1 of 3 sources failed")
	assert.Contains(t, out, "route-views2 (http://example.net/rib.bz2): source unavailable: connection refused")
}

func TestJSONWriter(t *testing.T) {
	root := t.TempDir()
	rep := Build(snapshot, testTable(t), testResult(t))
	w := NewJSONWriter(root)
	require.NoError(t, w.Write(context.Background(), rep))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(filepath.Join(root, "2023-07-24_16-00-00", "report.json"))
	require.NoError(t, err)

	var doc jsonReport
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, rep.Rows, doc.Rows)
	assert.Equal(t, 3, doc.Sources)
	assert.Empty(t, doc.Failures)
	assert.True(t, snapshot.Equal(doc.Snapshot))
}

func TestGobWriter(t *testing.T) {
	root := t.TempDir()
	rep := Build(snapshot, testTable(t), testResult(t))
	require.NoError(t, NewGobWriter(root).Write(context.Background(), rep))

	dir := filepath.Join(root, "2023-07-24_16-00-00")

	// Route servers without observations get no dump file.
	_, err := os.Stat(filepath.Join(dir, "rs_6695.dat"))
	assert.True(t, os.IsNotExist(err))

	file, err := os.Open(filepath.Join(dir, "rs_99.dat"))
	require.NoError(t, err)
	defer file.Close()
	var dump RouteServerDump
	require.NoError(t, gob.NewDecoder(file).Decode(&dump))
	assert.Equal(t, "Test-IX", dump.Name)
	assert.Equal(t, []model.ASN{20, 21}, dump.Members)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/24"),
		netip.MustParsePrefix("2001:db8::/32"),
	}, dump.Prefixes)

	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	require.NoError(t, err)
	var summary SummaryData
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, 4, summary.RouteServers)
	assert.Equal(t, 3, summary.Observed)
}

func TestSQLiteWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	w, err := NewSQLiteWriter(path)
	require.NoError(t, err)
	defer w.Close()

	rep := Build(snapshot, testTable(t), testResult(t))
	require.NoError(t, w.Write(context.Background(), rep))
	// Writing the same snapshot again replaces its rows.
	require.NoError(t, w.Write(context.Background(), rep))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM rs_member_summary").Scan(&count))
	assert.Equal(t, 4, count)

	var members, v6 int
	require.NoError(t, db.QueryRow(
		"SELECT members, ipv6_prefixes FROM rs_member_summary WHERE asn = ?", 99).Scan(&members, &v6))
	assert.Equal(t, 2, members)
	assert.Equal(t, 1, v6)
}

func TestEncodeReport(t *testing.T) {
	failure := model.SourceFailure{Source: model.DataSource{Collector: "rrc01"}, Err: "boom"}
	data, err := encodeReport(Build(snapshot, testTable(t), testResult(t, failure)))
	require.NoError(t, err)

	var st structpb.Struct
	require.NoError(t, proto.Unmarshal(data, &st))
	fields := st.AsMap()
	assert.Equal(t, "2023-07-24T16:00:00Z", fields["snapshot"])
	assert.Equal(t, 3.0, fields["sources"])

	rows, ok := fields["route_servers"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 4)
	first := rows[0].(map[string]any)
	assert.Equal(t, "Test-IX", first["name"])
	assert.Equal(t, 2.0, first["members"])

	failures := fields["failures"].([]any)
	require.Len(t, failures, 1)
	assert.Equal(t, "rrc01", failures[0].(map[string]any)["collector"])
}

type failingWriter struct{ calls int }

func (w *failingWriter) Write(context.Context, *model.Report) error {
	w.calls++
	return errors.New("disk full")
}
func (w *failingWriter) Name() string { return "failing" }
func (w *failingWriter) Close() error { return nil }

func TestDeliver_ContinuesAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	failing := &failingWriter{}
	rep := Build(snapshot, testTable(t), testResult(t))

	err := Deliver(context.Background(), []model.Writer{failing, NewTextWriter(&buf)}, rep)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1, failing.calls)
	assert.Contains(t, buf.String(), "Test-IX")
}

func TestEmailWriter(t *testing.T) {
	type sent struct {
		addr string
		to   []string
		msg  string
	}
	var mails []sent
	orig := sendMail
	sendMail = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		mails = append(mails, sent{addr: addr, to: to, msg: string(msg)})
		return nil
	}
	t.Cleanup(func() { sendMail = orig })

	_, err := NewEmailWriter(config.SMTPConfig{Host: "mail.example.net"})
	assert.Error(t, err)

	w, err := NewEmailWriter(config.SMTPConfig{
		Host:          "mail.example.net",
		From:          "ix-scan@example.net",
		To:            "noc@example.net, ops@example.net",
		OnlyOnFailure: true,
	})
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background(), Build(snapshot, testTable(t), testResult(t))))
	assert.Empty(t, mails)

	failure := model.SourceFailure{Source: model.DataSource{Collector: "rrc01"}, Err: "boom"}
	require.NoError(t, w.Write(context.Background(), Build(snapshot, testTable(t), testResult(t, failure))))
	require.Len(t, mails, 1)
	assert.Equal(t, "mail.example.net:587", mails[0].addr)
	assert.Equal(t, []string{"noc@example.net", "ops@example.net"}, mails[0].to)
	assert.Contains(t, mails[0].msg, "Subject: IX route server scan 2023-07-24T16:00:00Z (partial: 1 of 3 sources failed)\r\n")
	assert.Contains(t, mails[0].msg, "Test-IX")
}
