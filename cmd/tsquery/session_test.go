// =============================================================================
// session_test.go - Tests for Connected Sessions (session.go, commands.go)
// =============================================================================
//
// These tests run the real client against the mock server from
// mockserver_test.go over loopback TCP, so the banner, the command queue
// and the reply routing are all exercised end to end.
//
// =============================================================================

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/tsquery/tsquery/queryprotocol"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openTestSession opens a session to ms with output captured in buffers.
func openTestSession(t *testing.T, ms *mockServer, modify func(*sessionConfig)) (*session, *syncBuffer, *syncBuffer) {
	t.Helper()
	out, errOut := &syncBuffer{}, &syncBuffer{}
	cfg := sessionConfig{
		Address: ms.address(),
		Timeout: 2 * time.Second,
		Logger:  discardLogger(),
		Out:     out,
		ErrOut:  errOut,
	}
	if modify != nil {
		modify(&cfg)
	}

	sess, err := openSession(context.Background(), cfg)
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	t.Cleanup(sess.Close)
	return sess, out, errOut
}

func TestSessionRun(t *testing.T) {
	ms := startMockServer(t, nil)
	sess, out, _ := openTestSession(t, ms, nil)

	if err := sess.run(context.Background(), "version"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "3.13.7") || !strings.Contains(out.String(), "platform = Linux") {
		t.Errorf("unexpected output:\n%s", out.String())
	}

	if err := sess.run(context.Background(), "clientlist -uid"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "client_nickname = Big Bot") {
		t.Errorf("list reply not rendered:\n%s", out.String())
	}

	got := ms.commands()
	if len(got) != 2 || got[0] != "version" || got[1] != "clientlist -uid" {
		t.Errorf("server received %q", got)
	}
}

func TestSessionLogin(t *testing.T) {
	ms := startMockServer(t, nil)
	openTestSession(t, ms, func(cfg *sessionConfig) {
		cfg.User = "serveradmin"
		cfg.Password = "p w"
		cfg.ServerID = 1
	})

	got := ms.commands()
	want := []string{
		`login client_login_name=serveradmin client_login_password=p\sw`,
		"use sid=1",
	}
	if len(got) != len(want) {
		t.Fatalf("server received %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSessionLoginFailure(t *testing.T) {
	ms := startMockServer(t, func(cmd string) string {
		return "error id=520 msg=invalid\\sloginname\\sor\\spassword\n"
	})

	_, err := openSession(context.Background(), sessionConfig{
		Address: ms.address(),
		Timeout: 2 * time.Second,
		User:    "serveradmin",
		Logger:  discardLogger(),
		Out:     io.Discard,
		ErrOut:  io.Discard,
	})
	if !queryprotocol.IsServerError(err, 520) {
		t.Fatalf("err = %v, want server error 520", err)
	}
	if !strings.Contains(err.Error(), "login as serveradmin") {
		t.Errorf("err = %v, want login context", err)
	}
}

func TestSessionServerError(t *testing.T) {
	ms := startMockServer(t, nil)
	sess, out, _ := openTestSession(t, ms, nil)

	err := sess.run(context.Background(), "nosuchcommand")
	var info *queryprotocol.ErrorInfo
	if !errors.As(err, &info) || info.ErrorID != 256 || info.Message != "command not found" {
		t.Fatalf("err = %v, want ErrorInfo 256", err)
	}
	if out.String() != "" {
		t.Errorf("text mode should leave error reporting to the caller, got %q", out.String())
	}

	// The queue keeps working after a protocol error.
	if err := sess.run(context.Background(), "whoami"); err != nil {
		t.Errorf("run after error: %v", err)
	}
}

func TestSessionServerErrorJSON(t *testing.T) {
	ms := startMockServer(t, nil)
	sess, out, _ := openTestSession(t, ms, func(cfg *sessionConfig) { cfg.JSON = true })

	if err := sess.run(context.Background(), "nosuchcommand"); err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(out.String(), `"error_id": 256`) {
		t.Errorf("JSON error not printed:\n%s", out.String())
	}
}

func TestSessionTranslateError(t *testing.T) {
	ms := startMockServer(t, nil)
	sess, _, _ := openTestSession(t, ms, nil)

	if err := sess.run(context.Background(), `sendtextmessage msg="open`); !errors.Is(err, errUnterminatedQuote) {
		t.Errorf("err = %v, want errUnterminatedQuote", err)
	}
	if len(ms.commands()) != 0 {
		t.Errorf("nothing should be sent, server received %q", ms.commands())
	}
}

func TestSessionTimeout(t *testing.T) {
	ms := startMockServer(t, nil)
	sess, _, _ := openTestSession(t, ms, func(cfg *sessionConfig) { cfg.Timeout = 50 * time.Millisecond })

	err := sess.run(context.Background(), "slow")
	if err == nil || !strings.Contains(err.Error(), "no reply within") {
		t.Errorf("err = %v, want timeout", err)
	}
}

func TestSessionNotifications(t *testing.T) {
	ms := startMockServer(t, nil)
	sess, out, _ := openTestSession(t, ms, nil)

	if err := sess.subscribe(context.Background(), "textserver"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if got := ms.commands(); len(got) != 1 || got[0] != "servernotifyregister event=textserver" {
		t.Errorf("server received %q", got)
	}

	ms.push("notifytextmessage targetmode=3 msg=hello\\sall invokername=admin\n")
	waitFor(t, "notification output", func() bool {
		return strings.Contains(out.String(), "notifytextmessage invokername=admin msg=hello all targetmode=3")
	})
}

func TestSessionServerClose(t *testing.T) {
	ms := startMockServer(t, nil)
	sess, _, errOut := openTestSession(t, ms, nil)

	ms.closeConnections()

	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session not closed after server hangup")
	}
	waitFor(t, "close message", func() bool {
		return strings.Contains(errOut.String(), "Connection closed by")
	})
}

func TestSessionConnectFailure(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	address := listener.Addr().String()
	listener.Close()

	_, err = openSession(context.Background(), sessionConfig{
		Address: address,
		Timeout: time.Second,
		Logger:  discardLogger(),
		Out:     io.Discard,
		ErrOut:  io.Discard,
	})
	var connErr *queryprotocol.ConnectionError
	if !errors.As(err, &connErr) {
		t.Errorf("err = %v, want ConnectionError", err)
	}
}

func TestSessionTrace(t *testing.T) {
	ms := startMockServer(t, nil)
	sess, _, errOut := openTestSession(t, ms, func(cfg *sessionConfig) { cfg.Trace = true })

	if err := sess.run(context.Background(), "version"); err != nil {
		t.Fatalf("run: %v", err)
	}
	sess.Close()

	if !strings.Contains(errOut.String(), "serverquery/version") {
		t.Errorf("span not exported:\n%s", errOut.String())
	}
	if !strings.Contains(errOut.String(), "serverquery.client.commands") {
		t.Errorf("metrics not exported:\n%s", errOut.String())
	}
}

// =============================================================================
// Subcommand Tests
// =============================================================================

// testCLI returns flags pointing at ms.
func testCLI(ms *mockServer) *CLI {
	return &CLI{Host: ms.host(), Port: ms.port(), Timeout: 2 * time.Second}
}

func TestExecCmd(t *testing.T) {
	ms := startMockServer(t, nil)
	out := &syncBuffer{}
	std := &streams{out: out, errOut: io.Discard}

	cmd := &ExecCmd{Lines: []string{"version", "whoami"}}
	if err := cmd.Run(context.Background(), testCLI(ms), std, discardLogger()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "3.13.7") || !strings.Contains(out.String(), "virtualserver_id") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestExecCmdStopsOnError(t *testing.T) {
	ms := startMockServer(t, nil)
	std := &streams{out: io.Discard, errOut: io.Discard}

	cmd := &ExecCmd{Lines: []string{"nosuchcommand", "version"}}
	err := cmd.Run(context.Background(), testCLI(ms), std, discardLogger())
	if !queryprotocol.IsServerError(err, 256) {
		t.Fatalf("err = %v, want server error 256", err)
	}
	if got := ms.commands(); len(got) != 1 {
		t.Errorf("server received %q, want only the failing command", got)
	}
}

func TestExecCmdKeepGoing(t *testing.T) {
	ms := startMockServer(t, nil)
	errOut := &syncBuffer{}
	std := &streams{out: io.Discard, errOut: errOut}

	cmd := &ExecCmd{Lines: []string{"nosuchcommand", "version"}, KeepGoing: true}
	err := cmd.Run(context.Background(), testCLI(ms), std, discardLogger())
	if err == nil || !strings.Contains(err.Error(), "1 of 2 commands failed") {
		t.Fatalf("err = %v", err)
	}
	if got := ms.commands(); len(got) != 2 {
		t.Errorf("server received %q, want both commands", got)
	}
	if !strings.Contains(errOut.String(), "nosuchcommand") {
		t.Errorf("failure not reported:\n%s", errOut.String())
	}
}

func TestWatchCmd(t *testing.T) {
	ms := startMockServer(t, nil)
	out := &syncBuffer{}
	std := &streams{out: out, errOut: io.Discard}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	cmd := &WatchCmd{Events: []string{"server", "channel"}, Channel: 4}
	go func() { done <- cmd.Run(ctx, testCLI(ms), std, discardLogger()) }()

	waitFor(t, "registrations", func() bool { return len(ms.commands()) == 2 })
	got := ms.commands()
	if got[0] != "servernotifyregister event=server" || got[1] != "servernotifyregister event=channel id=4" {
		t.Errorf("server received %q", got)
	}

	ms.push("notifycliententerview clid=9 client_nickname=guest\n")
	waitFor(t, "notification", func() bool {
		return strings.Contains(out.String(), "notifycliententerview clid=9 client_nickname=guest")
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run after cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}

func TestWatchCmdConnectionLost(t *testing.T) {
	ms := startMockServer(t, nil)
	std := &streams{out: io.Discard, errOut: io.Discard}

	done := make(chan error, 1)
	cmd := &WatchCmd{Events: []string{"server"}}
	go func() { done <- cmd.Run(context.Background(), testCLI(ms), std, discardLogger()) }()

	waitFor(t, "registration", func() bool { return len(ms.commands()) == 1 })
	ms.closeConnections()

	select {
	case err := <-done:
		if !errors.Is(err, errConnectionLost) {
			t.Errorf("err = %v, want errConnectionLost", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after hangup")
	}
}

func TestVersionCmd(t *testing.T) {
	var out syncBuffer
	if err := (&VersionCmd{}).Run(&streams{out: &out}); err != nil {
		t.Fatal(err)
	}
	if out.String() != fullTitle()+"\n" {
		t.Errorf("got %q", out.String())
	}
}
