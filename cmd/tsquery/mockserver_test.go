// =============================================================================
// mockserver_test.go - Mock ServerQuery Server for Testing
// =============================================================================
//
// GO CONCEPT: Test Helpers (Shared Test Infrastructure)
// -----------------------------------------------------
// Files ending in _test.go are only compiled during testing, and every test
// file in the package shares them. This one provides a TCP server that
// greets with the two-line ServerQuery banner and answers commands through
// a handler function, so the CLI can be tested without a TeamSpeak server.
//
// Compare with Python: pytest keeps shared fixtures in conftest.py; here
// the "fixture" is a constructor that registers its own teardown with
// t.Cleanup.
//
// =============================================================================

package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockServer is a lightweight ServerQuery server for tests.
type mockServer struct {
	listener net.Listener

	// handler receives each command line and returns the reply lines,
	// including the terminator. If nil, defaultMockHandler is used.
	handler func(cmd string) string

	mu          sync.Mutex
	received    []string
	connections []net.Conn

	wg sync.WaitGroup
}

// startMockServer starts a server on a random loopback port. It is stopped
// when the test finishes.
func startMockServer(t *testing.T, handler func(cmd string) string) *mockServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	if handler == nil {
		handler = defaultMockHandler
	}

	ms := &mockServer{listener: listener, handler: handler}
	ms.wg.Add(1)
	go ms.acceptLoop()
	t.Cleanup(ms.stop)
	return ms
}

// address returns host:port of the listener.
func (ms *mockServer) address() string {
	return ms.listener.Addr().String()
}

// host and port split the address for flag-based tests.
func (ms *mockServer) host() string {
	host, _, _ := net.SplitHostPort(ms.address())
	return host
}

func (ms *mockServer) port() int {
	return ms.listener.Addr().(*net.TCPAddr).Port
}

// commands returns the command lines received so far.
func (ms *mockServer) commands() []string {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]string(nil), ms.received...)
}

// push writes raw lines to every connected client, for notifications.
func (ms *mockServer) push(lines string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, conn := range ms.connections {
		fmt.Fprint(conn, lines)
	}
}

// closeConnections drops every client, as a server shutdown would.
func (ms *mockServer) closeConnections() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, conn := range ms.connections {
		conn.Close()
	}
	ms.connections = nil
}

func (ms *mockServer) acceptLoop() {
	defer ms.wg.Done()
	for {
		conn, err := ms.listener.Accept()
		if err != nil {
			return
		}
		ms.mu.Lock()
		ms.connections = append(ms.connections, conn)
		ms.mu.Unlock()

		ms.wg.Add(1)
		go ms.handleConnection(conn)
	}
}

func (ms *mockServer) handleConnection(conn net.Conn) {
	defer ms.wg.Done()

	ms.mu.Lock()
	fmt.Fprint(conn, "TS3\n\rWelcome to the TeamSpeak 3 ServerQuery interface, type \"help\" for a list of commands.\n\r")
	ms.mu.Unlock()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		ms.mu.Lock()
		ms.received = append(ms.received, cmd)
		ms.mu.Unlock()

		reply := ms.handler(cmd)
		if reply == "" {
			continue
		}
		ms.mu.Lock()
		fmt.Fprint(conn, reply)
		ms.mu.Unlock()
	}
}

func (ms *mockServer) stop() {
	ms.listener.Close()
	ms.closeConnections()
	ms.wg.Wait()
}

const okTerminator = "error id=0 msg=ok\n"

// defaultMockHandler answers a handful of commands the way a real server
// does, and everything else with "command not found".
func defaultMockHandler(cmd string) string {
	name, _, _ := strings.Cut(cmd, " ")
	switch name {
	case "version":
		return "version=3.13.7 build=1655727713 platform=Linux\n" + okTerminator
	case "whoami":
		return "virtualserver_status=online virtualserver_id=1 client_nickname=serveradmin client_id=1\n" + okTerminator
	case "clientlist":
		return "clid=1 client_nickname=serveradmin|clid=5 client_nickname=Big\\sBot\n" + okTerminator
	case "login", "use", "servernotifyregister", "quit":
		return okTerminator
	case "slow":
		return ""
	default:
		return "error id=256 msg=command\\snot\\sfound\n"
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent writes from the client's
// reader goroutine and reads from the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ io.Writer = (*syncBuffer)(nil)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
