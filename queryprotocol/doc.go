// Package queryprotocol provides a Go client for the line-oriented
// ServerQuery administration protocol (as spoken by TeamSpeak servers on
// port 10011).
//
// # Protocol Overview
//
// ServerQuery is a telnet-style protocol over one long-lived TCP
// connection. After a two-line greeting banner the client writes one
// command per line; the server answers with zero or more data lines and a
// terminator:
//
//	Request:      clientlist -uid -away
//	Data line:    clid=1 cid=1 client_nickname=serveradmin|clid=5 cid=2 ...
//	Terminator:   error id=0 msg=ok
//
// The server may push notifications at any time, including between a
// command and its terminator:
//
//	Notification: notifycliententerview cfid=0 ctid=1 clid=7 ...
//
// Keys, values, options and command names are escaped (space as \s, pipe
// as \p, and so on); see Escape and Unescape.
//
// Because replies carry no request id, the client keeps at most one command
// on the wire and queues the rest in FIFO order.
//
// # Basic Usage
//
//	client := queryprotocol.NewClient(queryprotocol.WithLogger(logger))
//
//	if err := client.Connect(ctx, "localhost:10011"); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Disconnect()
//
//	// Fire and forget with a callback
//	client.Invoke("use", queryprotocol.WithParam("sid", 1),
//	    queryprotocol.WithCallback(func(c queryprotocol.Completion) {
//	        if c.Err != nil {
//	            log.Printf("use failed: %v", c.Err)
//	        }
//	    }))
//
//	// Or wait for the result
//	comp, err := client.Execute(ctx, "clientlist", queryprotocol.WithOptions("uid"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, rec := range comp.Data().Records() {
//	    fmt.Println(rec.Get("client_nickname"))
//	}
//
// # Event Handling
//
// Notifications are delivered to generic and per-event subscribers:
//
//	client.OnNotifyEvent("cliententerview", func(n queryprotocol.Notification) {
//	    fmt.Println("joined:", n.Data.First().Get("client_nickname"))
//	})
//	client.Subscribe("server")
//
// Commands sent without a callback are delivered to OnCommand subscribers
// of their name. Connection-level signals (connect, ready, end, close,
// error) go to OnConnection subscribers and carry a snapshot of the
// commands still queued.
//
// # Errors
//
// A nonzero terminator id is reported as an *ErrorInfo in Completion.Err
// and affects only that command. Transport failures are *ConnectionError
// values; the queue is left intact so the caller can drain it with
// ClearPending or FailPending and reissue.
package queryprotocol
