// =============================================================================
// output_test.go - Tests for Reply Rendering (output.go)
// =============================================================================

package main

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/tsquery/tsquery/queryprotocol"
)

func completionFor(line string) queryprotocol.Completion {
	return queryprotocol.Completion{
		Result: &queryprotocol.Result{
			Status: queryprotocol.StatusOK,
			Data:   queryprotocol.ParseLine(line),
			Raw:    line,
		},
	}
}

func TestWriteCompletionText(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"null", "", "ok\n"},
		{"single sorted and aligned", "virtualserver_port=9987 id=1",
			"id                 = 1\nvirtualserver_port = 9987\n"},
		{"list", "clid=1|clid=2", "clid = 1\n\nclid = 2\n"},
		{"unescaped", `client_nickname=Big\sBot`, "client_nickname = Big Bot\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out strings.Builder
			if err := writeCompletion(&out, completionFor(tc.line), false); err != nil {
				t.Fatal(err)
			}
			if out.String() != tc.want {
				t.Errorf("got %q, want %q", out.String(), tc.want)
			}
		})
	}
}

func TestWriteCompletionJSON(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"null", "", "null"},
		{"single", "clid=1 client_nickname=x", `{"clid":1,"client_nickname":"x"}`},
		{"list", "clid=1|clid=2", `[{"clid":1},{"clid":2}]`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out strings.Builder
			if err := writeCompletion(&out, completionFor(tc.line), true); err != nil {
				t.Fatal(err)
			}
			var got, want any
			if err := json.Unmarshal([]byte(out.String()), &got); err != nil {
				t.Fatalf("output is not JSON: %v\n%s", err, out.String())
			}
			json.Unmarshal([]byte(tc.want), &want)
			gotJSON, _ := json.Marshal(got)
			wantJSON, _ := json.Marshal(want)
			if string(gotJSON) != string(wantJSON) {
				t.Errorf("got %s, want %s", gotJSON, wantJSON)
			}
		})
	}
}

func TestWriteErrorJSON(t *testing.T) {
	comp := completionFor("clid=1")
	comp.Err = &queryprotocol.ErrorInfo{Status: queryprotocol.StatusError, Message: "invalid clientID", ErrorID: 512}

	var out strings.Builder
	writeErrorJSON(&out, comp)

	var got struct {
		Status  string         `json:"status"`
		Message string         `json:"message"`
		ErrorID int64          `json:"error_id"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(out.String()), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if got.ErrorID != 512 || got.Message != "invalid clientID" || got.Status != "error" {
		t.Errorf("got %+v", got)
	}
	if got.Data["clid"] != float64(1) {
		t.Errorf("partial data not kept: %v", got.Data)
	}

	// A transport failure has no server id.
	out.Reset()
	writeErrorJSON(&out, queryprotocol.Completion{Err: errors.New("broken pipe")})
	if !strings.Contains(out.String(), `"error_id": -1`) || !strings.Contains(out.String(), "broken pipe") {
		t.Errorf("got %s", out.String())
	}
}

func TestWriteNotification(t *testing.T) {
	n := queryprotocol.Notification{
		Event: "cliententerview",
		Data:  queryprotocol.ParseLine(`clid=5 client_nickname=Big\sBot`),
	}

	var out strings.Builder
	writeNotification(&out, n, false)
	want := "notifycliententerview clid=5 client_nickname=Big Bot\n"
	if out.String() != want {
		t.Errorf("got %q, want %q", out.String(), want)
	}

	out.Reset()
	writeNotification(&out, n, true)
	var got struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(out.String()), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got.Event != "cliententerview" || got.Data["client_nickname"] != "Big Bot" {
		t.Errorf("got %+v", got)
	}
}
