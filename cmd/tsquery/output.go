// =============================================================================
// output.go - Rendering Replies and Notifications
// =============================================================================
//
// Replies are printed either as key=value tables or as JSON:
//
//	virtualserver_name = My Server
//	virtualserver_port = 9987
//
// A list reply prints one block per record separated by blank lines. In JSON
// mode an empty reply is null, a single record an object and a list an
// array, matching queryprotocol.Response's JSON encoding.
//
// =============================================================================

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/tsquery/tsquery/queryprotocol"
)

// writeCompletion prints a successful reply.
func writeCompletion(w io.Writer, comp queryprotocol.Completion, asJSON bool) error {
	data := comp.Data()
	if asJSON {
		return writeJSON(w, data)
	}
	if data.IsNull() {
		fmt.Fprintln(w, "ok")
		return nil
	}
	for i, rec := range data.Records() {
		if i > 0 {
			fmt.Fprintln(w)
		}
		writeRecord(w, rec)
	}
	return nil
}

// writeErrorJSON prints a failed reply as JSON, including the data the
// server sent before the error terminator.
func writeErrorJSON(w io.Writer, comp queryprotocol.Completion) {
	var info *queryprotocol.ErrorInfo
	if errors.As(comp.Err, &info) {
		writeJSON(w, struct {
			*queryprotocol.ErrorInfo
			Data queryprotocol.Response `json:"data"`
		}{info, comp.Data()})
		return
	}
	writeJSON(w, queryprotocol.ErrorInfo{
		Status:  queryprotocol.StatusError,
		Message: comp.Err.Error(),
		ErrorID: -1,
	})
}

// writeNotification prints one notification on a single line.
func writeNotification(w io.Writer, n queryprotocol.Notification, asJSON bool) {
	if asJSON {
		writeJSON(w, n)
		return
	}
	var b strings.Builder
	b.WriteString("notify")
	b.WriteString(n.Event)
	for _, rec := range n.Data.Records() {
		for _, key := range sortedKeys(rec) {
			fmt.Fprintf(&b, " %s=%s", key, rec[key].String())
		}
	}
	fmt.Fprintln(w, b.String())
}

// writeRecord prints rec as aligned key = value lines, sorted by key.
func writeRecord(w io.Writer, rec queryprotocol.Record) {
	keys := sortedKeys(rec)
	width := 0
	for _, key := range keys {
		width = max(width, len(key))
	}
	for _, key := range keys {
		fmt.Fprintf(w, "%-*s = %s\n", width, key, rec[key].String())
	}
}

func sortedKeys(rec queryprotocol.Record) []string {
	keys := make([]string, 0, len(rec))
	for key := range rec {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
