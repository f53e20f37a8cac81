// Package queryprotocol implements the line-oriented ServerQuery protocol
// used by server administration interfaces such as TeamSpeak's.
//
// Protocol Format:
//
//	Banner (Server -> Client):  two greeting lines after connect
//	Request (Client -> Server): <command> [-option...] [key=value...]\n
//	Data line:                  key=value key=value|key=value ...\n
//	Terminator:                 error id=<int> msg=<escaped message>\n
//	Notification:               notify<event> key=value ...\n
//
// Example Session:
//
//	SRV: TS3
//	SRV: Welcome to the TeamSpeak 3 ServerQuery interface, ...
//	CLI: version
//	SRV: version=3.13.7 build=1655727713 platform=Linux
//	SRV: error id=0 msg=ok
//	CLI: use sid=1
//	SRV: error id=1024 msg=invalid\sserverID
package queryprotocol

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// Protocol constants.
const (
	// TerminatorPrefix starts the line that ends every command response.
	TerminatorPrefix = "error"

	// NotifyPrefix starts every unsolicited notification line.
	NotifyPrefix = "notify"

	// LineTerminator ends every line written to the server.
	LineTerminator = "\n"

	// RecordSeparator delimits records within one line.
	RecordSeparator = "|"

	// OptionPrefix marks a command option (e.g. "clientlist -uid").
	OptionPrefix = "-"

	// BannerLines is the number of greeting lines the server sends before
	// it accepts commands.
	BannerLines = 2

	// DefaultHost is the host used when an address omits one.
	DefaultHost = "localhost"

	// DefaultPort is the standard ServerQuery port.
	DefaultPort = 10011

	// MaxLineLength is the maximum allowed length for a protocol line in
	// bytes. Large list responses (clientlist, channellist) arrive as one
	// line, so this is generous.
	MaxLineLength = 4 * 1024 * 1024

	// ConnectionTimeout is the default timeout for establishing connections.
	ConnectionTimeout = 5 * time.Second
)

// Address normalizes a host[:port] string, filling in DefaultHost and
// DefaultPort where they are missing.
func Address(addr string) string {
	if addr == "" {
		return net.JoinHostPort(DefaultHost, strconv.Itoa(DefaultPort))
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		// No port present.
		return net.JoinHostPort(strings.Trim(addr, "[]"), strconv.Itoa(DefaultPort))
	}
	if host == "" {
		host = DefaultHost
	}
	if port == "" {
		port = strconv.Itoa(DefaultPort)
	}
	return net.JoinHostPort(host, port)
}
