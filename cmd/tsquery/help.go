// =============================================================================
// help.go - Help System
// =============================================================================
//
// This file implements the REPL help system:
//   - ".help"         Full listing of dot-commands and common server commands
//   - ".help <topic>" Detailed help for one dot-command or server command
//
// Server command help only covers the commands people reach for most; the
// server itself answers "help <command>" for everything else.
//
// =============================================================================

package main

// GO CONCEPT: Map Literals for Lookup Tables
// -------------------------------------------
// map[string]string literals make static lookup tables. A lookup returns
// two values, the entry and whether it was present:
//
//	text, ok := dotHelp[key]
//
// Compare with Python: help.get(key) returns None for a missing key; Go
// returns the zero value ("") plus ok == false.
import (
	"fmt"
	"io"
	"strings"
)

// printHelp writes help for topic to w, or the overview when topic is
// empty. It returns an error for an unknown topic.
func printHelp(w io.Writer, topic string) error {
	if topic == "" {
		printHelpOverview(w)
		return nil
	}

	// ".watch" only matches dot-commands; a bare word prefers the server
	// command of that name.
	key := strings.ToLower(strings.TrimSpace(topic))
	if name, ok := strings.CutPrefix(key, "."); ok {
		if text, ok := dotHelp[name]; ok {
			fmt.Fprintln(w, text)
			return nil
		}
	} else if text, ok := commandHelp[key]; ok {
		fmt.Fprintln(w, text)
		return nil
	} else if text, ok := dotHelp[key]; ok {
		fmt.Fprintln(w, text)
		return nil
	}

	return fmt.Errorf("no help for '%s'; type .help to list topics, or send 'help %s' to ask the server", topic, topic)
}

// printHelpOverview writes the full command listing.
func printHelpOverview(w io.Writer) {
	fmt.Fprint(w, `Dot-commands:
  .help [topic]     Show help (or help for a specific command)
  .pending          List commands waiting to be sent
  .clear            Drop commands waiting to be sent
  .json             Toggle JSON output
  .watch <event>    Register for notifications (server, channel, textserver, ...)
  .quit             Disconnect and exit

Server commands (sent as typed):
  login             Authenticate with query credentials
  use               Select a virtual server
  serverinfo        Show virtual server properties
  clientlist        List connected clients
  channellist       List channels
  sendtextmessage   Send a text message
  clientkick        Kick clients from a channel or the server
  whoami            Show the current query session
  version           Show server version
  help              Ask the server for help on a command

Input syntax:
  name -option key=value key="value with spaces"
  A repeated key is sent as a list: clid=1 clid=2 becomes clid=1|clid=2
`)
}

// dotHelp contains detailed help for dot-commands, keyed without the dot.
var dotHelp = map[string]string{
	"help": `  .help [topic]
    Show the command listing, or detailed help for one topic.
    Examples:
      .help             Show the full listing
      .help clientlist  Show help for the clientlist command
      .help .watch      Show help for the .watch dot-command`,

	"pending": `  .pending
    List commands that are queued but not yet written to the server.
    The command currently awaiting a reply is shown first.`,

	"clear": `  .clear
    Drop every queued command that has not been written yet. The command
    awaiting a reply is not affected.`,

	"json": `  .json
    Toggle between the key=value table output and JSON output.
    Lists are printed as arrays, single records as objects and empty
    replies as null.`,

	"watch": `  .watch <event> [id=<channel id>]
    Register for server notifications and print them as they arrive.
    Events: server, channel, textserver, textchannel, textprivate.
    Examples:
      .watch server
      .watch channel id=0`,

	"quit": `  .quit
    Disconnect from the server and exit. .exit is accepted as well.`,
}

// commandHelp contains detailed help for common server commands.
var commandHelp = map[string]string{
	"login": `  login client_login_name=<name> client_login_password=<password>
    Authenticate the query session. Most commands need this first.
    Example:
      login client_login_name=serveradmin client_login_password=secret`,

	"use": `  use sid=<id> | use port=<port>
    Select the virtual server that following commands apply to.
    Example:
      use sid=1`,

	"serverinfo": `  serverinfo
    Show the properties of the selected virtual server.`,

	"clientlist": `  clientlist [-uid] [-away] [-voice] [-times] [-groups] [-info] [-country] [-ip]
    List clients on the selected virtual server. Options add columns.
    Example:
      clientlist -uid -away`,

	"channellist": `  channellist [-topic] [-flags] [-voice] [-limits] [-icon]
    List channels on the selected virtual server.`,

	"sendtextmessage": `  sendtextmessage targetmode=<1|2|3> target=<id> msg=<text>
    Send a text message. targetmode 1 is a client, 2 a channel and 3 the
    whole server.
    Example:
      sendtextmessage targetmode=3 target=1 msg="server restarts in 5 minutes"`,

	"clientkick": `  clientkick clid=<id>... reasonid=<4|5> [reasonmsg=<text>]
    Kick clients from their channel (reasonid=4) or the server (reasonid=5).
    Repeat clid to kick several clients at once.
    Example:
      clientkick clid=5 clid=6 reasonid=5 reasonmsg="spamming"`,

	"whoami": `  whoami
    Show the query session's client id, nickname and selected server.`,

	"version": `  version
    Show the server version, build and platform.`,

	"servernotifyregister": `  servernotifyregister event=<event> [id=<channel id>]
    Register for notifications. The .watch dot-command sends this for you.`,
}
