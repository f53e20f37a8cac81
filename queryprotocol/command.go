package queryprotocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Param is one command parameter. A list parameter is rendered as a single
// multi-record argument ("key=a|key=b").
type Param struct {
	Key    string
	Values []string
	List   bool
}

// Value returns the scalar value of the parameter (the first value of a
// list parameter).
func (p Param) Value() string {
	if len(p.Values) == 0 {
		return ""
	}
	return p.Values[0]
}

// Params is an ordered list of parameters. Order is preserved on the wire.
type Params []Param

// Get returns the parameter named key.
func (ps Params) Get(key string) (Param, bool) {
	for _, p := range ps {
		if p.Key == key {
			return p, true
		}
	}
	return Param{}, false
}

// Callback receives the outcome of a command.
type Callback func(c Completion)

// PendingCommand is a command invocation held by the client from the moment
// it is queued until its terminator line has been dispatched.
//
// Use NewCommand to create instances.
type PendingCommand struct {
	ID       uuid.UUID
	Name     string
	Options  []string
	Params   Params
	Text     string   // Serialized protocol line without the line terminator
	Callback Callback // Optional; when nil the completion is emitted as an event

	QueuedAt time.Time
	SentAt   time.Time

	// Accumulated by the response router while the command is in flight.
	result *Result
	err    error
	token  HookToken
}

// CommandOption configures a command built with NewCommand.
type CommandOption func(*PendingCommand)

// WithOptions appends flag options (rendered as " -name").
func WithOptions(options ...string) CommandOption {
	return func(c *PendingCommand) {
		c.Options = append(c.Options, options...)
	}
}

// WithParam appends a scalar parameter. Strings, integers, booleans and
// fmt.Stringer values are rendered in their natural text form.
func WithParam(key string, value any) CommandOption {
	return func(c *PendingCommand) {
		c.Params = append(c.Params, Param{Key: key, Values: []string{formatValue(value)}})
	}
}

// WithParamList appends a list parameter, rendered as one multi-record
// argument.
func WithParamList[T any](key string, values ...T) CommandOption {
	return func(c *PendingCommand) {
		rendered := make([]string, len(values))
		for i, v := range values {
			rendered[i] = formatValue(v)
		}
		c.Params = append(c.Params, Param{Key: key, Values: rendered, List: true})
	}
}

// WithParams appends already built parameters.
func WithParams(params ...Param) CommandOption {
	return func(c *PendingCommand) {
		c.Params = append(c.Params, params...)
	}
}

// WithCallback sets the completion callback.
func WithCallback(cb Callback) CommandOption {
	return func(c *PendingCommand) {
		c.Callback = cb
	}
}

// NewCommand builds a command and serializes it.
func NewCommand(name string, opts ...CommandOption) *PendingCommand {
	c := &PendingCommand{
		ID:   uuid.New(),
		Name: name,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Text = BuildLine(c.Name, c.Options, c.Params)
	return c
}

// FormatLine returns the command formatted for transmission, including the
// line terminator.
func (c *PendingCommand) FormatLine() string {
	return c.Text + LineTerminator
}

// Request returns the descriptor handed to callbacks and subscribers.
func (c *PendingCommand) Request() RequestDescriptor {
	return RequestDescriptor{
		Name:    c.Name,
		Options: c.Options,
		Params:  c.Params,
		Raw:     c.Text,
	}
}

// BuildLine serializes a command name, its options and its parameters into
// one escaped protocol line. It never writes anything.
func BuildLine(name string, options []string, params Params) string {
	var b strings.Builder
	b.WriteString(Escape(name))

	for _, opt := range options {
		b.WriteString(" ")
		b.WriteString(OptionPrefix)
		b.WriteString(Escape(opt))
	}

	for _, p := range params {
		key := Escape(p.Key)
		if !p.List {
			b.WriteString(" ")
			b.WriteString(key)
			b.WriteString("=")
			b.WriteString(Escape(p.Value()))
			continue
		}

		if len(p.Values) == 0 {
			continue
		}
		b.WriteString(" ")
		for i, v := range p.Values {
			if i > 0 {
				b.WriteString(RecordSeparator)
			}
			b.WriteString(key)
			b.WriteString("=")
			b.WriteString(Escape(v))
		}
	}

	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case bool:
		// The protocol uses 0/1 for booleans.
		if val {
			return "1"
		}
		return "0"
	case Value:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
