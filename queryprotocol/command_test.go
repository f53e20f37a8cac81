package queryprotocol

import (
	"testing"

	"github.com/google/uuid"
)

func TestBuildLine(t *testing.T) {
	tests := []struct {
		name     string
		cmd      *PendingCommand
		expected string
	}{
		{"Bare", NewCommand("version"), "version"},
		{"Options", NewCommand("clientlist", WithOptions("uid", "away")), "clientlist -uid -away"},
		{"Scalar param", NewCommand("use", WithParam("sid", 1)), "use sid=1"},
		{"Escaped value", NewCommand("clientupdate", WithParam("client_nickname", "Big Bot")),
			`clientupdate client_nickname=Big\sBot`},
		{"Param order kept", NewCommand("sendtextmessage",
			WithParam("targetmode", 2),
			WithParam("target", 1),
			WithParam("msg", "hi there|all"),
		), `sendtextmessage targetmode=2 target=1 msg=hi\sthere\pall`},
		{"List param", NewCommand("clientkick",
			WithParamList("clid", 5, 6, 7),
			WithParam("reasonid", 5),
		), "clientkick clid=5|clid=6|clid=7 reasonid=5"},
		{"Options before params", NewCommand("channellist",
			WithParam("x", "y"),
			WithOptions("topic"),
		), "channellist -topic x=y"},
		{"Bool param", NewCommand("servernotifyregister", WithParam("flag", true)), "servernotifyregister flag=1"},
		{"Escaped name and option", NewCommand("a b", WithOptions("c/d")), `a\sb -c\/d`},
		{"Empty list param", NewCommand("x", WithParamList[string]("k")), "x"},
		{"Empty scalar", NewCommand("x", WithParam("k", "")), "x k="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cmd.Text != tt.expected {
				t.Errorf("got %q, want %q", tt.cmd.Text, tt.expected)
			}
		})
	}
}

func TestBuildLineFunction(t *testing.T) {
	got := BuildLine("login", nil, Params{
		{Key: "client_login_name", Values: []string{"serveradmin"}},
		{Key: "client_login_password", Values: []string{"p@ss word"}},
	})
	expected := `login client_login_name=serveradmin client_login_password=p@ss\sword`
	if got != expected {
		t.Errorf("got %q, want %q", got, expected)
	}
}

func TestCommandFormatLine(t *testing.T) {
	cmd := NewCommand("whoami")
	if got := cmd.FormatLine(); got != "whoami\n" {
		t.Errorf("got %q, want %q", got, "whoami\n")
	}
}

func TestNewCommandFields(t *testing.T) {
	called := false
	cmd := NewCommand("clientinfo",
		WithParam("clid", 7),
		WithOptions("uid"),
		WithCallback(func(Completion) { called = true }),
	)

	if cmd.ID == uuid.Nil {
		t.Error("expected a command id")
	}
	if cmd.Name != "clientinfo" {
		t.Errorf("Name = %q", cmd.Name)
	}
	if len(cmd.Options) != 1 || cmd.Options[0] != "uid" {
		t.Errorf("Options = %v", cmd.Options)
	}
	p, ok := cmd.Params.Get("clid")
	if !ok || p.Value() != "7" || p.List {
		t.Errorf("clid param = %+v", p)
	}
	if _, ok := cmd.Params.Get("missing"); ok {
		t.Error("Get should not find a missing key")
	}

	cmd.Callback(Completion{})
	if !called {
		t.Error("callback not stored")
	}

	req := cmd.Request()
	if req.Name != "clientinfo" || req.Raw != "clientinfo -uid clid=7" {
		t.Errorf("Request() = %+v", req)
	}
}

func TestCommandIDsUnique(t *testing.T) {
	a := NewCommand("version")
	b := NewCommand("version")
	if a.ID == b.ID {
		t.Error("two commands share an id")
	}
}
