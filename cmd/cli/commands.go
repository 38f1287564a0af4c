package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	grpcserver "github.com/and161185/eventcert/internal/server/grpc"
)

var errUnknownCommand = errors.New("unknown command")

// client calls eventcert.v1.Certificates with Struct messages.
type client struct {
	cc  grpc.ClientConnInterface
	out io.Writer
}

func (c *client) call(ctx context.Context, method string, in map[string]any) (map[string]any, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, grpcserver.FullMethod(method), req, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// request flag -> field; empty optional flags are left out.
type field struct {
	flag, key, usage string
	required         bool
}

// command maps CLI flags onto one RPC.
type command struct {
	method string
	fields []field
	// file flags are read and sent as the field's string value
	files []field
}

var commands = map[string]command{
	"issue": {method: "IssueCertificate", fields: []field{
		{"reg", "registration_id", "registration id (uuid)", true},
		{"tpl", "template_id", "template id (uuid)", true},
		{"base", "base_url", "verification base URL", false},
	}},
	"issue-event": {method: "IssueEventCertificates", fields: []field{
		{"event", "event_id", "event id (uuid)", true},
		{"tpl", "template_id", "template id (uuid)", true},
		{"base", "base_url", "verification base URL", false},
	}},
	"verify": {method: "VerifyCertificate", fields: []field{
		{"token", "token", "verification token", true},
	}},
	"templates": {method: "ListTemplates", fields: []field{
		{"society", "society_id", "society id (uuid)", true},
	}},
	"template-add": {method: "CreateTemplate", fields: []field{
		{"society", "society_id", "society id (uuid)", true},
		{"name", "name", "template name", true},
	}, files: []field{
		{"file", "html", "HTML file ('-'=stdin)", true},
	}},
	"template-rm": {method: "DeleteTemplate", fields: []field{
		{"society", "society_id", "society id (uuid)", true},
		{"id", "template_id", "template id (uuid)", true},
	}},
	"event-certs": {method: "ListEventCertificates", fields: []field{
		{"event", "event_id", "event id (uuid)", true},
	}},
	"my-certs": {method: "ListMyCertificates"},
}

// request parses args against cmd's flags and builds the RPC body.
func (cmd command) request(name string, args []string) (map[string]any, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	vals := map[string]*string{}
	for _, f := range append(append([]field{}, cmd.fields...), cmd.files...) {
		vals[f.flag] = fs.String(f.flag, "", f.usage)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	req := map[string]any{}
	for _, f := range cmd.fields {
		v := *vals[f.flag]
		if v == "" {
			if f.required {
				return nil, fmt.Errorf("%s: need -%s", name, f.flag)
			}
			continue
		}
		req[f.key] = v
	}
	for _, f := range cmd.files {
		p := *vals[f.flag]
		if p == "" {
			return nil, fmt.Errorf("%s: need -%s", name, f.flag)
		}
		b, err := readAll(p)
		if err != nil {
			return nil, err
		}
		req[f.key] = string(b)
	}
	return req, nil
}

// run executes one subcommand and prints the response as JSON.
func (c *client) run(ctx context.Context, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownCommand, name)
	}
	req, err := cmd.request(name, args)
	if err != nil {
		return err
	}
	resp, err := c.call(ctx, cmd.method, req)
	if err != nil {
		return err
	}
	printJSON(c.out, resp)
	return nil
}
