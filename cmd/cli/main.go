// Command ec is an operator CLI for the certificate service.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "eventcert")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "eventcert")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// tokenExpiry reads exp without verifying the signature; the server does that.
func tokenExpiry(tok string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no expiry")
	}
	return claims.ExpiresAt.Time, nil
}

// ---- grpc dial ----

type bearerCreds struct {
	token     string
	plaintext bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return !b.plaintext }

func loadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

type dialOpts struct {
	addr       string
	caPath     string
	skipVerify bool
	plaintext  bool
	bearer     string
}

func dial(o dialOpts) (*grpc.ClientConn, error) {
	creds := insecure.NewCredentials()
	if !o.plaintext {
		var err error
		if creds, err = loadTLS(o.caPath, o.skipVerify); err != nil {
			return nil, err
		}
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if o.bearer != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: o.bearer, plaintext: o.plaintext}))
	}
	return grpc.NewClient(o.addr, opts...)
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `ec CLI
Usage:
  ec -addr HOST:PORT [-cacert file | -insecure | -plaintext] <cmd> [args]

Commands:
  version
  login          -token <jwt|->                      (saves token)
  issue          -reg <uuid> -tpl <uuid> [-base url]
  issue-event    -event <uuid> -tpl <uuid> [-base url]
  verify         -token <hex>                         (no login needed)
  templates      -society <uuid>
  template-add   -society <uuid> -name <name> -file <html|->
  template-rm    -society <uuid> -id <uuid>
  event-certs    -event <uuid>
  my-certs
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands and configures TLS/auth for RPC calls.
func main() {
	// global flags
	addr := flag.String("addr", "localhost:8443", "server addr")
	caPath := flag.String("cacert", "", "CA cert (PEM)")
	skipVerify := flag.Bool("insecure", false, "skip cert verify (dev)")
	plaintext := flag.Bool("plaintext", false, "no TLS (local dev server)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch cmd {
	case "version":
		fmt.Printf("ec %s (%s)\n", version, buildDate)
		return
	case "login":
		if err := cmdLogin(args); err != nil {
			fail(err)
		}
		fmt.Println("ok")
		return
	}

	o := dialOpts{addr: *addr, caPath: *caPath, skipVerify: *skipVerify, plaintext: *plaintext}
	if cmd != "verify" {
		tok, err := loadToken()
		if err != nil {
			fail(err)
		}
		o.bearer = tok
	}
	cc, err := dial(o)
	if err != nil {
		fail(err)
	}
	defer cc.Close()

	c := &client{cc: cc, out: os.Stdout}
	if err := c.run(ctx, cmd, args); err != nil {
		if errors.Is(err, errUnknownCommand) {
			usage()
		}
		fail(err)
	}
}

func cmdLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	tok := fs.String("token", "", "bearer token ('-'=stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tok == "" {
		return errors.New("need -token")
	}
	if *tok == "-" {
		b, err := readAll("-")
		if err != nil {
			return err
		}
		*tok = strings.TrimSpace(string(b))
	}
	exp, err := tokenExpiry(*tok)
	if err != nil {
		return err
	}
	return saveToken(*tok, exp)
}

// ---- helpers ----

func fail(err error) {
	if s, ok := status.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "rpc error: code=%s msg=%s\n", s.Code(), s.Message())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
