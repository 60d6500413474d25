package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"seasonfarm/sdk/farmclient"
)

const (
	defaultEndpoint = "http://127.0.0.1:8545"
	defaultTokenEnv = "FARMCTL_TOKEN"
)

var errUsage = errors.New("usage")

type globalOptions struct {
	endpoint string
	caller   string
	tokenEnv string
	timeout  time.Duration
}

type command struct {
	usage string
	run   func(ctx context.Context, env *cliEnv, args []string) error
}

// cliEnv carries the connected client and output stream of one invocation.
type cliEnv struct {
	client *farmclient.Client
	caller common.Address
	out    io.Writer
}

func (e *cliEnv) print(v interface{}) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var opts globalOptions
	fs := flag.NewFlagSet("farmctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.endpoint, "rpc", defaultEndpoint, "Farm node JSON-RPC endpoint")
	fs.StringVar(&opts.caller, "from", "", "Address sending state changing calls")
	fs.StringVar(&opts.tokenEnv, "token-env", defaultTokenEnv, "Environment variable holding a bearer token")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")
	fs.Usage = func() { usage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	rest := fs.Args()
	if len(rest) == 0 {
		usage(stderr, fs)
		return errUsage
	}
	name := rest[0]
	if name == "jwt" {
		return runJWT(rest[1:], stdout)
	}
	cmd, ok := commands()[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		usage(stderr, fs)
		return errUsage
	}

	env, err := connect(opts, stdout)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()
	if err := cmd.run(ctx, env, rest[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "usage: farmctl %s %s\n", name, cmd.usage)
		}
		return err
	}
	return nil
}

func connect(opts globalOptions, stdout io.Writer) (*cliEnv, error) {
	clientOpts := []farmclient.Option{}
	env := &cliEnv{out: stdout}
	if opts.caller != "" {
		addr, err := parseAddress(opts.caller)
		if err != nil {
			return nil, fmt.Errorf("-from: %w", err)
		}
		env.caller = addr
		clientOpts = append(clientOpts, farmclient.WithCaller(addr))
	}
	if opts.tokenEnv != "" {
		if token := strings.TrimSpace(os.Getenv(opts.tokenEnv)); token != "" {
			clientOpts = append(clientOpts, farmclient.WithAuthToken(token))
		}
	}
	client, err := farmclient.New(opts.endpoint, clientOpts...)
	if err != nil {
		return nil, err
	}
	env.client = client
	return env, nil
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: farmctl [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	cmds := commands()
	names := make([]string, 0, len(cmds)+1)
	for name := range cmds {
		names = append(names, name)
	}
	names = append(names, "jwt")
	sort.Strings(names)
	for _, name := range names {
		if name == "jwt" {
			fmt.Fprintf(w, "  %-14s %s\n", name, jwtUsage)
			continue
		}
		fmt.Fprintf(w, "  %-14s %s\n", name, cmds[name].usage)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fs.PrintDefaults()
}

func parseAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(raw), nil
}
