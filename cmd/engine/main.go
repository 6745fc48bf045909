// Package main is the operator CLI of the achievement engine.
//
// Every command prints JSON to stdout and logs to stderr:
//
//	engine migrate   up | down | status
//	engine athletes  upsert -student <id> -sport <sport> [-name <display name>]
//	engine coaches   assign -coach <id> -student <id>
//	engine evaluate  -student <id>
//	engine progress  -student <id>
//	engine earned    -student <id>
//	engine history   -student <id>
//	engine award     -student <id> -badge <id> -coach <id>
//	engine revoke    -award <id> -coach <id> -reason <text>
//	engine badges    import -file <catalog.json> | activate -badge <id> | deactivate -badge <id>
//
// The import file is either a JSON array of badges or an object with
// "categories" and "badges" arrays; categories are saved first.
//	engine metric    set -student <id> -name <metric> -value <number|true|false>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"
)

const appName = "engine"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "%s: achievement rule engine operator tool\n\n", appName)
	fmt.Fprintf(w, "Usage:\n  %s <command> [flags]\n\n", appName)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  migrate   Apply, roll back or list database migrations")
	fmt.Fprintln(w, "  athletes  Create or update an athlete")
	fmt.Fprintln(w, "  coaches   Add an athlete to a coach's roster")
	fmt.Fprintln(w, "  evaluate  Score all badges for an athlete and commit awards")
	fmt.Fprintln(w, "  progress  Score all badges for an athlete without writing")
	fmt.Fprintln(w, "  earned    List an athlete's active awards")
	fmt.Fprintln(w, "  history   List every award and audit event of an athlete")
	fmt.Fprintln(w, "  award     Manually award a badge on a coach's behalf")
	fmt.Fprintln(w, "  revoke    Revoke an award on a coach's behalf")
	fmt.Fprintln(w, "  badges    Import categories and badges, activate or deactivate badges")
	fmt.Fprintln(w, "  metric    Record an athlete metric")
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(os.Stderr)
		return flag.ErrHelp
	}

	cmd, ok := commands[args[0]]
	if !ok {
		usage(os.Stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}

	var opts options
	rest := args[1:]
	if len(cmd.subcommands) > 0 {
		if len(rest) == 0 || !slices.Contains(cmd.subcommands, rest[0]) {
			return fmt.Errorf("%s: expected one of %v", args[0], cmd.subcommands)
		}
		opts.sub, rest = rest[0], rest[1:]
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	opts.register(fs)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if cmd.validate != nil {
		if err := cmd.validate(opts); err != nil {
			return err
		}
	}

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := cmd.run(ctx, app, opts)
	if err != nil {
		return err
	}
	return writeJSON(stdout, result)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
