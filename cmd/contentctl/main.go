// cmd/contentctl/main.go
//
// contentctl runs imports, migrations and reports against the content
// database. It must run as a single instance while no import or migration
// is in flight elsewhere; migrations assume exclusive access.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
)

const usage = `contentctl: maintenance tool for the stratacms content database.

Run exactly one contentctl at a time, with no other import or migration in
progress. Migrations and dedupe-sections assume exclusive, offline access.

Usage:
  contentctl [global flags] <command> [command flags] [args]

Commands:
  import-markdown  -dir DIR                   import pages and sections from markdown
  import-images    -file FILE                 attach image URLs from a JSON mapping
  reconcile        -file FILE                 report how mapping keys match sectionIds
  migrations                                  list registered migrations
  migrate          [-dry-run] [-limit N] NAME...|all
                                              run document migrations
  dedupe-sections  [-dry-run]                 merge duplicate (sectionId, language) sections
  translate        -langs LIST (-page SLUG | -all)
                                              machine-translate pages and their sections
  report                                      list dangling references and orphan sections
  hash-key         [-key KEY]                 print a bcrypt hash to use as api_key
                                              (a new random key when -key is omitted)

Global flags (defaults come from STRATACMS_* environment variables):
`

type command struct {
	name string
	run  func(ctx context.Context, env *env, args []string) error
}

var commands = []command{
	{"import-markdown", runImportMarkdown},
	{"import-images", runImportImages},
	{"reconcile", runReconcile},
	{"migrations", runMigrations},
	{"migrate", runMigrate},
	{"dedupe-sections", runDedupe},
	{"translate", runTranslate},
	{"report", runReport},
	{"hash-key", runHashKey},
}

// offline commands need no database connection.
var offline = map[string]bool{"migrations": true, "hash-key": true}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "contentctl: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("usage error")

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("contentctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := bindGlobalFlags(fs)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return errUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	name, rest := fs.Arg(0), fs.Args()[1:]
	cmd, ok := lookupCommand(name)
	if !ok {
		fs.Usage()
		return fmt.Errorf("%w: unknown command %q (known: %v)", errUsage, name, commandNames())
	}

	e, err := opts.open(ctx, !offline[name])
	if err != nil {
		return err
	}
	defer e.close()
	e.out = stdout

	return cmd.run(ctx, e, rest)
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func commandNames() []string {
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = c.name
	}
	sort.Strings(names)
	return names
}
