package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/reoring/dynform"
	"github.com/reoring/dynform/i18n"
	"github.com/reoring/dynform/internal/ctxlog"
	"github.com/reoring/dynform/internal/server"
	"github.com/reoring/dynform/jsonschema"
	dynyaml "github.com/reoring/dynform/source/yaml"
)

// errUsage makes run exit with status 2.
var errUsage = errors.New("usage")

// exitError carries a non-zero exit status without a message.
type exitError int

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}
	var err error
	switch args[0] {
	case "validate":
		err = validateCmd(args[1:], stdout, stderr)
	case "check":
		err = checkCmd(args[1:], stdout, stderr)
	case "schema":
		err = schemaCmd(args[1:], stdout, stderr)
	case "serve":
		err = serveCmd(args[1:], stderr)
	default:
		usage(stderr)
		return 2
	}
	var code exitError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		return 2
	case errors.As(err, &code):
		return int(code)
	default:
		fmt.Fprintf(stderr, "dynform: %v\n", err)
		return 1
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "dynform CLI\n\nUsage:\n  dynform validate file...\n  dynform check -config form.json [-data value.json]\n  dynform schema -config form.json [-o out.json]\n  dynform serve [-addr :8080] [-origin pattern] file...\n\nConfig files ending in .yaml or .yml are read as YAML.")
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// readConfig reads a config file and selects the driver from its extension.
// It returns the raw text so parse problems surface as config errors.
func readConfig(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dynform.SetConfigDriver(dynyaml.Driver())
	default:
		dynform.UseDefaultConfigDriver()
	}
	return data, nil
}

func formName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func validateCmd(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("validate", stderr)
	asJSON := fs.Bool("json", false, "print errors as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}
	failed := false
	report := map[string]dynform.ConfigErrors{}
	for _, path := range fs.Args() {
		data, err := readConfig(path)
		if err != nil {
			return err
		}
		res := dynform.ValidateConfig(data)
		if res.OK() {
			if !*asJSON {
				fmt.Fprintf(stdout, "%s: ok\n", path)
			}
			continue
		}
		failed = true
		report[path] = res.Errors
		if !*asJSON {
			for _, e := range res.Errors {
				fmt.Fprintf(stdout, "%s: %s\n", path, e)
			}
		}
	}
	if *asJSON {
		if err := printJSON(stdout, report); err != nil {
			return err
		}
	}
	if failed {
		return exitError(1)
	}
	return nil
}

func checkCmd(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("check", stderr)
	cfgPath := fs.String("config", "", "form config file")
	dataPath := fs.String("data", "", "JSON value to patch into the form (default: config values only)")
	lang := fs.String("lang", "", "fallback message language (en, ja)")
	logLevel := fs.String("log-level", "warn", "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *cfgPath == "" {
		fs.Usage()
		return errUsage
	}
	log := newLogger(*logLevel, "auto", stderr)
	ctx := ctxlog.WithLogger(context.Background(), log)

	data, err := readConfig(*cfgPath)
	if err != nil {
		return err
	}
	var opts []dynform.Option
	if *lang != "" {
		opts = append(opts, dynform.WithTranslator(i18n.Dictionary(*lang)))
	}
	f, err := dynform.New(ctx, data, opts...)
	if err != nil {
		return err
	}
	defer f.Close()

	if *dataPath != "" {
		raw, err := os.ReadFile(*dataPath)
		if err != nil {
			return err
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%s: %w", *dataPath, err)
		}
		if err := f.Patch(ctx, v); err != nil {
			return err
		}
	}
	out := map[string]any{
		"valid": f.Valid(),
		"value": f.Value(),
	}
	if ce := f.ConfigErrors(); len(ce) > 0 {
		out["configErrors"] = ce
	}
	if errs := f.Errors(); errs != nil {
		out["errors"] = errs
		out["messages"] = f.Messages()
	}
	if err := printJSON(stdout, out); err != nil {
		return err
	}
	if !f.Valid() {
		return exitError(1)
	}
	return nil
}

func schemaCmd(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("schema", stderr)
	cfgPath := fs.String("config", "", "form config file")
	outPath := fs.String("o", "", "output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *cfgPath == "" {
		fs.Usage()
		return errUsage
	}
	data, err := readConfig(*cfgPath)
	if err != nil {
		return err
	}
	res := dynform.ValidateConfig(data)
	for _, e := range res.Errors {
		fmt.Fprintf(stderr, "%s: %s\n", *cfgPath, e)
	}
	s := jsonschema.FromConfig(res.Configs)
	if *outPath == "" {
		return printJSON(stdout, s)
	}
	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	fh, err := os.Create(*outPath)
	if err != nil {
		return err
	}
	if err := printJSON(fh, s); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

func serveCmd(args []string, stderr io.Writer) error {
	fs := newFlagSet("serve", stderr)
	addr := fs.String("addr", ":8080", "listen address")
	origin := fs.String("origin", "", "comma-separated WebSocket origin patterns")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "auto", "log format (auto, text, json)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}
	log := newLogger(*logLevel, *logFormat, stderr)

	reg := server.NewRegistry()
	for _, path := range fs.Args() {
		data, err := readConfig(path)
		if err != nil {
			return err
		}
		name := formName(path)
		for _, e := range reg.Add(name, data) {
			log.Warn("config error", "form", name, "code", e.Code, "path", e.Path, "reason", e.Reason)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := server.Config{Addr: *addr, Registry: reg, Logger: log}
	if *origin != "" {
		cfg.OriginPatterns = strings.Split(*origin, ",")
	}
	return server.New(cfg).Run(ctx)
}
