// propdump decodes a bag of dynamic properties and prints it as YAML.
//
// The input is read from a file (or stdin) in RON, JSON or YAML, or fetched
// from a DynamoDB table:
//
//	propdump -input scene.ron
//	propdump -format json < scene.json
//	propdump -table props -pk SCENE#1 -sk TRANSFORM
//
// Settings may also come from the environment or a `.env` file, flags win:
// PROPDUMP_FORMAT, AWS_REGION, AWS_ACCESS_KEY, AWS_SECRET_KEY, AWS_DDB_TABLE.
//
// Only the built-in types (primitives, UUID, DateTime, Duration, Email) are
// registered.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/pasqal-io/dynprops/dynamic"
	"github.com/pasqal-io/dynprops/property"
	"github.com/pasqal-io/dynprops/registry"
	"github.com/pasqal-io/dynprops/source/dynamodb"
)

// Replaced in tests.
var newItemClient = func(ctx context.Context, cfg dynamodb.Config) (dynamodb.GetItemAPI, error) {
	return dynamodb.NewClient(ctx, cfg) //nolint:wrapcheck
}

type options struct {
	format  string
	input   string
	single  bool
	envFile string
	version bool
	ddb     dynamodb.Config
	key     dynamodb.Key
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) int {
	opts, err := parseOptions(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		slog.Error("invalid arguments", "error", err)
		return 1
	}
	if opts.version {
		fmt.Fprintf(stdout, "propdump version %s\n", Version)
		fmt.Fprintf(stdout, "Git commit: %s\n", GitCommit)
		fmt.Fprintf(stdout, "Build date: %s\n", BuildDate)
		fmt.Fprintf(stdout, "Go version: %s\n", runtime.Version())
		return 0
	}

	reg := registry.New()
	registry.RegisterDefaults(reg)

	var out []byte
	if opts.ddb.Table != "" && opts.key.Partition != "" {
		out, err = fromDynamoDB(ctx, opts, reg)
	} else {
		out, err = fromInput(opts, stdin, reg)
	}
	if err != nil {
		slog.Error("cannot decode properties", "error", err)
		return 1
	}
	if _, err = stdout.Write(out); err != nil {
		slog.Error("cannot write output", "error", err)
		return 1
	}
	return 0
}

func parseOptions(args []string) (options, error) {
	var opts options
	flags := flag.NewFlagSet("propdump", flag.ContinueOnError)
	flags.StringVar(&opts.format, "format", "", "input format: ron, json or yaml (default ron, or $PROPDUMP_FORMAT)")
	flags.StringVar(&opts.input, "input", "", "input file (default stdin)")
	flags.BoolVar(&opts.single, "single", false, "decode a single property rather than a bag")
	flags.StringVar(&opts.envFile, "env", "", "file to load the environment from (default .env, if present)")
	flags.BoolVar(&opts.version, "version", false, "show version information")
	flags.StringVar(&opts.ddb.Table, "table", "", "DynamoDB table to read from (default $AWS_DDB_TABLE)")
	flags.StringVar(&opts.ddb.Endpoint, "endpoint", "", "DynamoDB endpoint override")
	flags.StringVar(&opts.key.Partition, "pk", "", "partition key of the item to read")
	flags.StringVar(&opts.key.Sort, "sk", "", "sort key of the item to read")
	if err := flags.Parse(args); err != nil {
		return opts, err //nolint:wrapcheck
	}
	if flags.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments %v", flags.Args())
	}

	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil {
			return opts, fmt.Errorf("cannot load %s: %w", opts.envFile, err)
		}
	} else if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, proceeding with environment variables")
	}

	opts.format = firstOf(opts.format, os.Getenv("PROPDUMP_FORMAT"), string(dynamic.FormatRON))
	opts.ddb.Table = firstOf(opts.ddb.Table, os.Getenv("AWS_DDB_TABLE"))
	opts.ddb.Region = os.Getenv("AWS_REGION")
	opts.ddb.AccessKey = os.Getenv("AWS_ACCESS_KEY")
	opts.ddb.SecretKey = os.Getenv("AWS_SECRET_KEY")
	return opts, nil
}

func firstOf(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func fromInput(opts options, stdin io.Reader, reg *registry.Registry) ([]byte, error) {
	format, err := dynamic.ParseFormat(opts.format)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	var raw []byte
	if opts.input == "" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(opts.input)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read input: %w", err)
	}

	if opts.single {
		p, err := dynamic.DeserializeProperty(format, raw, reg)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		return renderProperty(p)
	}
	bag, err := dynamic.DeserializeDynamicPropertiesWith(format, raw, reg)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return render(bag)
}

func fromDynamoDB(ctx context.Context, opts options, reg *registry.Registry) ([]byte, error) {
	client, err := newItemClient(ctx, opts.ddb)
	if err != nil {
		return nil, err
	}
	source, err := dynamodb.NewSource(client, opts.ddb)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	if opts.single {
		var p property.Property
		if p, err = source.LoadProperty(ctx, opts.key, reg); err != nil {
			return nil, err //nolint:wrapcheck
		}
		return renderProperty(p)
	}
	bag, err := source.LoadProperties(ctx, opts.key, reg)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return render(bag)
}
