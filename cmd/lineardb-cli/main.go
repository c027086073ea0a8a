// lineardb-cli is a REPL driver for lineardb data files.
//
// Usage:
//
//	lineardb-cli --path <file> --key-size N --value-size N [opts]
//	lineardb-cli --config <path-to-jwcc-config>
//
// Flags:
//
//	--path           Data file path (required unless --config is given)
//	--key-size       Fixed key size in bytes
//	--value-size     Fixed value size in bytes
//	--start-buckets  Initial primary table size for a new file (default 2)
//	--max-load       Load factor that triggers a split (default 0.5)
//	--config         Load the above from a JWCC config file instead
//
// Commands (in REPL):
//
//	put <hex-key> <hex-value>   Insert or overwrite a record
//	get <hex-key>               Look up a record
//	iterate                     Print every stored (key, value) pair
//	size                        Print the current table size (size_B)
//	records                     Print the number of records ever put
//	overflow                    Print the deepest overflow chain observed
//	help                        Show this help
//	exit / quit                 Exit
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/lineardb3/pkg/lineardb"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "lineardb-cli:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("lineardb-cli", flag.ContinueOnError)
	fs.SetInterspersed(false)

	path := fs.StringP("path", "p", "", "data file path")
	keySize := fs.Uint32P("key-size", "k", 0, "fixed key size in bytes")
	valueSize := fs.Uint32P("value-size", "v", 0, "fixed value size in bytes")
	startBuckets := fs.Uint64P("start-buckets", "b", 2, "initial primary table size for a new file")
	maxLoad := fs.Float64P("max-load", "l", 0, "load factor that triggers a split (0 = package default)")
	configPath := fs.StringP("config", "c", "", "JWCC config file to load options from")

	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := lineardb.Options{
		Path:         *path,
		KeySize:      *keySize,
		ValueSize:    *valueSize,
		StartBuckets: *startBuckets,
		MaxLoad:      *maxLoad,
	}

	if *configPath != "" {
		cfg, err := lineardb.LoadConfig(*configPath)
		if err != nil {
			return err
		}

		opts = cfg.Options()
	}

	store, err := lineardb.Open(opts)
	if err != nil {
		return fmt.Errorf("open %q: %w", opts.Path, err)
	}
	defer store.Close()

	if *configPath != "" {
		if err := resaveConfig(*configPath, opts); err != nil {
			fmt.Fprintln(out, "warning: could not resave config:", err)
		}
	}

	return repl(store, out)
}

// resaveConfig writes back a canonical copy of the resolved options, durably
// and atomically, using the same whole-file atomic-write dependency the
// teacher uses for its own config saves.
func resaveConfig(path string, opts lineardb.Options) error {
	cfg := lineardb.Config{
		Path:         opts.Path,
		KeySize:      opts.KeySize,
		ValueSize:    opts.ValueSize,
		StartBuckets: opts.StartBuckets,
		MaxLoad:      opts.MaxLoad,
	}

	data := fmt.Appendf(nil, "{\n  \"path\": %q,\n  \"key_size\": %d,\n  \"value_size\": %d,\n  \"start_buckets\": %d,\n  \"max_load\": %g\n}\n",
		cfg.Path, cfg.KeySize, cfg.ValueSize, cfg.StartBuckets, cfg.MaxLoad)

	return atomic.WriteFile(path, strings.NewReader(string(data)))
}

func repl(store *lineardb.Store, out io.Writer) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt("lineardb> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		line.AppendHistory(input)

		fields := strings.Fields(input)
		if len(fields) == 0 {
			continue
		}

		if err := dispatch(store, out, fields); err != nil {
			fmt.Fprintln(out, "error:", err)
		}
	}
}

func dispatch(store *lineardb.Store, out io.Writer, fields []string) error {
	switch fields[0] {
	case "put":
		if len(fields) != 3 {
			return errors.New("usage: put <hex-key> <hex-value>")
		}

		key, err := hex.DecodeString(fields[1])
		if err != nil {
			return fmt.Errorf("key: %w", err)
		}

		value, err := hex.DecodeString(fields[2])
		if err != nil {
			return fmt.Errorf("value: %w", err)
		}

		if err := store.Put(key, value); err != nil {
			return err
		}

		fmt.Fprintln(out, "ok")

	case "get":
		if len(fields) != 2 {
			return errors.New("usage: get <hex-key>")
		}

		key, err := hex.DecodeString(fields[1])
		if err != nil {
			return fmt.Errorf("key: %w", err)
		}

		value, err := store.Get(key)
		if errors.Is(err, lineardb.ErrNotFound) {
			fmt.Fprintln(out, "not found")
			return nil
		}

		if err != nil {
			return err
		}

		fmt.Fprintln(out, hex.EncodeToString(value))

	case "iterate":
		it := store.Iterator()

		for {
			key, value, ok, err := it.Next()
			if err != nil {
				return err
			}

			if !ok {
				break
			}

			fmt.Fprintf(out, "%s -> %s\n", hex.EncodeToString(key), hex.EncodeToString(value))
		}

	case "size":
		fmt.Fprintln(out, store.CurrentSize())

	case "records":
		fmt.Fprintln(out, store.NumRecords())

	case "overflow":
		fmt.Fprintln(out, store.MaxOverflowDepth())

	case "help":
		fmt.Fprintln(out, "commands: put <hex-key> <hex-value>, get <hex-key>, iterate, size, records, overflow, help, exit")

	case "exit", "quit":
		os.Exit(0)

	default:
		return fmt.Errorf("unknown command %q (try 'help')", fields[0])
	}

	return nil
}
