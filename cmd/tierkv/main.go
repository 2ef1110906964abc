// tierkv is the interactive driver for the tierkv storage engine.
//
// Usage:
//
//	tierkv [flags]
//
// Commands are read from stdin, one per line, or from an interactive
// prompt when stdin is a terminal:
//
//	p <key> <val>    put a key-value pair
//	g <key>          get a key; prints the value, or nothing if absent
//	r <lo> <hi>      range over [lo, hi); prints space-joined key:val pairs
//	d <key>          delete a key
//	l <path>         bulk load a binary dump file
//	s                print tree statistics
//	q                quit
//
// Flags:
//
//	--dir             data directory (default: a fresh temp directory)
//	--buffer          write buffer capacity in entries
//	--depth           number of levels
//	--fanout          level size ratio and per-level run capacity
//	--workers         search worker threads
//	--bits-per-entry  Bloom filter bits per entry
//	--verbose         log engine activity and report latencies
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/aalhour/tierkv"
	"github.com/aalhour/tierkv/internal/logging"
)

var (
	dir          = flag.String("dir", "", "data directory (default: fresh temp dir)")
	bufferSize   = flag.Int("buffer", tierkv.DefaultBufferEntries, "write buffer capacity in entries")
	depth        = flag.Int("depth", tierkv.DefaultDepth, "number of levels")
	fanout       = flag.Int("fanout", tierkv.DefaultFanout, "level size ratio")
	workers      = flag.Int("workers", tierkv.DefaultWorkers, "search worker threads")
	bitsPerEntry = flag.Float64("bits-per-entry", tierkv.DefaultBitsPerEntry, "Bloom filter bits per entry")
	verbose      = flag.Bool("verbose", false, "log engine activity and report latencies")
)

var errRed = color.New(color.FgRed)

// die reports a fatal error on stderr and exits.
func die(format string, args ...any) {
	_, _ = errRed.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	flag.Parse()

	dataDir := *dir
	if dataDir == "" {
		tmp, err := os.MkdirTemp("", "tierkv-")
		if err != nil {
			die("%v", err)
		}
		dataDir = tmp
	}

	logLevel := logging.LevelWarn
	if *verbose {
		logLevel = logging.LevelDebug
	}

	db, err := tierkv.Open(dataDir, &tierkv.Options{
		BufferEntries: *bufferSize,
		Depth:         *depth,
		Fanout:        *fanout,
		Workers:       *workers,
		BitsPerEntry:  *bitsPerEntry,
		Logger:        logging.NewDefaultLogger(logLevel),
	})
	if err != nil {
		die("%v", err)
	}
	defer db.Close()

	d := &driver{db: db, out: bufio.NewWriter(os.Stdout), verbose: *verbose}
	defer d.out.Flush()

	if isatty.IsTerminal(os.Stdin.Fd()) {
		d.repl()
	} else {
		d.pipe(os.Stdin)
	}
}

// driver executes the command language against an open engine.
type driver struct {
	db      *tierkv.DB
	out     *bufio.Writer
	verbose bool
}

// repl runs the interactive prompt with line editing and history.
func (d *driver) repl() {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	histPath := filepath.Join(os.TempDir(), ".tierkv_history")
	if f, err := os.Open(histPath); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = line.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		input, err := line.Prompt("tierkv> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			return
		}
		if err != nil {
			die("%v", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		if !d.exec(input) {
			return
		}
		d.out.Flush()
	}
}

// pipe runs the command stream from r to completion.
func (d *driver) pipe(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		input := strings.TrimSpace(sc.Text())
		if input == "" {
			continue
		}
		if !d.exec(input) {
			return
		}
	}
	if err := sc.Err(); err != nil {
		die("%v", err)
	}
}

// exec runs one command line. It returns false when the driver should
// exit.
func (d *driver) exec(input string) bool {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "p":
		if len(args) != 2 {
			d.usage("p <key> <val>")
			return true
		}
		k, ok1 := d.parseNum(args[0])
		v, ok2 := d.parseNum(args[1])
		if !ok1 || !ok2 {
			return true
		}
		d.check(d.db.Put(tierkv.Key(k), tierkv.Value(v)))

	case "g":
		if len(args) != 1 {
			d.usage("g <key>")
			return true
		}
		k, ok := d.parseNum(args[0])
		if !ok {
			return true
		}
		val, found, err := d.db.Get(tierkv.Key(k))
		d.check(err)
		if found {
			fmt.Fprintf(d.out, "%d", val)
		}
		fmt.Fprintln(d.out)

	case "r":
		if len(args) != 2 {
			d.usage("r <lo> <hi>")
			return true
		}
		lo, ok1 := d.parseNum(args[0])
		hi, ok2 := d.parseNum(args[1])
		if !ok1 || !ok2 {
			return true
		}
		entries, elapsed, err := d.db.RangeTimed(tierkv.Key(lo), tierkv.Key(hi))
		d.check(err)
		for i, e := range entries {
			if i > 0 {
				fmt.Fprint(d.out, " ")
			}
			fmt.Fprintf(d.out, "%d:%d", e.Key, e.Val)
		}
		fmt.Fprintln(d.out)
		if d.verbose {
			fmt.Fprintf(os.Stderr, "range latency: %v\n", elapsed)
		}

	case "d":
		if len(args) != 1 {
			d.usage("d <key>")
			return true
		}
		k, ok := d.parseNum(args[0])
		if !ok {
			return true
		}
		d.check(d.db.Delete(tierkv.Key(k)))

	case "l":
		if len(args) != 1 {
			d.usage("l <path>")
			return true
		}
		elapsed, err := d.db.LoadTimed(args[0])
		d.check(err)
		if d.verbose {
			fmt.Fprintf(os.Stderr, "load latency: %v\n", elapsed)
		}

	case "s":
		stats, err := d.db.Stats()
		d.check(err)
		fmt.Fprint(d.out, stats)
		if d.verbose {
			fmt.Fprintln(os.Stderr, stats.DiskUsage())
		}

	case "q", "quit", "exit":
		return false

	default:
		d.usage("commands: p g r d l s q")
	}
	return true
}

// parseNum parses a 32-bit signed integer argument.
func (d *driver) parseNum(s string) (int32, bool) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		d.usage(fmt.Sprintf("bad number %q", s))
		return 0, false
	}
	return int32(n), true
}

// usage reports a malformed command without stopping the driver.
func (d *driver) usage(msg string) {
	fmt.Fprintln(os.Stderr, msg)
}

// check aborts the process on a fatal engine error.
func (d *driver) check(err error) {
	if err != nil {
		d.out.Flush()
		die("%v", err)
	}
}
