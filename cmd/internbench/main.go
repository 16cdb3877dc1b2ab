// Command internbench drives interntab.Engine under concurrent load and
// reports throughput and peak RSS.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"github.com/peterh/liner"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/calvinalkan/interntab"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "internbench:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	flags := pflag.NewFlagSet("internbench", pflag.ContinueOnError)
	workers := flags.IntP("workers", "w", cfg.Workers, "number of concurrent inserting goroutines")
	values := flags.IntP("values", "n", cfg.Values, "number of distinct int values to intern")
	capacity := flags.IntP("capacity", "c", cfg.Capacity, "initial capacity hint")
	reportPath := flags.StringP("report", "o", cfg.ReportPath, "path to write the JSON report")
	repl := flags.Bool("repl", false, "drop into an interactive REPL instead of running the benchmark")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *repl {
		return runREPL()
	}
	return runBenchmark(*workers, *values, *capacity, *reportPath)
}

type report struct {
	Workers      int     `json:"workers"`
	Values       int     `json:"values"`
	Capacity     int     `json:"capacity"`
	Duration     string  `json:"duration"`
	ValuesPerSec float64 `json:"values_per_sec"`
	PeakRSSKB    int64   `json:"peak_rss_kb"`
}

func runBenchmark(workers, values, capacity int, reportPath string) error {
	if workers < 1 {
		workers = 1
	}

	e := interntab.WithCapacity[int](capacity, func(v int) uint64 { return uint64(v) })

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := id; i < values; i += workers {
				v := i
				e.Intern(uint64(i), func(x int) bool { return x == v }, func() int { return v })
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	for i := 0; i < values; i++ {
		if _, found := e.GetFromHash(uint64(i), func(x int) bool { return x == i }); !found {
			return fmt.Errorf("value %d missing after benchmark run", i)
		}
	}

	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return fmt.Errorf("getrusage: %w", err)
	}

	rep := report{
		Workers:      workers,
		Values:       values,
		Capacity:     capacity,
		Duration:     elapsed.String(),
		ValuesPerSec: float64(values) / elapsed.Seconds(),
		PeakRSSKB:    ru.Maxrss,
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(reportPath, strings.NewReader(string(data))); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	fmt.Fprintf(os.Stderr, "interned %d values with %d workers in %s (%.0f/s), report written to %s\n",
		values, workers, elapsed, rep.ValuesPerSec, reportPath)
	return nil
}

// runREPL lets an operator intern strings interactively and immediately
// look them back up, the same shape cmd/sloty's REPL gives its cache.
func runREPL() error {
	e := interntab.New[string](fnv64a)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("internbench REPL: type a string to intern it, or 'get <string>' to look it up. Ctrl-D to quit.")
	for {
		input, err := line.Prompt("> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return err
		}
		line.AppendHistory(input)

		if rest, ok := strings.CutPrefix(input, "get "); ok {
			h := fnv64a(rest)
			v, found := e.GetFromHash(h, func(s string) bool { return s == rest })
			if !found {
				fmt.Println("(not interned)")
				continue
			}
			fmt.Printf("%q (hash %s)\n", v, strconv.FormatUint(h, 16))
			continue
		}

		h := fnv64a(input)
		canon := e.Intern(h, func(s string) bool { return s == input }, func() string { return input })
		fmt.Printf("interned %q (hash %s)\n", canon, strconv.FormatUint(h, 16))
	}
}

func fnv64a(s string) uint64 {
	var h uint64 = 14695981039346656037
	for _, c := range []byte(s) {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return h
}
