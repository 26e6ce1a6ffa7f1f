// Soak test runner for the TMMBN builder.
//
// This tool builds random notifications, packed with receiver reports into
// MTU sized datagrams, and decodes every datagram it produces. It watches for
// corrupt output, packets split across datagrams and memory growth over
// extended periods (up to 24 hours or more).
//
// Usage:
//
//	go run ./cmd/soak -duration 24h
//	go run ./cmd/soak -duration 1h -mtu 576
//
// Exposes pprof endpoint at :6060 for live profiling:
//
//	curl http://localhost:6060/debug/pprof/heap > heap.pprof
//	go tool pprof heap.pprof
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	_ "net/http/pprof" // Enable pprof endpoints
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/thesyncim/tmmbn/pkg/tmmbn"
)

const (
	buildIntervalMs       = 20 // 50 compounds per second
	statusIntervalMinutes = 5

	// minMTU fits a full notification.
	minMTU = 12 + 8*tmmbn.MaxEntries
)

// SoakResult contains the results of a soak test run.
type SoakResult struct {
	Duration        time.Duration
	TotalCompounds  int
	TotalDatagrams  int
	TotalEntries    int
	PeakHeapMB      float64
	TotalGCCycles   uint32
	OversizedFrames int
	DecodeErrors    int
	Status          string
}

func main() {
	duration := flag.Duration("duration", 24*time.Hour, "Test duration (e.g., 1h, 24h)")
	pprofPort := flag.Int("pprof-port", 6060, "Port for pprof HTTP server")
	mtu := flag.Int("mtu", 1200, "Datagram size the compounds are built into")
	flag.Parse()

	if *mtu < minMTU || *mtu > tmmbn.MaxPacketSize {
		fmt.Printf("mtu must be between %d and %d\n", minMTU, tmmbn.MaxPacketSize)
		os.Exit(2)
	}

	fmt.Printf("TMMBN Soak Test Runner\n")
	fmt.Printf("======================\n")
	fmt.Printf("Duration: %v\n", *duration)
	fmt.Printf("MTU:      %d\n", *mtu)
	fmt.Printf("Pprof:    http://localhost:%d/debug/pprof/\n", *pprofPort)
	fmt.Printf("\n")

	go func() {
		addr := fmt.Sprintf(":%d", *pprofPort)
		if err := http.ListenAndServe(addr, nil); err != nil { //nolint:gosec // debug endpoint
			fmt.Printf("Warning: pprof server failed: %v\n", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived %v, shutting down gracefully...\n", sig)
		cancel()
	}()

	result := runSoakTest(ctx, *duration, *mtu)

	printSummary(result)

	if result.Status == "PASS" {
		os.Exit(0)
	}
	os.Exit(1)
}

func runSoakTest(ctx context.Context, duration time.Duration, mtu int) SoakResult {
	result := SoakResult{
		Status: "PASS",
	}

	var memStats runtime.MemStats
	buf := make([]byte, mtu)
	v := &verifier{}

	startTime := time.Now()
	lastStatusTime := startTime
	statusInterval := time.Duration(statusIntervalMinutes) * time.Minute

	ticker := time.NewTicker(time.Duration(buildIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	fmt.Printf("[%s] Starting soak test...\n", formatDuration(time.Duration(0)))

	for {
		select {
		case <-ctx.Done():
			result.Duration = time.Since(startTime)
			return result

		case now := <-ticker.C:
			elapsed := now.Sub(startTime)
			if elapsed >= duration {
				result.Duration = elapsed
				return result
			}

			compound, expected := randomCompound()
			v.reset(expected)

			err := tmmbn.BuildInto(compound, buf, func(datagram []byte) {
				result.TotalDatagrams++
				if len(datagram) > mtu {
					result.OversizedFrames++
				}
				if err := v.verify(datagram); err != nil {
					fmt.Printf("[%s] ERROR: %v\n", formatDuration(elapsed), err)
					result.DecodeErrors++
				}
			})
			if err != nil {
				fmt.Printf("[%s] ERROR: build failed: %v\n", formatDuration(elapsed), err)
				result.DecodeErrors++
			}
			if err := v.done(); err != nil {
				fmt.Printf("[%s] ERROR: %v\n", formatDuration(elapsed), err)
				result.DecodeErrors++
			}

			result.TotalCompounds++
			for _, e := range expected {
				result.TotalEntries += len(e)
			}
			if result.DecodeErrors > 0 || result.OversizedFrames > 0 {
				result.Status = "FAIL"
			}

			if now.Sub(lastStatusTime) >= statusInterval {
				lastStatusTime = now
				runtime.ReadMemStats(&memStats)

				heapMB := float64(memStats.HeapAlloc) / (1024 * 1024)
				if heapMB > result.PeakHeapMB {
					result.PeakHeapMB = heapMB
				}
				result.TotalGCCycles = memStats.NumGC

				fmt.Printf("[%s] Compounds: %d, Datagrams: %d, Entries: %d, HeapAlloc: %.2f MB, NumGC: %d\n",
					formatDuration(elapsed),
					result.TotalCompounds,
					result.TotalDatagrams,
					result.TotalEntries,
					heapMB,
					memStats.NumGC)

				if heapMB > 100 {
					fmt.Printf("[%s] ERROR: Memory limit exceeded: %.2f MB\n", formatDuration(elapsed), heapMB)
					result.Status = "FAIL"
				}
			}
		}
	}
}

// randomCompound returns a receiver report followed by up to three
// notifications, and the entries each notification carries.
func randomCompound() (*tmmbn.Compound, [][]tmmbn.Entry) {
	c := &tmmbn.Compound{}
	c.Append(newReport(rand.Uint32()))

	var expected [][]tmmbn.Entry
	for range rand.IntN(4) {
		n := tmmbn.NewTMMBN(rand.Uint32())
		for range rand.IntN(tmmbn.MaxEntries + 1) {
			_ = n.AddEntry(rand.Uint32(), rand.Uint32(), uint16(rand.IntN(tmmbn.MaxOverhead+1))) //nolint:gosec // bounded
		}
		c.Append(n)
		expected = append(expected, n.Entries())
	}
	return c, expected
}

func printSummary(result SoakResult) {
	fmt.Printf("\n")
	fmt.Printf("Soak Test Complete\n")
	fmt.Printf("==================\n")
	fmt.Printf("Duration:          %v\n", result.Duration.Round(time.Second))
	fmt.Printf("Total compounds:   %d\n", result.TotalCompounds)
	fmt.Printf("Total datagrams:   %d\n", result.TotalDatagrams)
	fmt.Printf("Total entries:     %d\n", result.TotalEntries)
	fmt.Printf("Peak HeapAlloc:    %.2f MB\n", result.PeakHeapMB)
	fmt.Printf("Total GC cycles:   %d\n", result.TotalGCCycles)
	fmt.Printf("Oversized frames:  %d\n", result.OversizedFrames)
	fmt.Printf("Decode errors:     %d\n", result.DecodeErrors)
	fmt.Printf("Status:            %s\n", result.Status)
	fmt.Printf("\n")

	fmt.Printf("Pass Criteria:\n")
	fmt.Printf("  - No panics:            %s\n", checkMark(true))
	fmt.Printf("  - Datagrams within MTU: %s\n", checkMark(result.OversizedFrames == 0))
	fmt.Printf("  - Peak memory < 100 MB: %s\n", checkMark(result.PeakHeapMB < 100))
	fmt.Printf("  - No decode errors:     %s\n", checkMark(result.DecodeErrors == 0))
}

func formatDuration(d time.Duration) string {
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func checkMark(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}
