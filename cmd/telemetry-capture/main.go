// Command telemetry-capture runs a standalone graphics-present
// telemetry capture session and periodically prints drained scores to
// stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	telemetry "github.com/fpsinspector/telemetry"
	"github.com/fpsinspector/telemetry/internal/logging"
)

func main() {
	var (
		targetPID  = flag.Uint("pid", 0, "Target process ID (0 = all processes)")
		bufferSize = flag.Int("buffer-size", 4096, "EventScores ring buffer capacity")
		duration   = flag.Duration("duration", 0, "Stop automatically after this long (0 = run until signaled)")
		verbose    = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := telemetry.Start(uint32(*targetPID), *bufferSize); err != nil {
		logger.Error("failed to start capture", "error", err)
		os.Exit(1)
	}
	logger.Info("capture started", "target_pid", *targetPID, "buffer_size", *bufferSize)

	fmt.Printf("Capturing present telemetry (pid=%d, buffer=%d)...\n", *targetPID, *bufferSize)
	fmt.Printf("Press Ctrl+C to stop...\n")
	fmt.Printf("Send SIGUSR1 (kill -USR1 %d) to dump goroutine stacks\n", os.Getpid())

	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			logger.Info("=== GOROUTINE STACK TRACE DUMP ===")
			buf := make([]byte, 1024*1024)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "\n=== FULL GOROUTINE STACK DUMP ===\n%s\n=== END STACK DUMP ===\n\n", buf[:n])

			filename := fmt.Sprintf("telemetry-capture-stacks-%d.txt", time.Now().Unix())
			if f, err := os.Create(filename); err == nil {
				fmt.Fprintf(f, "Goroutine stack dump at %s\nProcess ID: %d\n\n", time.Now().Format(time.RFC3339), os.Getpid())
				f.Write(buf[:n])
				fmt.Fprintf(f, "\n\n=== GOROUTINE PROFILE ===\n")
				pprof.Lookup("goroutine").WriteTo(f, 2)
				f.Close()
				logger.Info("stack trace written to file", "file", filename)
			}
		}
	}()

	printTicker := time.NewTicker(time.Second)
	defer printTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var durationCh <-chan time.Time
	if *duration > 0 {
		durationCh = time.After(*duration)
	}

loop:
	for {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal")
			break loop
		case <-durationCh:
			logger.Info("duration elapsed, stopping")
			break loop
		case <-printTicker.C:
			printDrained(logger)
		}
	}

	cancel()

	cleanupDone := make(chan struct{})
	go func() {
		if err := telemetry.Stop(); err != nil {
			logger.Error("error stopping capture", "error", err)
		} else {
			logger.Info("capture stopped successfully")
		}
		close(cleanupDone)
	}()

	select {
	case <-cleanupDone:
	case <-time.After(5 * time.Second):
		logger.Info("cleanup timeout, forcing exit")
	}

	printDrained(logger)
	os.Exit(0)
}

func printDrained(logger *logging.Logger) {
	ts, scores, err := telemetry.Drain(1024)
	if err != nil {
		logger.Error("drain failed", "error", err)
		return
	}
	for i, s := range scores {
		fmt.Printf("t=%.3f fps=%.2f flip=%.2f delta_ready=%.3fms delta_displayed=%.3fms time_taken=%.3fms\n",
			ts[i], s.FPS, s.Flip, s.DeltaReady, s.DeltaDisplayed, s.TimeTaken)
	}
}
