// Command dispatcherctl is a thin operational CLI around package redisq:
// register or remove a queue, inspect its live counters, and run a demo
// submission. A real job carries a Go closure task body and typed
// bindings, which don't survive a command-line invocation — the submit
// subcommand below works around that by running a fixed
// sum-of-incremented-integers job against an in-process worker, to give the wire protocol a runnable
// demonstration without requiring a separate worker binary.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cloudcello/redisq"
	"github.com/cloudcello/redisq/internal/testworker"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dispatcherctl",
	Short: "Operate redisq queues: register, remove, inspect",
	Long: `dispatcherctl manages the Redis-backed queues that package redisq
dispatches jobs through. It is a companion to the library, not a replacement
for it: starting a worker or submitting a job still requires linking redisq
into a Go process that owns the task body.`,
	Version: Version,
}

// Version is set via -ldflags at build time; "dev" is the fallback used by
// local builds.
var Version = "dev"

func init() {
	rootCmd.PersistentFlags().String("addr", "127.0.0.1:6379", "backing store address")
	rootCmd.PersistentFlags().String("password", "", "backing store password")
	rootCmd.PersistentFlags().Int("db", 0, "backing store logical database index")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	submitCmd.Flags().Int("chunk-size", 4, "task indices per pushed chunk")

	rootCmd.AddCommand(registerQueueCmd)
	rootCmd.AddCommand(removeQueueCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(submitCmd)
}

func openRegistry(cmd *cobra.Command, queue string) (*redisq.Registry, error) {
	addr, _ := cmd.Flags().GetString("addr")
	password, _ := cmd.Flags().GetString("password")
	db, _ := cmd.Flags().GetInt("db")
	levelStr, _ := cmd.Flags().GetString("log-level")

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", levelStr, err)
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	reg, err := redisq.NewRegistry(ctx, redisq.WithQueue(queue), redisq.WithStoreAddr(addr, password, db))
	if err != nil {
		return nil, err
	}
	return reg.WithLogger(log), nil
}

var registerQueueCmd = &cobra.Command{
	Use:   "register-queue <queue>",
	Short: "Register a queue, creating it if it does not already exist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry(cmd, args[0])
		if err != nil {
			return err
		}
		defer reg.Close()
		fmt.Printf("queue %q registered\n", reg.Queue())
		return nil
	},
}

var removeQueueCmd = &cobra.Command{
	Use:   "remove-queue <queue>",
	Short: "Tear down a queue and all of its job keys",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry(cmd, args[0])
		if err != nil {
			return err
		}
		defer reg.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if err := reg.RemoveQueue(ctx); err != nil {
			return err
		}
		fmt.Printf("queue %q removed\n", reg.Queue())
		return nil
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <queue> <n>...",
	Short: "Submit a demo job that increments the given integers on a worker and sums them",
	Long: `submit drives one job end to end against the named queue: it
encodes each integer argument as a task, pushes them through the normal
chunking/collection path, and sums the results. The task body itself (add
one to each integer) runs on an in-process worker started alongside the
submission, standing in for an external worker process.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chunkSize, _ := cmd.Flags().GetInt("chunk-size")
		reg, err := openRegistry(cmd, args[0])
		if err != nil {
			return err
		}
		defer reg.Close()
		if err := reg.SetChunkSize(chunkSize); err != nil {
			return err
		}

		nums := make([]int, 0, len(args)-1)
		for _, a := range args[1:] {
			n, err := strconv.Atoi(a)
			if err != nil {
				return fmt.Errorf("invalid integer %q: %w", a, err)
			}
			nums = append(nums, n)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		increment := testworker.TaskFunc[int](func(_ context.Context, _ []byte, _ map[string]any, raw []byte) (int, error) {
			n, err := strconv.Atoi(string(raw))
			if err != nil {
				return 0, err
			}
			return n + 1, nil
		})
		pool := testworker.NewPool[int](reg.Store(), reg.Queue(), increment)
		go pool.Run(ctx, time.Second)

		sum := func(acc int, value any, _ int) (int, error) { return acc + value.(int), nil }
		producer := redisq.NewSliceProducer(nums, func(n int) ([]byte, error) { return []byte(strconv.Itoa(n)), nil })
		job := &redisq.Job[int]{
			Producer:  producer,
			Combine:   sum,
			Init:      0,
			ErrorMode: redisq.ErrorModeStop,
		}

		total, err := redisq.Submit(ctx, reg, job)
		if err != nil {
			return err
		}
		fmt.Printf("sum of %v incremented by the worker: %d\n", nums, total)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <queue> <item>",
	Short: "Query a queue property (name, version, workers)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry(cmd, args[0])
		if err != nil {
			return err
		}
		defer reg.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		v, err := reg.Info(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	},
}
