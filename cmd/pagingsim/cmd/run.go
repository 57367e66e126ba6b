package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sarchlab/pagingsim/config"
	"github.com/sarchlab/pagingsim/datarecording"
	"github.com/sarchlab/pagingsim/instrumentation/metrics"
	"github.com/sarchlab/pagingsim/kernel"
	"github.com/sarchlab/pagingsim/logging"
	"github.com/sarchlab/pagingsim/mem/vm/tlb"
	"github.com/sarchlab/pagingsim/monitoring"
	"github.com/sarchlab/pagingsim/workload"
)

type runOptions struct {
	configFile   string
	envFiles     []string
	workloadFile string

	ramFrames   uint32
	swapFrames  []uint
	tlbEntries  int
	replacement string
	fit         string

	monitor     bool
	monitorPort int
	openBrowser bool
	hold        bool

	record     bool
	recordPath string
	traceTLB   string

	strict    bool
	keepAlive bool
	dump      bool
	report    bool
}

func init() {
	rootCmd.AddCommand(newRunCommand())
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a workload on a simulated memory subsystem.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runSimulation(ctx, cfg, opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "",
		"YAML configuration file")
	f.StringSliceVar(&opts.envFiles, "env-file", nil,
		"dotenv files to load before reading PAGINGSIM_ variables")
	f.StringVarP(&opts.workloadFile, "workload", "w", "",
		"YAML workload file")
	f.Uint32Var(&opts.ramFrames, "ram", 0, "number of RAM frames")
	f.UintSliceVar(&opts.swapFrames, "swap", nil,
		"number of frames of every swap device")
	f.IntVar(&opts.tlbEntries, "tlb", 0, "number of TLB entries")
	f.StringVar(&opts.replacement, "replacement", "",
		"page replacement policy, fifo or lifo")
	f.StringVar(&opts.fit, "fit", "", "region fit policy, first-fit or best-fit")
	f.BoolVar(&opts.monitor, "monitor", false, "serve the memory state over HTTP")
	f.IntVar(&opts.monitorPort, "monitor-port", 0,
		"port of the monitor, random when unset")
	f.BoolVar(&opts.openBrowser, "open-monitor", false,
		"open the monitor in a browser")
	f.BoolVar(&opts.hold, "hold", false,
		"keep serving the monitor after the run until interrupted")
	f.BoolVar(&opts.record, "record", false, "record paging events to SQLite")
	f.StringVar(&opts.recordPath, "record-path", "",
		"database name of the recorder, without the .sqlite3 suffix")
	f.StringVar(&opts.traceTLB, "trace-tlb", "",
		"write every TLB lookup as a CSV line to this file")
	f.BoolVar(&opts.strict, "strict", false,
		"stop the run at the first failing instruction")
	f.BoolVar(&opts.keepAlive, "keep-alive", false,
		"do not exit the processes after their last instruction")
	f.BoolVar(&opts.dump, "dump", false, "dump the memory state after the run")
	f.BoolVar(&opts.report, "report", false,
		"print how often every event was triggered")

	if err := cmd.MarkFlagRequired("workload"); err != nil {
		panic(err)
	}

	return cmd
}

// config loads the configuration and lets the flags that were set override
// it.
func (o *runOptions) config(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configFile, o.envFiles...)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()

	if f.Changed("ram") {
		cfg.RAMFrames = o.ramFrames
	}

	if f.Changed("swap") {
		cfg.SwapFrames = nil
		for _, n := range o.swapFrames {
			cfg.SwapFrames = append(cfg.SwapFrames, uint32(n))
		}
	}

	if f.Changed("tlb") {
		cfg.TLBEntries = o.tlbEntries
	}

	if f.Changed("replacement") {
		cfg.Replacement = o.replacement
	}

	if f.Changed("fit") {
		cfg.Fit = o.fit
	}

	if o.monitor || f.Changed("monitor-port") || o.openBrowser {
		cfg.Monitor.Enabled = true
	}

	if f.Changed("monitor-port") {
		cfg.Monitor.Port = o.monitorPort
	}

	if o.record || f.Changed("record-path") {
		cfg.Record.Enabled = true
	}

	if f.Changed("record-path") {
		cfg.Record.Path = o.recordPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func runSimulation(
	ctx context.Context,
	cfg *config.Config,
	opts *runOptions,
	out io.Writer,
) error {
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	w, err := workload.Load(opts.workloadFile)
	if err != nil {
		return err
	}

	programs, err := w.Programs()
	if err != nil {
		return err
	}

	k := cfg.KernelBuilder(log).Build("Kernel")

	collector := metrics.NewCollector()
	collector.WatchKernel(k)
	k.AcceptHook(collector)

	counter := metrics.NewPosCountHook(nil)
	k.AcceptHook(counter)

	runner := workload.NewRunner(k).
		WithLogger(log).
		WithStrict(opts.strict).
		WithKeepAlive(opts.keepAlive || opts.dump)

	if cfg.Record.Enabled {
		finish := startRecording(k, cfg.Record.Path, opts, log)
		defer finish()
	}

	if opts.traceTLB != "" {
		traceFile, err := os.Create(opts.traceTLB)
		if err != nil {
			return fmt.Errorf("create TLB trace: %w", err)
		}
		defer traceFile.Close()

		k.TLB().AcceptHook(tlb.NewTracer(traceFile))
	}

	var monitor *monitoring.Monitor
	if cfg.Monitor.Enabled {
		monitor, err = startMonitor(k, cfg, opts, collector, log)
		if err != nil {
			return err
		}
		defer stopMonitor(monitor, log)

		bar := monitor.CreateProgressBar(
			filepath.Base(opts.workloadFile), countInstructions(programs))
		defer monitor.CompleteProgressBar(bar)

		runner.WithProgress(bar)
	}

	start := time.Now()
	results, runErr := runner.Run(ctx, programs)

	if err := printResults(out, results); err != nil {
		return fmt.Errorf("print results: %w", err)
	}

	fmt.Fprintf(out, "\nrun time: %s\n", time.Since(start).Round(time.Microsecond))
	printStats(out, k.Stats())

	if opts.report {
		fmt.Fprintln(out)
		counter.Report(out)
	}

	if opts.dump {
		fmt.Fprintln(out)
		k.Dump(out)
	}

	if runErr == nil && monitor != nil && opts.hold {
		log.Info("run finished, holding the monitor until interrupted")
		<-ctx.Done()
	}

	return runErr
}

func startRecording(
	k *kernel.Kernel,
	path string,
	opts *runOptions,
	log *zap.Logger,
) func() {
	recorder := datarecording.New(path)

	exec := datarecording.NewExecRecorder(recorder)
	exec.Start(
		datarecording.ExecInfo{Property: "Workload", Value: opts.workloadFile},
		datarecording.ExecInfo{Property: "Config", Value: opts.configFile},
	)

	paging := datarecording.NewPagingRecorder(recorder)
	k.AcceptHook(paging)

	return func() {
		exec.End()

		if err := recorder.Close(); err != nil {
			log.Error("closing recorder", zap.Error(err))
			return
		}

		log.Info("recording finished", zap.Uint64("events", paging.Recorded()))
	}
}

func startMonitor(
	k *kernel.Kernel,
	cfg *config.Config,
	opts *runOptions,
	collector *metrics.Collector,
	log *zap.Logger,
) (*monitoring.Monitor, error) {
	monitor := monitoring.NewMonitor().
		WithPortNumber(cfg.Monitor.Port).
		WithMetrics(collector.Handler()).
		WithLogger(log)
	monitor.RegisterKernel(k)

	url, err := monitor.StartServer()
	if err != nil {
		return nil, err
	}

	if opts.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			log.Warn("cannot open browser", zap.String("url", url), zap.Error(err))
		}
	}

	return monitor, nil
}

func stopMonitor(monitor *monitoring.Monitor, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := monitor.StopServer(ctx); err != nil {
		log.Warn("stopping monitor", zap.Error(err))
	}
}

func countInstructions(programs []workload.Program) uint64 {
	n := uint64(0)
	for _, p := range programs {
		n += uint64(len(p.Instructions))
	}

	return n
}

func printResults(out io.Writer, results []workload.ProcessResult) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROCESS\tPID\tEXECUTED\tFAILED\tREADS")

	for _, res := range results {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n",
			res.Name, res.PID, res.Executed, res.Failed, len(res.Reads))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	for _, res := range results {
		for _, r := range res.Reads {
			fmt.Fprintf(out, "%s: read region %d offset %d = %d\n",
				res.Name, r.Region, r.Offset, r.Value)
		}

		for _, err := range res.Errors {
			fmt.Fprintf(out, "%s: %v\n", res.Name, err)
		}
	}

	return nil
}

func printStats(out io.Writer, s kernel.Stats) {
	fmt.Fprintf(out, "RAM: %d/%d frames used\n", s.RAMUsed, s.RAMFrames)

	for i, dev := range s.Swap {
		active := ""
		if i == s.ActiveSwap {
			active = " (active)"
		}

		fmt.Fprintf(out, "%s: %d/%d frames used%s\n",
			dev.Name, dev.Used, dev.Frames, active)
	}

	fmt.Fprintf(out, "resident pages: %d\n", s.Resident)
	fmt.Fprintf(out, "policies: %s replacement, %s\n", s.Replacement, s.Fit)
	fmt.Fprintf(out, "[TLB STATS] %s\n", s.TLB)
}
