package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/SinaHkz/pcmatrix/internal/matrix"
	"github.com/SinaHkz/pcmatrix/internal/render"
	"github.com/SinaHkz/pcmatrix/internal/shutdown"
	"github.com/SinaHkz/pcmatrix/internal/supervisor"
	pipelineconfig "github.com/SinaHkz/pcmatrix/pipeline-config"
	"github.com/SinaHkz/pcmatrix/pkg/types"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	configPath := flag.String("config", "", "YAML file overriding the built-in defaults")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"usage: %s [-config file] [workers [buffer_size [matrices [matrix_mode]]]]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(*configPath, flag.Args(), os.Stdout); err != nil {
		log.Fatalf("pcmatrix: %v", err)
	}
}

func run(configPath string, args []string, stdout io.Writer) error {
	// ── load YAML, then command line overrides ──────────────────────────
	var (
		cfg *pipelineconfig.Config
		err error
	)
	if configPath != "" {
		cfg, err = pipelineconfig.LoadFile(configPath)
	} else {
		cfg, err = pipelineconfig.Load()
	}
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if err := cfg.ApplyArgs(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	pc := cfg.Pipeline

	// Map YAML to supervisor.Config.
	supCfg := supervisor.Config{
		Producers:     pc.ProducerCount(),
		Consumers:     pc.ConsumerCount(),
		Capacity:      pc.BufferSize,
		ProduceTarget: pc.Matrices,
		ConsumeTarget: pc.ConsumeTarget(),
	}

	kit := matrix.NewKit(pc.MatrixMode, pc.Seed)
	sink, flush := newSink(cfg.Output.Mode, stdout)

	sup, err := supervisor.New(supCfg, supervisor.Collaborators[*matrix.Matrix]{
		Generator:  kit,
		Combiner:   kit,
		Sink:       sink,
		Releaser:   kit,
		Summarizer: kit,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Producing %d matrices in mode %d.\n", pc.Matrices, pc.MatrixMode)
	fmt.Fprintf(stdout, "Using a shared buffer of size=%d\n", pc.BufferSize)
	fmt.Fprintf(stdout, "With %d producer and %d consumer thread(s).\n\n", supCfg.Producers, supCfg.Consumers)

	ctx, cancel := shutdown.WithSignal(context.Background())
	defer cancel()

	sup.Start()
	select {
	case <-sup.Done():
	case <-ctx.Done():
		log.Println("🛑 shutdown signal received")
		sup.Stop()
	}
	rep := sup.Wait()

	if err := flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	printReport(stdout, rep)
	log.Printf("run %s: %d combine(s) rejected, %d discarded, %d matrices leaked",
		rep.RunID, rep.Consumed.Rejected, rep.Discarded, kit.Arena.Live())

	if rep.Err != nil {
		return fmt.Errorf("run %s: %w", rep.RunID, rep.Err)
	}
	return nil
}

func newSink(mode string, w io.Writer) (types.Sink[*matrix.Matrix], func() error) {
	format := (*matrix.Matrix).String
	switch mode {
	case pipelineconfig.OutputDeferred:
		d := render.NewDeferred[*matrix.Matrix](format)
		return d, func() error { return d.Flush(w) }
	case pipelineconfig.OutputNone:
		return render.Discard[*matrix.Matrix]{}, func() error { return nil }
	}
	s := render.NewStream[*matrix.Matrix](w, format)
	return s, s.Flush
}

func printReport(w io.Writer, rep supervisor.Report) {
	fmt.Fprintf(w, "Sum of Matrix elements --> Produced=%d = Consumed=%d\n",
		rep.Produced.SumTotal, rep.Consumed.SumTotal)
	fmt.Fprintf(w, "Matrices produced=%d consumed=%d multiplied=%d\n",
		rep.Produced.MatrixTotal, rep.Consumed.MatrixTotal, rep.Consumed.MultTotal)
}
