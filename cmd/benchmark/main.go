package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-frcnn/benchmark"
	"github.com/nvr-ai/go-frcnn/config"
	"github.com/nvr-ai/go-frcnn/detector"
	"github.com/nvr-ai/go-frcnn/images"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("benchmark", "Measure Faster R-CNN detection latency across frame sizes")
	configFile := parser.String("", "config", &argparse.Options{Help: "YAML settings file"})
	backend := parser.String("", "backend", &argparse.Options{Help: "Inference engine: opencv or onnx"})
	gpu := parser.Int("", "gpu", &argparse.Options{Help: "GPU device id to use, negative for CPU", Default: 0})
	weights := parser.String("", "model", &argparse.Options{Help: "Network weights"})
	prototxt := parser.String("", "pt", &argparse.Options{Help: "Network definition"})
	source := parser.String("i", "image", &argparse.Options{Help: "Image resized to each resolution, instead of a gray frame"})
	resolutions := parser.String("r", "resolutions", &argparse.Options{Help: "Comma-separated resolution names, empty for all"})
	iterations := parser.Int("n", "iterations", &argparse.Options{Help: "Timed runs per resolution", Default: 20})
	warmup := parser.Int("w", "warmup", &argparse.Options{Help: "Untimed runs per resolution", Default: 2})
	outDir := parser.String("o", "out", &argparse.Options{Help: "Results directory", Default: "benchmark_results"})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	cfg := config.Default()
	if *configFile != "" {
		cfg, err = config.Load(*configFile)
		check(err)
	}
	check(cfg.ApplyEnv(".env"))
	cfg.GPU = *gpu
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *weights != "" {
		cfg.Weights = *weights
	}
	if *prototxt != "" {
		cfg.Prototxt = *prototxt
	}
	check(cfg.Validate())
	check(cfg.CheckModelFiles())

	res, err := images.ParseResolutions(*resolutions)
	check(err)

	var img *images.Raster
	if *source != "" {
		img, err = images.Load(*source)
		check(err)
	}

	logger, err := logs.NewLog()
	check(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts, err := cfg.DetectorOptions()
	check(err)
	det, err := detector.Open(ctx, cfg.Builder(logger), opts, logger)
	check(err)
	defer det.Close()

	suite := benchmark.NewSuite(det, img, *outDir, logger)
	check(suite.RunAll(ctx, benchmark.Scenarios(res, *iterations, *warmup), os.Stdout))
	_, err = suite.SaveResults()
	check(err)
}
