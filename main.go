package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-frcnn/config"
	"github.com/nvr-ai/go-frcnn/detector"
	"github.com/nvr-ai/go-frcnn/images"
	"github.com/nvr-ai/go-frcnn/profiler"
	"github.com/nvr-ai/go-frcnn/util"
	"github.com/nvr-ai/go-frcnn/visualize"
)

const separator = "~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~"

func check(err error) {
	if err != nil {
		panic(err)
	}
}

// configPath finds --config ahead of the full parse, so the file can supply
// the flag defaults.
func configPath(args []string) string {
	for i, a := range args {
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
	}
	return ""
}

func main() {
	cfg := config.Default()
	if path := configPath(os.Args); path != "" {
		var err error
		cfg, err = config.Load(path)
		check(err)
	}
	check(cfg.ApplyEnv(".env"))

	parser := argparse.NewParser("frcnn", "Faster R-CNN demo")
	gpu := parser.Int("", "gpu", &argparse.Options{Help: "GPU device id to use, negative for CPU", Default: cfg.GPU})
	dataDir := parser.String("", "data", &argparse.Options{Help: "Directory of images", Default: cfg.DataDir})
	prototxt := parser.String("", "pt", &argparse.Options{Help: "Network definition", Default: cfg.Prototxt})
	weights := parser.String("", "model", &argparse.Options{Help: "Network weights", Default: cfg.Weights})
	parser.String("", "config", &argparse.Options{Help: "YAML settings file"})
	backend := parser.String("", "backend", &argparse.Options{Help: "Inference engine: opencv or onnx", Default: cfg.Backend})
	dataset := parser.String("", "dataset", &argparse.Options{Help: "Class table: voc or coco", Default: cfg.Dataset})
	provider := parser.String("", "provider", &argparse.Options{Help: "ONNX Runtime execution provider: cpu, cuda, coreml or openvino", Default: cfg.Provider})
	head := parser.String("", "head", &argparse.Options{Help: "fused (rcnn_out) or raw (decode bbox_pred, cls_prob, rois)", Default: cfg.Head})
	ortLib := parser.String("", "ort-lib", &argparse.Options{Help: "ONNX Runtime shared library", Default: cfg.LibraryPath})
	threshold := parser.Float("", "threshold", &argparse.Options{Help: "Minimum score plotted", Default: float64(cfg.Threshold)})
	outDir := parser.String("", "out", &argparse.Options{Help: "Directory for annotated images", Default: cfg.OutputDir})
	show := parser.Flag("", "show", &argparse.Options{Help: "Display annotated images", Default: cfg.Show})
	all := parser.Flag("", "all", &argparse.Options{Help: "Run every image in the data directory", Default: cfg.All})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	cfg.GPU = *gpu
	cfg.DataDir = *dataDir
	cfg.Prototxt = *prototxt
	cfg.Weights = *weights
	cfg.Backend = *backend
	cfg.Dataset = *dataset
	cfg.Provider = *provider
	cfg.Head = *head
	cfg.LibraryPath = *ortLib
	cfg.Threshold = float32(*threshold)
	cfg.OutputDir = *outDir
	cfg.Show = *show
	cfg.All = *all

	check(cfg.Validate())
	check(cfg.CheckModelFiles())

	logger, err := logs.NewLog()
	check(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts, err := cfg.DetectorOptions()
	check(err)
	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{})
	opts.Profiler = prof

	det, err := detector.Open(ctx, cfg.Builder(logger), opts, logger)
	check(err)
	defer det.Close()

	// Warmup on a dummy image
	warmup := images.Filled(500, 300, 128)
	for i := 0; i < cfg.Warmup; i++ {
		_, err := det.Detect(ctx, warmup)
		check(err)
	}

	var files []util.ImageFile
	if cfg.All {
		files, err = util.LoadDirectoryImageFiles(cfg.DataDir)
	} else {
		files, err = util.ResolveImages(cfg.DataDir, cfg.Images)
	}
	check(err)

	if cfg.OutputDir != "" {
		check(os.MkdirAll(cfg.OutputDir, 0o755))
	}

	var canvases []*visualize.Canvas
	for _, f := range files {
		fmt.Println(separator)
		fmt.Printf("Demo for %s\n", f.Path)
		canvas, _, err := det.Demo(ctx, f.Path)
		check(err)
		canvases = append(canvases, canvas)

		if cfg.OutputDir != "" {
			name := strings.TrimSuffix(f.Name, filepath.Ext(f.Name)) + ".png"
			check(canvas.Save(filepath.Join(cfg.OutputDir, name)))
		}
	}

	prof.Report(logger)

	if cfg.Show {
		check(visualize.Show("Faster R-CNN", canvases))
	}
}
