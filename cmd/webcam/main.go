package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"os/signal"
	"time"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-frcnn/config"
	"github.com/nvr-ai/go-frcnn/detector"
	"github.com/nvr-ai/go-frcnn/images"
	"github.com/nvr-ai/go-frcnn/visualize"
	"gocv.io/x/gocv"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("webcam", "Live Faster R-CNN detection on a capture device")
	deviceID := parser.Int("d", "device", &argparse.Options{Help: "Video capture device", Default: 0})
	configFile := parser.String("", "config", &argparse.Options{Help: "YAML settings file"})
	gpu := parser.Int("", "gpu", &argparse.Options{Help: "GPU device id to use, negative for CPU", Default: 0})
	weights := parser.String("", "model", &argparse.Options{Help: "Network weights"})
	prototxt := parser.String("", "pt", &argparse.Options{Help: "Network definition"})
	threshold := parser.Float("", "threshold", &argparse.Options{Help: "Minimum score drawn", Default: 0.5})
	motion := parser.Flag("", "motion", &argparse.Options{Help: "Only run detection on frames with motion"})
	minArea := parser.Float("", "min-area", &argparse.Options{Help: "Minimum moving area in pixels", Default: images.DefaultMotionConfig().MinimumArea})
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
	if *weights != "" {
		cfg.Weights = *weights
	}
	if *prototxt != "" {
		cfg.Prototxt = *prototxt
	}
	check(cfg.Validate())
	check(cfg.CheckModelFiles())

	logger, err := logs.NewLog()
	check(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts, err := cfg.DetectorOptions()
	check(err)
	det, err := detector.Open(ctx, cfg.Builder(logger), opts, logger)
	check(err)
	defer det.Close()

	webcam, err := gocv.OpenVideoCapture(*deviceID)
	check(err)
	defer webcam.Close()

	window := gocv.NewWindow("Faster R-CNN")
	defer window.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	var segmenter *images.MotionSegmenter
	if *motion {
		mc := images.DefaultMotionConfig()
		mc.MinimumArea = *minArea
		segmenter = images.NewMotionSegmenter(mc)
		defer segmenter.Close()
	}

	// FPS tracking variables
	fps := 0.0
	frameCount := 0
	lastTime := time.Now()
	white := color.RGBA{255, 255, 255, 0}

	fmt.Printf("start reading camera device: %v\n", *deviceID)
	for ctx.Err() == nil {
		if ok := webcam.Read(&frame); !ok {
			fmt.Printf("cannot read device %v\n", *deviceID)
			return
		}
		if frame.Empty() {
			continue
		}

		frameCount++
		if elapsed := time.Since(lastTime).Seconds(); elapsed >= 1.0 {
			fps = float64(frameCount) / elapsed
			frameCount = 0
			lastTime = time.Now()
		}

		display := frame
		if segmenter != nil {
			regions, err := segmenter.Segment(frame)
			check(err)
			if len(regions) == 0 {
				gocv.PutText(&display, fmt.Sprintf("FPS: %.1f | still", fps), image.Pt(10, 30), gocv.FontHersheyPlain, 1.2, white, 2)
				window.IMShow(display)
				window.WaitKey(1)
				continue
			}
		}

		raster, err := images.FromMat(frame)
		check(err)
		dets, err := det.Detect(ctx, raster)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			check(err)
		}
		canvas, err := det.Plot(raster, dets, float32(*threshold), nil, 0)
		check(err)
		fmt.Printf("found %d objects | FPS: %.2f\n", canvas.Boxes(), fps)

		annotated, err := visualize.DisplayMat(canvas)
		check(err)
		gocv.PutText(&annotated, fmt.Sprintf("FPS: %.1f", fps), image.Pt(10, 30), gocv.FontHersheyPlain, 1.2, white, 2)
		window.IMShow(annotated)
		annotated.Close()
		window.WaitKey(1)
	}
}
