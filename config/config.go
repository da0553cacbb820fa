// Package config - Settings for the Faster R-CNN demo, layered from defaults,
// a YAML file, the environment and command-line flags.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/cyclopcam/logs"
	"github.com/joho/godotenv"
	"github.com/nvr-ai/go-frcnn/detector"
	"github.com/nvr-ai/go-frcnn/images"
	"github.com/nvr-ai/go-frcnn/inference"
	"github.com/nvr-ai/go-frcnn/inference/engine"
	"github.com/nvr-ai/go-frcnn/inference/providers"
	"github.com/nvr-ai/go-frcnn/models"
	"github.com/nvr-ai/go-frcnn/models/postprocess"
	"github.com/nvr-ai/go-frcnn/models/preprocess"
	"github.com/nvr-ai/go-frcnn/visualize"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FRCNN_"

// ErrModelNotFound matches the error CheckModelFiles returns for missing
// weights.
var ErrModelNotFound = errors.New("model not found")

// ModelNotFoundError reports a missing weights file.
type ModelNotFoundError struct {
	Path string
}

func (e *ModelNotFoundError) Error() string {
	return e.Path + " not found.\nDid you run fetch_models.sh?"
}

// Is makes errors.Is(err, ErrModelNotFound) hold.
func (e *ModelNotFoundError) Is(target error) bool {
	return target == ErrModelNotFound
}

// Config holds every setting of the demo.
type Config struct {
	// Backend is the inference engine: opencv or onnx.
	Backend string `json:"backend" yaml:"backend"`
	// Provider overrides the ONNX Runtime execution provider.
	Provider string `json:"provider" yaml:"provider"`
	// LibraryPath is the ONNX Runtime shared library.
	LibraryPath string `json:"libraryPath" yaml:"libraryPath"`
	// Prototxt is the network definition.
	Prototxt string `json:"prototxt" yaml:"prototxt"`
	// Weights is the trained model.
	Weights string `json:"weights" yaml:"weights"`
	// GPU is the accelerator index. Negative runs on CPU.
	GPU int `json:"gpu" yaml:"gpu"`
	// Dataset selects the class table: voc or coco.
	Dataset string `json:"dataset" yaml:"dataset"`

	Scale         int        `json:"scale" yaml:"scale"`
	MaxSize       int        `json:"maxSize" yaml:"maxSize"`
	Transpose     [3]int     `json:"transpose" yaml:"transpose"`
	Mean          [3]float32 `json:"mean" yaml:"mean"`
	Interpolation string     `json:"interpolation" yaml:"interpolation"`

	// Head is fused (rcnn_out from the network) or raw (decoded here).
	Head string `json:"head" yaml:"head"`
	// RCNN holds the raw head thresholds.
	RCNN postprocess.RCNNConfig `json:"rcnn" yaml:"rcnn"`
	// Optimization tunes ONNX Runtime sessions.
	Optimization providers.OptimizationConfig `json:"optimization" yaml:"optimization"`
	// Coordinates is the space the network writes boxes in.
	Coordinates string `json:"coordinates" yaml:"coordinates"`

	// Threshold is the minimum score plotted.
	Threshold float32 `json:"threshold" yaml:"threshold"`
	LineWidth float64 `json:"lineWidth" yaml:"lineWidth"`

	// DataDir holds the sample images.
	DataDir string `json:"dataDir" yaml:"dataDir"`
	// Images are run in order. Empty means the default samples.
	Images []string `json:"images" yaml:"images"`
	// All runs every image in DataDir instead of Images.
	All bool `json:"all" yaml:"all"`
	// OutputDir receives the annotated images when set.
	OutputDir string `json:"outputDir" yaml:"outputDir"`
	// Show opens a window per annotated image.
	Show bool `json:"show" yaml:"show"`
	// Warmup is the number of detections run on a synthetic image first.
	Warmup int `json:"warmup" yaml:"warmup"`
}

// Default returns the demo defaults.
//
// @example
// cfg := config.Default()
// cfg.GPU = -1
func Default() Config {
	pre := preprocess.DefaultConfig()
	return Config{
		Backend:       string(inference.BackendOpenCV),
		Prototxt:      "models/coco_vgg16_faster_rcnn_deploy.prototxt",
		Weights:       "models/coco_vgg16_faster_rcnn_final.caffemodel",
		GPU:           0,
		Dataset:       string(models.DefaultDataset),
		Scale:         pre.Scale,
		MaxSize:       pre.MaxSize,
		Transpose:     pre.Transpose,
		Mean:          pre.Mean,
		Interpolation: pre.Filter.String(),
		Head:          string(inference.HeadFused),
		RCNN:          postprocess.DefaultRCNNConfig(),
		Optimization:  providers.DefaultOptimizationConfig(),
		Coordinates:   string(detector.CoordinatesOriginal),
		Threshold:     0,
		LineWidth:     visualize.DefaultLineWidth,
		DataDir:       "data",
		Warmup:        2,
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default value.
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - Config: The merged configuration.
//   - error: If the file cannot be read or parsed.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse config %s", path)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from FRCNN_* variables. Variables set in the
// process environment win over those read from the dotenv files; missing
// dotenv files are skipped.
//
// Arguments:
//   - dotenv: Optional .env files.
//
// Returns:
//   - error: If a file cannot be parsed or a value has the wrong type.
func (c *Config) ApplyEnv(dotenv ...string) error {
	vars := map[string]string{}
	for _, path := range dotenv {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		m, err := godotenv.Read(path)
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", path)
		}
		for k, v := range m {
			vars[k] = v
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			return v, true
		}
		v, ok := vars[EnvPrefix+key]
		return v, ok
	}

	strs := map[string]*string{
		"BACKEND":       &c.Backend,
		"PROVIDER":      &c.Provider,
		"ORT_LIB":       &c.LibraryPath,
		"PT":            &c.Prototxt,
		"MODEL":         &c.Weights,
		"DATASET":       &c.Dataset,
		"INTERPOLATION": &c.Interpolation,
		"HEAD":          &c.Head,
		"COORDINATES":   &c.Coordinates,
		"DATA":          &c.DataDir,
		"OUT":           &c.OutputDir,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	if v, ok := lookup("GPU"); ok {
		gpu, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "invalid %sGPU", EnvPrefix)
		}
		c.GPU = gpu
	}
	if v, ok := lookup("THRESHOLD"); ok {
		t, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
		if err != nil {
			return errors.Wrapf(err, "invalid %sTHRESHOLD", EnvPrefix)
		}
		c.Threshold = float32(t)
	}
	if v, ok := lookup("SHOW"); ok {
		show, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "invalid %sSHOW", EnvPrefix)
		}
		c.Show = show
	}
	return nil
}

// Validate checks every setting that can be checked without touching the
// model files.
func (c Config) Validate() error {
	if _, err := inference.ParseBackend(c.Backend); err != nil {
		return err
	}
	if _, err := providers.ParseBackend(c.Provider); err != nil {
		return err
	}
	if _, err := models.ParseDataset(c.Dataset); err != nil {
		return err
	}
	if _, err := inference.ParseHeadMode(c.Head); err != nil {
		return err
	}
	if _, err := detector.ParseCoordinates(c.Coordinates); err != nil {
		return err
	}
	if _, err := c.PreprocessConfig(); err != nil {
		return err
	}
	if c.Weights == "" {
		return errors.New("weights path is required")
	}
	if c.Warmup < 0 {
		return errors.Errorf("warmup must not be negative, got %d", c.Warmup)
	}
	return nil
}

// PreprocessConfig returns the input pipeline settings.
func (c Config) PreprocessConfig() (preprocess.Config, error) {
	filter, ok := images.ParseResampleFilter(c.Interpolation)
	if !ok {
		return preprocess.Config{}, errors.Errorf("unknown interpolation %q", c.Interpolation)
	}
	pre := preprocess.Config{
		Mean:      c.Mean,
		Scale:     c.Scale,
		MaxSize:   c.MaxSize,
		Transpose: c.Transpose,
		Filter:    filter,
	}
	return pre, pre.Validate()
}

// DetectorOptions returns the detector settings. Output and Profiler are left
// for the caller.
func (c Config) DetectorOptions() (detector.Options, error) {
	pre, err := c.PreprocessConfig()
	if err != nil {
		return detector.Options{}, err
	}
	dataset, err := models.ParseDataset(c.Dataset)
	if err != nil {
		return detector.Options{}, err
	}
	coords, err := detector.ParseCoordinates(c.Coordinates)
	if err != nil {
		return detector.Options{}, err
	}
	opts := detector.DefaultOptions()
	opts.Dataset = dataset
	opts.Preprocess = pre
	opts.Coordinates = coords
	opts.Threshold = c.Threshold
	opts.LineWidth = c.LineWidth
	return opts, nil
}

// Builder returns a network builder for the configured backend, model, device,
// session tuning and head.
func (c Config) Builder(log logs.Log) *engine.Builder {
	return engine.NewBuilder(log).
		WithBackend(c.Backend).
		WithModel(c.Prototxt, c.Weights).
		WithDevice(inference.DeviceFromSelector(c.GPU)).
		WithProvider(c.Provider).
		WithLibraryPath(c.LibraryPath).
		WithOptimization(c.Optimization).
		WithHead(c.Head, c.RCNN)
}

// CheckModelFiles fails when the weights file does not exist.
func (c Config) CheckModelFiles() error {
	if info, err := os.Stat(c.Weights); err != nil || info.IsDir() {
		return &ModelNotFoundError{Path: c.Weights}
	}
	return nil
}
