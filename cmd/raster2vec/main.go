package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/ironsheep/raster2vec/internal/classify"
	"github.com/ironsheep/raster2vec/internal/config"
	"github.com/ironsheep/raster2vec/internal/export"
	"github.com/ironsheep/raster2vec/internal/georef"
	"github.com/ironsheep/raster2vec/internal/imaging"
	"github.com/ironsheep/raster2vec/internal/mask"
	"github.com/ironsheep/raster2vec/internal/pipeline"
	"github.com/ironsheep/raster2vec/internal/polygonize"
	"github.com/ironsheep/raster2vec/internal/tiling"
)

// Version information - set by ldflags during build
var Version = "dev"

const usage = `raster2vec - tiled raster to polygon vectorization

Usage:
  raster2vec split      [flags] raster...   split rasters into tiles and write an offsets file
  raster2vec vectorize  [flags]             classify tiles and write polygons per source image
  raster2vec polygonize [flags] mask        extract polygons from a binary mask image
  raster2vec validate   [flags]             score predicted masks against ground truth
  raster2vec init       [-force] [path]     write the default configuration file
  raster2vec version

Run "raster2vec <command> -h" for the flags of a command.
`

func main() {
	log.SetFlags(log.Ldate | log.Ltime)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "split":
		err = runSplit(ctx, args)
	case "vectorize":
		err = runVectorize(ctx, args)
	case "polygonize":
		err = runPolygonize(args)
	case "validate":
		err = runValidate(args)
	case "init":
		err = runInit(args)
	case "version", "--version", "-v":
		fmt.Printf("raster2vec %s\n", Version)
	case "help", "--help", "-h":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// loadConfig loads the configuration file (the default location when it
// exists and path is empty) and applies environment overrides.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if _, err := os.Stat(config.GetConfigPath()); err == nil {
			path = config.GetConfigPath()
		}
	}
	return config.Load(path)
}

func runSplit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("split", flag.ExitOnError)
	configPath := fs.String("config", "", "configuration file")
	outDir := fs.String("out", "", "tile output directory (default from config)")
	size := fs.Int("size", 0, "tile size in pixels (default from config)")
	skipEmpty := fs.Bool("skip-empty", false, "skip tiles whose pixels are all black")
	policy := fs.String("policy", "", "boundary tiles: pad|clip (default from config)")
	format := fs.String("format", "", "tile format: png|webp (default from config)")
	offsetsPath := fs.String("offsets", time.Now().Format("2006-01-02")+".json", "offsets file to write")
	fs.Parse(args)

	if fs.NArg() == 0 {
		return fmt.Errorf("usage: raster2vec split [flags] raster...")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *size > 0 {
		cfg.Tiling.Size = *size
	}
	if *skipEmpty {
		cfg.Tiling.SkipEmpty = true
	}
	if *policy != "" {
		cfg.Tiling.Policy = *policy
	}
	if *format != "" {
		cfg.Tiling.Format = *format
	}
	if *outDir != "" {
		cfg.Tiling.TileDir = *outDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts, err := cfg.TilingOptions()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr, "")
	sink, err := tiling.NewDirSink(cfg.Tiling.TileDir, opts.Quality)
	if err != nil {
		return err
	}
	tiler, err := tiling.New(sink, opts, logger)
	if err != nil {
		return err
	}

	cache := imaging.NewImageCache()
	dict := tiling.NewDictionary()
	for _, path := range fs.Args() {
		img, err := cache.Load(path)
		if err != nil {
			return err
		}
		source := imaging.SourceName(path)
		offsets, err := tiler.Split(ctx, source, img)
		cache.Evict(path)
		if err != nil {
			return fmt.Errorf("failed to split %s: %w", path, err)
		}
		dict.Add(source, offsets)
		logger.Printf("Split %s into %d tiles", source, offsets.Len())
	}

	if err := dict.Save(*offsetsPath); err != nil {
		return err
	}
	logger.Printf("Wrote offsets of %d tiles to %s", dict.TileCount(), *offsetsPath)
	return nil
}

func runVectorize(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("vectorize", flag.ExitOnError)
	configPath := fs.String("config", "", "configuration file")
	offsetsPath := fs.String("offsets", "", "offsets file written by split (required unless -source is given)")
	tilesDir := fs.String("tiles", "", "tile directory (default from config)")
	outDir := fs.String("out", "", "polygon output directory (default from config)")
	format := fs.String("format", "", "output format: geojson|wkt|shapefile (default from config)")
	model := fs.String("model", "", "classifier model file (default from config)")
	transform := fs.String("transform", "", "affine transform a,b,c,d,e,f, gdal:c,a,b,f,d,e or origin:west,north,xres,yres (default from config)")
	gcpPath := fs.String("gcp", "", "ground control point file to fit the transform from")
	worldDir := fs.String("world", "", "directory with <source>.wld/.tfw/.pgw world files")
	source := fs.String("source", "", "only vectorize this source image")
	workers := fs.Int("workers", 0, "tiles processed in parallel (default from config)")
	reportPath := fs.String("report", "", "write a JSON report of per-source results and tile failures")
	fs.Parse(args)

	if *offsetsPath == "" && *source == "" {
		return fmt.Errorf("usage: raster2vec vectorize -offsets file | -source name [flags]")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *tilesDir != "" {
		cfg.Tiling.TileDir = *tilesDir
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *format != "" {
		cfg.Output.Format = *format
	}
	if *model != "" {
		cfg.Classifier.ModelPath = *model
	}
	if *workers > 0 {
		cfg.Pipeline.Workers = *workers
	}
	if *transform != "" {
		if cfg.Georef.Transform, err = georef.ParseTransform(*transform); err != nil {
			return err
		}
	}
	if *gcpPath != "" {
		cfg.Georef.GCPFile = *gcpPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	outFormat, err := cfg.OutputFormat()
	if err != nil {
		return err
	}

	logger := cfg.NewLogger(os.Stderr, "")

	base, rms, err := cfg.PixelTransform()
	if err != nil {
		return err
	}
	if cfg.Georef.GCPFile != "" {
		logger.Printf("Fitted transform %v from %s, RMS %.4f", base, cfg.Georef.GCPFile, rms)
	}

	tiles := pipeline.NewDirSource(cfg.Tiling.TileDir)
	dict, err := tiles.SelectSources(*offsetsPath, *source)
	if err != nil {
		return err
	}

	transforms := make(map[string]georef.Affine, dict.Len())
	for _, src := range dict.Sources() {
		t := base
		if *worldDir != "" {
			wt, ok, err := georef.FindWorldFile(*worldDir, src)
			if err != nil {
				return err
			}
			if ok {
				t = wt
			}
		}
		if t.IsIdentity() {
			logger.Printf("No transform for %s, polygons stay in pixel coordinates", src)
		}
		transforms[src] = t
	}

	classifier, err := classify.Load(cfg.Classifier.ModelPath)
	if err != nil {
		return err
	}
	crs, err := cfg.CRS()
	if err != nil {
		return err
	}
	p, err := pipeline.NewProcessor(classifier,
		pipeline.WithConfig(cfg.Extract),
		pipeline.WithCRS(crs),
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithLogger(logger),
		pipeline.WithVerbose(cfg.Debug()),
	)
	if err != nil {
		return err
	}

	start := time.Now()
	results, err := p.ProcessBatch(ctx, dict, tiles,
		func(source string) georef.Affine { return transforms[source] })
	if err != nil {
		return err
	}

	failures := 0
	for _, res := range results {
		out, err := export.WriteFile(cfg.Output.Dir, res.Source, outFormat, res.Polygons, crs.PRJ())
		if err != nil {
			return err
		}
		failures += len(res.Failures)
		for _, f := range res.Failures {
			logger.Printf("Tile %s failed (%s): %v", f.Tile, f.Kind, f.Err)
		}
		logger.Printf("%s: %d/%d tiles, %d polygons -> %s", res.Source, res.Succeeded, res.Tiles, len(res.Polygons), out)
	}
	logger.Printf("Vectorized %d sources in %s, %d tile failures", len(results), time.Since(start).Round(time.Millisecond), failures)

	if *reportPath != "" {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		if err := os.WriteFile(*reportPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}

func runPolygonize(args []string) error {
	fs := flag.NewFlagSet("polygonize", flag.ExitOnError)
	configPath := fs.String("config", "", "configuration file")
	level := fs.Int("level", 128, "luminance at or above which a pixel is foreground")
	format := fs.String("format", "geojson", "output format: geojson|wkt|shapefile")
	out := fs.String("out", "", "output file (default stdout; required for shapefile)")
	transform := fs.String("transform", "", "affine transform a,b,c,d,e,f, gdal:c,a,b,f,d,e or origin:west,north,xres,yres (default from config)")
	maskOut := fs.String("mask-out", "", "also write the binarized mask to this PNG file")
	x := fs.Int("x", 0, "tile offset x")
	y := fs.Int("y", 0, "tile offset y")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: raster2vec polygonize [flags] mask")
	}
	if *level < 0 || *level > 255 {
		return fmt.Errorf("level must be between 0 and 255")
	}
	outFormat, err := export.ParseFormat(*format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	t, _, err := cfg.PixelTransform()
	if err != nil {
		return err
	}
	if *transform != "" {
		if t, err = georef.ParseTransform(*transform); err != nil {
			return err
		}
	}

	img, err := imaging.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	field, err := mask.Binarize(mask.FromImage(img, uint8(*level)))
	if err != nil {
		return err
	}
	if *maskOut != "" {
		if err := imaging.Save(*maskOut, mask.ToImage(field), imaging.FormatPNG, 0); err != nil {
			return err
		}
	}
	res, err := polygonize.Extract(field, cfg.Extract)
	if err != nil {
		return err
	}
	polys, err := georef.ReprojectAll(res.Polygons, image.Pt(*x, *y), t)
	if err != nil {
		return err
	}
	log.Printf("%d contours, %d polygons", res.Stats.Contours, len(polys))

	source := imaging.SourceName(fs.Arg(0))
	switch {
	case outFormat == export.FormatShapefile:
		if *out == "" {
			return fmt.Errorf("shapefile output needs -out")
		}
		return export.WriteShapefile(*out, polys, "")
	case *out == "":
		if outFormat == export.FormatWKT {
			return export.WriteWKT(os.Stdout, polys)
		}
		return export.WriteGeoJSON(os.Stdout, source, polys)
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", *out, err)
	}
	defer f.Close()
	if outFormat == export.FormatWKT {
		return export.WriteWKT(f, polys)
	}
	return export.WriteGeoJSON(f, source, polys)
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	pred := fs.String("pred", "", "predicted mask file or directory (required)")
	truth := fs.String("truth", "", "ground-truth mask file or directory (required)")
	level := fs.Int("level", 128, "luminance at or above which a pixel is foreground")
	fs.Parse(args)

	if *pred == "" || *truth == "" {
		return fmt.Errorf("usage: raster2vec validate -pred path -truth path")
	}
	if *level < 0 || *level > 255 {
		return fmt.Errorf("level must be between 0 and 255")
	}

	info, err := os.Stat(*pred)
	if err != nil {
		return fmt.Errorf("failed to read predictions: %w", err)
	}

	var result interface{}
	if info.IsDir() {
		result, err = mask.CompareDirs(*pred, *truth, uint8(*level))
	} else {
		var j float64
		j, err = mask.CompareFiles(*pred, *truth, uint8(*level))
		result = map[string]float64{"jaccard": j}
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite an existing file")
	fs.Parse(args)

	path := config.GetConfigPath()
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if err := writeDefaultConfig(path, *force); err != nil {
		return err
	}
	fmt.Printf("Wrote default configuration to %s\n", path)
	return nil
}

// writeDefaultConfig saves the default configuration to path, refusing to
// replace an existing file unless force is set.
func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use -force to overwrite", path)
	}
	return config.Default().SaveToFile(path)
}
