package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ironsheep/raster2vec/internal/config"
	"github.com/ironsheep/raster2vec/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := os.Getenv("RASTER2VEC_CONFIG")

	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("raster2vec-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("raster2vec-mcp - MCP server for raster to polygon vectorization")
			fmt.Println()
			fmt.Println("Usage: raster2vec-mcp [options] [config.json]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables (also read from .env):")
			fmt.Println("  RASTER2VEC_CONFIG=path          Configuration file")
			fmt.Println("  RASTER2VEC_LOG_LEVEL=debug      Enable debug logging")
			fmt.Println("  RASTER2VEC_TILE_SIZE=1600       Tile edge length in pixels")
			fmt.Println("  RASTER2VEC_WORKERS=4            Tiles processed in parallel")
			fmt.Println("  RASTER2VEC_MODEL_PATH=path      Classifier model file")
			fmt.Println("  RASTER2VEC_OUTPUT_DIR=path      Polygon output directory")
			fmt.Println("  RASTER2VEC_SOURCE_CRS=proj4     Source CRS for reprojection")
			fmt.Println("  RASTER2VEC_TARGET_CRS=proj4     Target CRS for reprojection")
			fmt.Println("  RASTER2VEC_TRANSFORM=a,b,c,d,e,f Pixel-to-map transform (also gdal:... or origin:...)")
			fmt.Println("  RASTER2VEC_GCP_FILE=path        Ground control points to fit the transform from")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		default:
			configPath = os.Args[1]
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if configPath == "" {
		if _, err := os.Stat(config.GetConfigPath()); err == nil {
			configPath = config.GetConfigPath()
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger := cfg.NewLogger(os.Stderr, "")
	if cfg.Debug() {
		logger.Printf("raster2vec MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	server.Version = Version
	srv, err := server.New(cfg, logger)
	if err != nil {
		log.Fatalf("Server setup failed: %v", err)
	}
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
