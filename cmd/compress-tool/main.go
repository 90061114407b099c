package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"compress-tool-go/internal/compressor"
	"compress-tool-go/internal/config"
	"compress-tool-go/internal/engine"
	"compress-tool-go/internal/ffmpeg"
	"compress-tool-go/internal/logger"
	"compress-tool-go/internal/media"
	"compress-tool-go/internal/metadata"
	"compress-tool-go/internal/statistics"
	"compress-tool-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	outputDir  string
	keepFormat bool
	noPoster   bool
	workers    int
	verbose    bool
	quiet      bool
	port       int
)

// rootCmd compresses the path given as argument.
var rootCmd = &cobra.Command{
	Use:   "compress-tool [path]",
	Short: "Compress images and videos in a file or folder",
	Long: `compress-tool re-encodes images and videos to smaller files.

Images are decoded and re-encoded, by default converted to WebP.
Videos are transcoded with ffmpeg to H.264/AAC in their original container,
optionally with a WebP poster frame.

A folder is written to a new "<folder>-<suffix>" directory that mirrors its
layout. Files that cannot be compressed are copied unchanged.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runCompress(cmd.Context(), args[0])
	},
}

// compressCmd is an explicit alias of the root action.
var compressCmd = &cobra.Command{
	Use:   "compress <path>",
	Short: "Compress a file or folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd.Context(), args[0])
	},
}

// scanCmd lists media files without compressing them.
var scanCmd = &cobra.Command{
	Use:   "scan [directory]",
	Short: "List media files and totals without compressing",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		return runScan(dir)
	},
}

// inspectCmd prints the metadata of one file.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show metadata of a media file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(args[0])
	},
}

// encoderCmd reports whether ffmpeg can be found.
var encoderCmd = &cobra.Command{
	Use:   "encoder",
	Short: "Show video encoder status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEncoder(cmd.Context())
	},
}

// serveCmd starts the web interface server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP/WebSocket server",
	Long: `Starts an HTTP server exposing scan and compress endpoints under /api
and pushing job progress over the /ws WebSocket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	for _, cmd := range []*cobra.Command{rootCmd, compressCmd} {
		cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default: <folder>-compressed, or the file's directory)")
		cmd.Flags().BoolVar(&keepFormat, "keep-format", false, "keep image formats instead of converting to WebP")
		cmd.Flags().BoolVar(&noPoster, "no-poster", false, "do not extract a poster frame from videos")
		cmd.Flags().IntVar(&workers, "workers", 0, "files compressed in parallel (default from config)")
	}

	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run web server on")

	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(encoderCmd)
	rootCmd.AddCommand(serveCmd)
}

// app holds the components built from the configuration.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	scanner *media.Scanner
	locator ffmpeg.Locator
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if workers > 0 {
		cfg.Compression.Workers = workers
	}

	log := setupLogger(cfg)
	dataDir := cfg.Encoder.DataDir
	if dataDir == "" {
		dataDir = ffmpeg.DefaultDataDir()
	}

	return &app{
		cfg:     cfg,
		log:     log,
		scanner: media.NewScanner(media.NewClassifier(cfg.FormatSet()), log),
		locator: ffmpeg.NewPathLocator(cfg.Encoder.FFmpegPath, dataDir),
	}, nil
}

// newEngine returns an engine with its own statistics.
func (a *app) newEngine() *engine.Engine {
	images := compressor.NewImagingCompressor(a.log)
	videos := compressor.NewFFmpegCompressor(a.locator, ffmpeg.NewCommandRunner(), images, a.log)
	return engine.New(a.scanner, images, videos, a.log, engine.Options{
		Workers: a.cfg.Compression.Workers,
		Stats:   statistics.NewStatistics(),
	})
}

func (a *app) jobOptions() engine.JobOptions {
	return engine.JobOptions{
		ConvertImages:  a.cfg.Compression.ConvertImages && !keepFormat,
		GeneratePoster: a.cfg.Compression.GeneratePoster && !noPoster,
	}
}

// runCompress compresses a file or a folder.
func runCompress(ctx context.Context, input string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp()
	if err != nil {
		return err
	}

	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", input, err)
	}

	out := outputDir
	if out == "" {
		out = engine.DefaultOutputDir(input, info.IsDir())
	}
	eng := a.newEngine()

	if !info.IsDir() {
		res, err := eng.CompressFile(ctx, input, out, a.jobOptions())
		if err != nil {
			return fmt.Errorf("compression failed: %w", err)
		}
		if !quiet {
			fmt.Printf("%s -> %s (%s -> %s)\n", input, res.OutputPath,
				statistics.FormatBytes(res.OriginalSize), statistics.FormatBytes(res.CompressedSize))
			if res.PosterPath != "" {
				fmt.Printf("poster: %s\n", res.PosterPath)
			}
		}
		return nil
	}

	sink := engine.ProgressFunc(func(ev engine.ProgressEvent) {
		if quiet {
			return
		}
		mark := ""
		if ev.Outcome == engine.OutcomeCopiedFallback {
			mark = " [copied]"
		}
		fmt.Printf("[%d/%d] %s %s -> %s%s\n", ev.Current, ev.Total, ev.File,
			statistics.FormatBytes(ev.OriginalSize), statistics.FormatBytes(ev.CompressedSize), mark)
	})

	res, err := eng.CompressTree(ctx, input, out, a.jobOptions(), sink)
	if err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}

	if !quiet {
		fmt.Printf("\nOutput: %s\n", res.OutputPath)
		fmt.Println("\n" + eng.Stats().GetSummary())
		if res.FallbackCount > 0 {
			fmt.Println(eng.Stats().GetErrorSummary())
		}
	}
	return nil
}

// runScan prints the media files under dir.
func runScan(dir string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	files, err := a.scanner.ScanTree(dir)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	var total int64
	var images, videos int
	for _, f := range files {
		total += f.Size
		if f.IsImage() {
			images++
		} else {
			videos++
		}
		if !quiet {
			fmt.Printf("%-6s %10s  %s\n", f.Type, statistics.FormatBytes(f.Size), f.Name)
		}
	}

	fmt.Printf("\n%d files (%d images, %d videos), %s\n", len(files), images, videos, statistics.FormatBytes(total))
	return nil
}

// runInspect prints metadata for one file.
func runInspect(path string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	prober := metadata.NewExiftoolProber()
	defer prober.Close()

	info, err := metadata.NewInspector(a.scanner, prober, a.log).Inspect(path)
	if err != nil {
		return fmt.Errorf("inspect failed: %w", err)
	}

	fmt.Printf("File:     %s\n", info.Path)
	fmt.Printf("Type:     %s\n", info.Type)
	fmt.Printf("Size:     %s\n", statistics.FormatBytes(info.Size))
	fmt.Printf("Modified: %s\n", info.ModTime.Format("2006-01-02 15:04:05"))
	if info.Width > 0 {
		fmt.Printf("Size px:  %dx%d\n", info.Width, info.Height)
	}
	if info.CaptureTime != nil {
		fmt.Printf("Captured: %s\n", info.CaptureTime.Format("2006-01-02 15:04:05"))
	}
	if info.CameraModel != "" {
		fmt.Printf("Camera:   %s %s\n", info.CameraMake, info.CameraModel)
	}
	if info.Duration != "" {
		fmt.Printf("Duration: %s\n", info.Duration)
	}
	if info.MIMEType != "" {
		fmt.Printf("MIME:     %s\n", info.MIMEType)
	}
	fmt.Printf("Source:   %s\n", info.Source)
	return nil
}

// runEncoder prints the encoder status.
func runEncoder(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp()
	if err != nil {
		return err
	}

	status := ffmpeg.CheckStatus(ctx, a.locator)
	if !status.Installed {
		fmt.Println("ffmpeg: not found")
		fmt.Printf("Install ffmpeg, set encoder.ffmpeg_path, or place it in %s\n", ffmpeg.DefaultDataDir())
		return nil
	}
	fmt.Printf("ffmpeg:  %s\n", status.Path)
	if status.Version != "" {
		fmt.Printf("version: %s\n", status.Version)
	}
	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe() error {
	a, err := newApp()
	if err != nil {
		return err
	}

	prober := metadata.NewExiftoolProber()
	defer prober.Close()

	server := web.NewServer(a.cfg, a.newEngine, metadata.NewInspector(a.scanner, prober, a.log), a.locator, a.log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			a.log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Printf("Listening on http://localhost:%d (Ctrl+C to stop)\n", port)

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("Server stopped")
	return nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	log, err := logger.New(logger.FromConfig(cfg.Logging, verbose, quiet))
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
