package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moses-palmer/photofs"
	"github.com/moses-palmer/photofs/fuse"
	"github.com/moses-palmer/photofs/log"
	"github.com/moses-palmer/photofs/source"

	// Registered image sources.
	_ "github.com/moses-palmer/photofs/source/dirtree"
	_ "github.com/moses-palmer/photofs/source/shotwell"
)

var (
	sourceName string
	database   string
	photoPath  string
	videoPath  string
	dateFormat string
	links      bool
	watch      bool
	allowOther bool
	logLevel   string
	logFile    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "photofs <mountpoint>",
		Short: "Explore tagged images from an image catalog in the file system",
		Long: "photofs mounts the tagged image library of an image cataloguing\n" +
			"application as a read-only file system: every tag becomes a\n" +
			"directory and every image or video a file beneath it.",
		Args: cobra.ExactArgs(1),
		RunE: run,

		SilenceUsage: true,
	}

	rootCmd.Flags().StringVar(&sourceName, "source", "shotwell",
		fmt.Sprintf("Image source to use (%s)", strings.Join(source.Names(), ", ")))
	rootCmd.Flags().StringVar(&database, "database", "",
		"The backend database to use; if not specified, the default one is used")
	rootCmd.Flags().StringVar(&photoPath, "photo-path", "Photos",
		"The root directory containing photos; an empty value disables the view")
	rootCmd.Flags().StringVar(&videoPath, "video-path", "Videos",
		"The root directory containing videos; an empty value disables the view")
	rootCmd.Flags().StringVar(&dateFormat, "date-format", "",
		"Date format used to name images without a title")
	rootCmd.Flags().BoolVar(&links, "links", false,
		"Present images as symbolic links to the backing files")
	rootCmd.Flags().BoolVar(&watch, "watch", false,
		"Watch the backend database and reload immediately on changes")
	rootCmd.Flags().BoolVar(&allowOther, "allow-other", false,
		"Allow other users to access the mount")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "INFO",
		"Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "",
		"Also log to this file, with rotation")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level, err := log.Parse(logLevel)
	if err != nil {
		return err
	}
	logger := log.New("photofs", level, logFile, false)

	src, err := source.Open(sourceName, source.Config{
		Database:   database,
		DateFormat: dateFormat,
		Watch:      watch,
		Logger:     logger.Named("source"),
	})
	if err != nil {
		return err
	}

	opts := []photofs.Option{
		photofs.WithLogger(logger),
	}
	if photoPath != "" {
		opts = append(opts, photofs.WithFilters(photofs.PhotoFilter(photoPath)))
	}
	if videoPath != "" {
		opts = append(opts, photofs.WithFilters(photofs.VideoFilter(videoPath)))
	}
	if links {
		opts = append(opts, photofs.WithLinks())
	}

	fileSystem, err := photofs.New(src, opts...)
	if err != nil {
		return err
	}

	server, err := fuse.Mount(fuse.Options{
		Mountpoint: args[0],
		FileSystem: fileSystem,
		AllowOther: allowOther,
		Logger:     logger.Named("fuse"),
	})
	if err != nil {
		return err
	}

	// Unmount cleanly on interruption.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		logger.Info("unmounting %s", args[0])
		if err := server.Unmount(); err != nil {
			logger.Error("unmount failed: %v", err)
		}
	}()

	server.Wait()
	return fileSystem.Destroy()
}
