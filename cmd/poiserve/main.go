// Copyright 2025 The PoiServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the POI search server and CLI [DBG] application.

Note: This is a BETA release. APIs and functionality may rapidly change.

PoiServe finds points of interest by free-text prefix queries and orders them
by distance from a reference position. Names in Cyrillic and Latin script are
matched against each other through transliteration, so "парк" finds
"Central Park" and "park" finds "Парк Шевченка".

It can operate as a MessagePack IPC server for integration with map clients,
or as a CLI application for testing datasets.

# Usage

Start the server with the default dataset:

	poiserve

Load another dataset and enable debug mode:

	poiserve -dataset lviv -d

Run in CLI mode around a given position:

	poiserve -c -lat 49.8419 -lon 24.0316 -limit 10

The data directory holds one directory per dataset, each with an objects.json
(or objects.json.zst, objects.msgpack, objects.msgpack.zst) mapping POI ids to
records:

	{"p1": {"id": "p1", "names": ["Кафе Пушкін"], "coords": [[50.45, 30.52]]}}

-dataset also accepts a file path or an http(s) URL.

Convert a dataset to compressed msgpack, picking the encoding from the output
extension, and exit:

	poiserve -dataset kyiv-center -convert data/kyiv-packed/objects.msgpack.zst

# Configuration

Runtime configuration lives in a TOML file in the user config directory. It
is created with defaults if it doesn't exist:

	[server]
	max_results = 50
	max_query_len = 120

	[index]
	cache_size = 1024

	[data]
	dir = "data/"
	default_dataset = "kyiv-center"
	http_timeout = "30s"

A .env file in the working directory is read on start. POISERVE_DATA_DIR,
POISERVE_DATASET, POISERVE_LAT, POISERVE_LON and POISERVE_LOG_LEVEL override
the file; flags override both.

# IPC Protocol

See package server for the message formats. A short session:

	{"id": "q1", "q": "кафе", "lat": 50.45, "lon": 30.52}
	{"id": "q1", "r": [{"id": "p1", "t": "Кафе Пушкін", "d": 0, "la": 50.45, "lo": 30.52}], "c": 1, "t": 85}

# Command Line Flags

	-data string
	    Directory containing the datasets (default from config)
	-dataset string
	    Dataset name, file or URL to load on start (default from config)
	-config string
	    Path to a config file
	-convert string
	    Write the dataset to this file (.json, .msgpack, optionally .zst) and exit
	-d  Enable debug mode with detailed logging
	-c  Run in CLI mode instead of server mode
	-lat, -lon float
	    Reference position (default from config)
	-limit int
	    Number of results to print in CLI mode
	-version
	    Show current version
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bastiangx/poiserve/internal/cli"
	"github.com/bastiangx/poiserve/internal/logger"
	"github.com/bastiangx/poiserve/internal/utils"
	"github.com/bastiangx/poiserve/pkg/config"
	"github.com/bastiangx/poiserve/pkg/dataset"
	"github.com/bastiangx/poiserve/pkg/index"
	"github.com/bastiangx/poiserve/pkg/server"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

const (
	Version = "0.3.0-beta"
	AppName = "poiserve"
	gh      = "https://github.com/bastiangx/poiserve"
)

// sigHandler exits normally on SIGINT/SIGTERM. The returned context is
// cancelled first so an in-flight download can stop.
func sigHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		cancel()
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		os.Exit(0)
	}()
	return ctx
}

// main calls other packages to initialize the server or CLI inputs.
// main() does not implement logic for them and only manages the flow.
func main() {
	ctx := sigHandler()
	defaultConfig := config.DefaultConfig()

	showVersion := flag.Bool("version", false, "Show current version")
	dataDir := flag.String("data", "", "Directory containing the datasets")
	datasetName := flag.String("dataset", "", "Dataset name, file or URL to load")
	configFile := flag.String("config", "", "Path to config file")
	convertOut := flag.String("convert", "", "Write the dataset to this file and exit")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for testing and debugging")
	lat := flag.Float64("lat", defaultConfig.CLI.DefaultLat, "Reference latitude")
	lon := flag.Float64("lon", defaultConfig.CLI.DefaultLon, "Reference longitude")
	limit := flag.Int("limit", defaultConfig.CLI.DefaultLimit, "Number of results to print in CLI mode")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("Failed to read .env: %v", err)
	}

	if *debugMode {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(logger.ParseLevel(os.Getenv(config.EnvLogLevel), log.WarnLevel))
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	pathResolver, err := utils.NewPathResolver()
	if err != nil {
		log.Fatalf("Failed to initialize path resolver: %v", err)
	}

	configPath, err := pathResolver.GetConfigPath("config.toml")
	if err != nil {
		log.Warnf("Failed to determine config path: (%v)", err)
		configPath = ""
	}
	appConfig, usedConfig := config.LoadConfigWithPriority(*configFile, configPath)
	if usedConfig != "" {
		log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(usedConfig))
	}

	if *dataDir == "" {
		*dataDir = appConfig.Data.Dir
	}
	if *datasetName == "" {
		*datasetName = appConfig.Data.DefaultDataset
	}
	if set["lat"] {
		appConfig.Server.DefaultLat = *lat
	} else {
		*lat = appConfig.CLI.DefaultLat
	}
	if set["lon"] {
		appConfig.Server.DefaultLon = *lon
	} else {
		*lon = appConfig.CLI.DefaultLon
	}
	if !set["limit"] {
		*limit = appConfig.CLI.DefaultLimit
	}

	resolvedDataDir, err := pathResolver.GetDataDir(*dataDir)
	if err != nil {
		log.Fatalf("Failed to resolve data dir:(%v)", err)
	}
	log.Debugf("Using data dir at: %s", resolvedDataDir)

	loader := dataset.NewLoader(dataset.Options{
		DataDir: resolvedDataDir,
		Default: appConfig.Data.DefaultDataset,
		Timeout: appConfig.Data.HTTPTimeout.Duration,
		Progress: func(p dataset.Progress) {
			log.Debug(p.String())
		},
	})

	if *convertOut != "" {
		ds, err := loader.Convert(ctx, *datasetName, *convertOut)
		if err != nil {
			log.Fatalf("Failed to convert dataset: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Converted %s pois from %s to %s\n",
			utils.FormatWithCommas(len(ds.POIs)), ds.Source, *convertOut)
		return
	}

	indexOpts := []index.Option{
		index.WithCacheSize(appConfig.Index.CacheSize),
		index.WithMaxResults(appConfig.Index.MaxResults),
	}

	ix, loaded, source := initialIndex(ctx, loader, *datasetName, appConfig.Data.DefaultDataset, indexOpts)

	// CLI would be mainly used for testing datasets and dbg purposes.
	if *cliMode {
		log.SetReportTimestamp(false)
		log.Debug("Input info:", "lat", *lat, "lon", *lon, "limit", *limit)

		inputHandler := cli.NewInputHandler(ix, loader, cli.Options{
			Limit:       *limit,
			MaxQueryLen: appConfig.Server.MaxQueryLen,
			Lat:         *lat,
			Lon:         *lon,
			ShowLinks:   appConfig.CLI.ShowLinks,
			Dataset:     loaded,
			IndexOpts:   indexOpts,
		})
		if err := inputHandler.Start(ctx); err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		return
	}

	log.Debug("spawning IPC")
	srv := server.NewServer(ix, loader, appConfig.Server,
		server.WithIndexOptions(indexOpts...),
		server.WithDataset(loaded, source),
	)

	showStartupInfo(pathResolver, resolvedDataDir, loaded, ix)

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// initialIndex loads the requested dataset, falling back to the default one.
// A nil index means nothing could be loaded; the server then answers 503
// until a load request succeeds.
func initialIndex(ctx context.Context, loader *dataset.Loader, name, fallback string, opts []index.Option) (*index.Index, string, string) {
	candidates := []string{name}
	if fallback != "" && fallback != name {
		candidates = append(candidates, fallback)
	}

	for _, source := range candidates {
		ds, err := loader.Load(ctx, source)
		if err != nil {
			log.Errorf("Failed to load dataset %q: %v", source, err)
			continue
		}
		ix, warnings := index.FromDataset(ds, opts...)
		if len(warnings) > 0 {
			log.Warnf("Skipped %d malformed entries in %s", len(warnings), ds.Source)
		}
		return ix, ds.Name, ds.Source
	}
	log.Warn("No dataset loaded, running with an empty index...")
	return nil, "", ""
}

func printVersion() {
	banner := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	banner.SetStyles(styles)

	banner.Print("")
	banner.Print("[ PoiServe ] Finds places by name, nearest first!")
	banner.Print("", "version", Version)
	banner.Print("")
	banner.Print("use -h or --help to see available options")
	banner.Print("Github Repo", "gh", gh)
}

// showStartupInfo displays some basic info about the init process.
// It writes to stderr: stdout carries the IPC stream.
func showStartupInfo(pr *utils.PathResolver, dataDir, datasetName string, ix *index.Index) {
	pid := os.Getpid()
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	fmt.Fprintln(os.Stderr, "==========")
	fmt.Fprintln(os.Stderr, " PoiServe ")
	fmt.Fprintln(os.Stderr, "==========")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", pid)
	log.Infof("binary dir: ( %s )", pr.GetExecutableDir())
	log.Infof("config dir: ( %s )", pr.GetConfigDir())
	log.Infof("data dir: ( %s )", dataDir)
	if ix != nil {
		log.Infof("dataset: %s, %s pois", datasetName, utils.FormatWithCommas(ix.Len()))
	} else {
		log.Warn("dataset: none")
	}
	log.Info("status: ready")
	fmt.Fprintln(os.Stderr, "==========")
	fmt.Fprintln(os.Stderr, "Press Ctrl+C to exit")

	log.SetLevel(currentLevel)
}
