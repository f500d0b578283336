// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/esasky/coords"
	"github.com/stockparfait/esasky/esasky"
	"github.com/stockparfait/esasky/table"
	"github.com/stockparfait/logging"

	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Flags struct {
	Config   string // optional TOML config file
	LogLevel logging.Level
	// Exactly one of List and Query must be present.
	List     string // "maps" or "catalogs"
	Query    string // "maps" or "catalogs"
	Position string // required with -query
	Radius   string
	Missions string // comma separated, or "all"
	Payload  bool   // print ADQL instead of running the queries
	Download bool   // download the maps found by -query maps
	Folder   string // download folder; default: from config
	CSV      bool   // dump CSV format; default: text.
	Rows     int    // max. rows per table; 0 = all
}

func parseKind(s string) (esasky.Kind, error) {
	switch s {
	case "maps":
		return esasky.Observations, nil
	case "catalogs":
		return esasky.Catalogs, nil
	}
	return "", errors.Reason("expected 'maps' or 'catalogs', got '%s'", s)
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("esasky", flag.ExitOnError)
	fs.StringVar(&flags.Config, "config", "", "path to the TOML config file")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	fs.StringVar(&flags.List, "list", "", "list missions: maps or catalogs")
	fs.StringVar(&flags.Query, "query", "", "query missions: maps or catalogs")
	fs.StringVar(&flags.Position, "position", "",
		"object name or coordinates, e.g. \"M51\" or \"202.47 47.19\"")
	fs.StringVar(&flags.Radius, "radius", esasky.ObjectRadius,
		"search radius with units, e.g. \"14'\" or \"0.5 deg\"")
	fs.StringVar(&flags.Missions, "missions", esasky.AllMissions,
		"comma separated mission names, or 'all'")
	fs.BoolVar(&flags.Payload, "payload", false,
		"print the TAP queries without running them")
	fs.BoolVar(&flags.Download, "download", false, "download the maps found")
	fs.StringVar(&flags.Folder, "folder", "", "download folder")
	fs.BoolVar(&flags.CSV, "csv", false, "print tables in CSV format; default: text")
	fs.IntVar(&flags.Rows, "rows", 0, "max. number of rows to print per table")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	if (flags.List == "") == (flags.Query == "") {
		return nil, errors.Reason("expected exactly one of -list or -query")
	}
	if flags.List != "" {
		if _, err := parseKind(flags.List); err != nil {
			return nil, errors.Annotate(err, "invalid -list")
		}
		return &flags, nil
	}
	kind, err := parseKind(flags.Query)
	if err != nil {
		return nil, errors.Annotate(err, "invalid -query")
	}
	if flags.Position == "" {
		return nil, errors.Reason("-query requires -position")
	}
	if flags.Download && kind != esasky.Observations {
		return nil, errors.Reason("-download requires -query maps")
	}
	if flags.Download && flags.Payload {
		return nil, errors.Reason("-download and -payload are mutually exclusive")
	}
	if flags.Rows < 0 {
		return nil, errors.Reason("-rows must be non-negative")
	}
	return &flags, nil
}

type Config struct {
	URL              string   `toml:"url"`
	TimeoutSeconds   float64  `toml:"timeout_seconds"`
	RateLimit        float64  `toml:"rate_limit"` // requests per second
	CacheSize        int      `toml:"cache_size"`
	DownloadFolder   string   `toml:"download_folder"`
	ExcludedMissions []string `toml:"excluded_missions"`
	SesameURL        string   `toml:"sesame_url"`
}

func parseConfig(filePath string) (*Config, error) {
	if filePath == "" {
		return &Config{}, nil
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open config file %s", filePath)
	}
	defer f.Close()

	d := toml.NewDecoder(f)
	var c Config
	if err := d.Decode(&c); err != nil {
		return nil, errors.Annotate(err, "failed to read config file %s", filePath)
	}
	return &c, nil
}

// ClientConfig converts the file config into the client config, leaving the
// unset values to the client defaults.
func (c *Config) ClientConfig() esasky.Config {
	return esasky.Config{
		URL:              c.URL,
		Timeout:          time.Duration(c.TimeoutSeconds * float64(time.Second)),
		RateLimit:        c.RateLimit,
		CacheSize:        c.CacheSize,
		DownloadFolder:   c.DownloadFolder,
		ExcludedMissions: c.ExcludedMissions,
		Resolver:         coords.NewSesame(c.SesameURL),
	}
}

func printTable(w io.Writer, flags *Flags, t *table.Table) error {
	p := table.Params{Rows: flags.Rows}
	if flags.CSV {
		if err := t.WriteCSV(w, p); err != nil {
			return errors.Annotate(err, "failed to print CSV")
		}
		return nil
	}
	if err := t.WriteText(w, p); err != nil {
		return errors.Annotate(err, "failed to print text")
	}
	return nil
}

func list(ctx context.Context, client *esasky.Client, flags *Flags, w io.Writer) error {
	kind, err := parseKind(flags.List)
	if err != nil {
		return errors.Annotate(err, "invalid -list")
	}
	names, err := client.ListNames(ctx, kind)
	if err != nil {
		return errors.Annotate(err, "failed to list %s", kind)
	}
	for _, n := range names {
		fmt.Fprintln(w, n)
	}
	return nil
}

func query(ctx context.Context, client *esasky.Client, flags *Flags, w io.Writer) error {
	kind, err := parseKind(flags.Query)
	if err != nil {
		return errors.Annotate(err, "invalid -query")
	}
	sel := esasky.ParseSelector(flags.Missions)
	if flags.Payload {
		res, err := client.QueryRegionPayload(ctx, kind, flags.Position, flags.Radius, sel)
		if err != nil {
			return errors.Annotate(err, "failed to build queries")
		}
		for _, m := range res.Missions() {
			fmt.Fprintf(w, "%s:\n%s\n", m, res[m].Query)
		}
		return nil
	}
	res, err := client.QueryRegion(ctx, kind, flags.Position, flags.Radius, sel)
	if err != nil {
		return errors.Annotate(err, "failed to query %s", kind)
	}
	if flags.Download {
		return download(ctx, client, flags, res, sel, w)
	}
	for _, m := range res.Missions() {
		fmt.Fprintf(w, "%s: %d rows\n", m, res[m].Len())
		if err := printTable(w, flags, res[m]); err != nil {
			return errors.Annotate(err, "failed to print %s", m)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func download(ctx context.Context, client *esasky.Client, flags *Flags, res esasky.QueryResult, sel esasky.Selector, w io.Writer) error {
	downloaded, err := client.GetMaps(ctx, res, sel, flags.Folder)
	if err != nil {
		return errors.Annotate(err, "failed to download maps")
	}
	defer downloaded.Close()

	for _, m := range downloaded.Missions() {
		for _, id := range observationIDs(downloaded[m]) {
			for _, p := range downloaded[m][id].Products() {
				fmt.Fprintf(w, "%s %s %s\n", m, id, p.Path())
			}
		}
	}
	return nil
}

func observationIDs(obs map[string]*esasky.Observation) []string {
	ids := maps.Keys(obs)
	slices.Sort(ids)
	return ids
}

func run(ctx context.Context, flags *Flags, w io.Writer) error {
	config, err := parseConfig(flags.Config)
	if err != nil {
		return errors.Annotate(err, "failed to parse config")
	}
	client, err := esasky.NewClient(config.ClientConfig())
	if err != nil {
		return errors.Annotate(err, "failed to create client")
	}
	if flags.List != "" {
		return list(ctx, client, flags, w)
	}
	return query(ctx, client, flags, w)
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := run(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
