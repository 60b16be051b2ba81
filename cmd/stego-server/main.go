// Command stego-server runs the origin-facing half of the stego proxy
// pair. CLI parsing itself is out of scope for this module (spec.md
// Non-goals); this is a minimal flag-based entry point, grounded on
// original_source/stegoproxy/cli.py's "server" command defaults.
package main

import (
	"flag"
	"os"

	"github.com/sh4nks/stegoproxy/pkg/codec"
	"github.com/sh4nks/stegoproxy/pkg/config"
	"github.com/sh4nks/stegoproxy/pkg/listener"
	"github.com/sh4nks/stegoproxy/pkg/logging"
)

func main() {
	host := flag.String("host", "127.0.0.1:9999", "address to bind to")
	algorithm := flag.String("algorithm", "null", "stego algorithm: null, lsb or exif")
	coverDir := flag.String("cover-dir", "./covers", "directory of cover images")
	reverseHostname := flag.String("reverse-hostname", "example.com", "decoy hostname proxied to for non-covert requests")
	logLevel := flag.String("log-level", "INFO", "DEBUG, INFO, WARNING or ERROR")
	logFile := flag.String("log-file", "", "log file path (empty disables file logging)")
	upstreamProxy := flag.String("upstream-proxy", "", "socks5://[user:pass@]host:port to reach the origin through, if any")
	maxContentLen := flag.Int("max-content-len", config.DefaultMaxContentLen, "maximum bytes embedded per cover, regardless of codec capacity")
	flag.Parse()

	log := logging.New(logging.Options{Level: *logLevel, Stdout: true, Filename: *logFile})
	defer log.Sync() //nolint:errcheck

	proxyCfg, err := config.ParseUpstreamProxy(*upstreamProxy)
	if err != nil {
		log.Fatalw("invalid upstream proxy", "err", err)
	}

	cfg := config.Config{
		Algorithm:       config.Algorithm(*algorithm),
		CoverDir:        *coverDir,
		MaxContentLen:   *maxContentLen,
		ListenAddr:      *host,
		ReverseHostname: *reverseHostname,
		LogLevel:        *logLevel,
		LogFile:         *logFile,
		UpstreamProxy:   proxyCfg,
	}.WithDefaults()

	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "err", err)
	}

	covers, err := codec.LoadPool(cfg.CoverDir)
	if err != nil && cfg.Algorithm != config.AlgorithmNull {
		log.Fatalw("loading cover pool", "err", err)
	}

	ln, err := listener.NewServerListener(cfg, log, covers)
	if err != nil {
		log.Fatalw("building server listener", "err", err)
	}

	if err := ln.Serve(); err != nil {
		log.Errorw("server listener stopped", "err", err)
		os.Exit(1)
	}
}
