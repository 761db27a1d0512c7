package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelcast/mirror/events"
	srtingest "github.com/kestrelcast/mirror/ingest/srt"
	"github.com/kestrelcast/mirror/recorder"
	"github.com/kestrelcast/mirror/sessions"
)

var version = "dev"

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	srtAddr := envOr("SRT_ADDR", ":6000")
	recordDir := envOr("RECORD_DIR", "recordings")
	record := envOr("RECORD", "") != ""
	format := recorder.FormatMP4
	if envOr("RECORD_FORMAT", "mp4") == "mkv" {
		format = recorder.FormatMatroska
	}
	width := envOrInt("FRAME_WIDTH", 1080)
	height := envOrInt("FRAME_HEIGHT", 1920)

	if record {
		if err := os.MkdirAll(recordDir, 0o755); err != nil {
			slog.Error("failed to create record directory", "dir", recordDir, "error", err)
			os.Exit(1)
		}
	}

	slog.Info("mirror starting",
		"version", version,
		"srt", srtAddr,
		"record", record,
		"record_dir", recordDir,
	)

	bus := events.New()
	bus.Subscribe(func(ev events.Event) {
		slog.Info("session stream stopped", "session", ev.SessionKey)
	})

	mgr := sessions.New(bus, nil)
	opts := sessions.Options{
		Record:        record,
		RecordDir:     recordDir,
		RecordFormat:  format,
		Width:         width,
		Height:        height,
		RecordComment: fmt.Sprintf("Recorded by mirror %s", version),
	}

	srtSrv := srtingest.NewServer(srtAddr, mgr, opts, nil)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srtSrv.Start(ctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
