// Command compactor shrinks an oversized capture payload before import.
//
// Usage:
//
//	compactor -in capture.json -out compacted.json       # default 150 MB target
//	compactor -in capture.zip -out small.json -target 50 # custom target
//	compactor -in capture.json -aggressive               # strip everything optional
package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"os"

	"github.com/stickerverse/figmacionvert-v3-sub010/archive"
	"github.com/stickerverse/figmacionvert-v3-sub010/compact"
)

func main() {
	inPath := flag.String("in", "", "input capture (raw payload JSON or capture archive zip)")
	outPath := flag.String("out", "", "output payload JSON path (default: stdout)")
	targetMB := flag.Int("target", compact.DefaultTargetMB, "target payload size in MB")
	aggressive := flag.Bool("aggressive", false, "force aggressive stripping regardless of size")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *inPath == "" {
		logger.Error("compactor: -in is required")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(logger, *inPath, *outPath, *targetMB, *aggressive); err != nil {
		logger.Error("compactor: fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, inPath, outPath string, targetMB int, aggressive bool) error {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}

	capt, err := archive.Read(data)
	if err != nil {
		return err
	}

	result := compact.Run(&capt.Payload, compact.Options{
		TargetMB:   targetMB,
		Aggressive: aggressive,
	})
	logger.Info("compaction done",
		"original_bytes", result.OriginalBytes,
		"final_bytes", result.FinalBytes,
		"removed_images", result.RemovedImages,
		"removed_svgs", result.RemovedSVGs,
		"truncated_nodes", result.TruncatedNodes,
		"aggressive", result.Aggressive,
		"compacted", result.Compacted,
	)

	out, err := json.Marshal(&capt.Payload)
	if err != nil {
		return err
	}
	if outPath == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	return os.WriteFile(outPath, out, 0o644)
}
