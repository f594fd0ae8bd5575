// Command kvshard runs the sharded in-memory RESP key-value server.
package main

import (
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	_ "go.uber.org/automaxprocs" // sets GOMAXPROCS from cgroup limits on import

	"github.com/kvshard/kvshard/config"
	"github.com/kvshard/kvshard/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "kvshard:", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	cfg, err := config.Parse(argv, os.Getenv)
	if err != nil {
		return err
	}

	levelName, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return err
	}

	logger, err := buildLogger(level, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = runtime.GOMAXPROCS(0)
	}

	srv := server.New(server.Options{
		Addr:        cfg.Addr,
		WorkerCount: workerCount,
		QueueDepth:  256,
		Logger:      logger,
	})
	defer srv.Close()

	logger.Info("starting kvshard",
		zap.String("addr", cfg.Addr),
		zap.Int("workers", workerCount),
		zap.String("log_level", levelName),
	)
	return srv.ListenAndServe()
}

// buildLogger wires zap to stderr, or to a rotating lumberjack file when
// logFile is set, matching the original's RUST_LOG-driven env_logger
// bootstrap in spirit (configurable level, one process-lifetime logger).
func buildLogger(level zapcore.Level, logFile string) (*zap.Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	var sink zapcore.WriteSyncer
	if logFile != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	} else {
		sink = zapcore.AddSync(os.Stderr)
	}

	core := zapcore.NewCore(encoder, sink, level)
	return zap.New(core, zap.AddCaller()), nil
}
