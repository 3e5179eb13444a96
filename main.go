package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/h3nryswan/video-transcoder/app"
	"github.com/h3nryswan/video-transcoder/config"
	"github.com/h3nryswan/video-transcoder/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	gray  = "\033[90m"
	reset = "\033[0m"

	shutdownTimeout = 30 * time.Second
)

var hashPassword = pflag.String("hash-password", "", "Print the argon2id hash of a password for auth.users and exit")

func main() {
	gin.SetMode(gin.ReleaseMode)
	pflag.Parse()

	if *hashPassword != "" {
		h, err := security.New().GenerateFromPassword(*hashPassword)
		if err != nil {
			panic(err)
		}

		fmt.Println(h)
		return
	}

	if err := makeLogger("info", "console"); err != nil {
		panic(err)
	}

	cfg, err := config.Setup()
	if err != nil {
		panic(err)
	}

	if err := makeLogger(cfg.App.LogLevel, cfg.App.LogFormat); err != nil {
		panic(err)
	}
	defer zap.L().Sync()

	a, err := app.New(cfg)
	if err != nil {
		panic(err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Host.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zap.L().Info("Server starting", zap.String("addr", srv.Addr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Server stopped unexpectedly", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	zap.L().Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("Failed to shut down http server cleanly", zap.Error(err))
	}

	if err := a.Close(); err != nil {
		zap.L().Error("Failed to close app cleanly", zap.Error(err))
	}
}

func makeLogger(level, format string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level, %w", err)
	}

	var cfg zap.Config

	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
			pae.AppendString(gray + t.Format("15:04:05.000") + reset)
		}
		cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
			pae.AppendString(gray + ec.TrimmedPath() + reset)
		}
		cfg.DisableStacktrace = true
	}

	cfg.Level = zap.NewAtomicLevelAt(lvl)

	log, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger, %w", err)
	}

	zap.ReplaceGlobals(log)
	return nil
}
