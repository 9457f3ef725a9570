package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/welovename555/hero-sms-dashboard/internal/config"
	"github.com/welovename555/hero-sms-dashboard/internal/credential"
	"github.com/welovename555/hero-sms-dashboard/internal/herosms"
	internalhttp "github.com/welovename555/hero-sms-dashboard/internal/http"
	"github.com/welovename555/hero-sms-dashboard/internal/poll"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	client := herosms.NewClient(
		cfg.Upstream.BaseURL,
		time.Duration(cfg.Upstream.TimeoutSeconds)*time.Second,
		logger.Named("herosms"),
	)
	keys := credential.NewStore(cfg.Session.KeyFile, logger.Named("credential"))
	poller := &poll.Poller{
		Source:          client,
		DefaultInterval: time.Duration(cfg.Poll.DefaultIntervalSeconds) * time.Second,
		MinInterval:     time.Duration(cfg.Poll.MinIntervalSeconds) * time.Second,
		MaxInterval:     time.Duration(cfg.Poll.MaxIntervalSeconds) * time.Second,
		Logger:          logger.Named("poll"),
	}

	h := internalhttp.NewHandler(
		client,
		keys,
		poller,
		logger.Named("http"),
		cfg.Session.CookieName,
		time.Duration(cfg.Session.MaxAgeDays)*24*time.Hour,
		cfg.Session.APIKey,
	)
	srv := internalhttp.NewServer(h, logger.Named("http"))

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		logger.Info("api listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
