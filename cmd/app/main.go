package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"time"

	"app/cfg"
	"app/db"
	"app/internal/app/api"
	"app/internal/app/assembler"
	"app/internal/app/pipeline"
	"app/pkg/tts"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "cfg-path", "cfg/cfg.yaml", "path to config file")
	flag.Parse()

	var cfg *cfg.Config
	if cfgFile, err := os.ReadFile(cfgPath); err != nil {
		log.Fatalf("can't open %s file: %v", cfgPath, err)
	} else if err = yaml.Unmarshal(cfgFile, &cfg); err != nil {
		log.Fatal("can't unmarshal cfg.yaml file", err)
	}

	if cfg.StaticDir == "" {
		cfg.StaticDir = "static"
	}

	createDbCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := db.New(createDbCtx, &cfg.DB)
	if err != nil {
		log.Fatal("failed to init db: ", err)
	}
	defer db.Close()

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	tts.RegisterMetrics(reg)
	pipeline.RegisterMetrics(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	localTts := tts.NewLocalClient(httpClient, &cfg.LocalTTS, logger.WithGroup("local_tts"))
	googleTts := tts.NewGoogleClient(httpClient, &cfg.GoogleTTS, db, logger.WithGroup("google_tts"))

	providers := tts.NewRegistry(
		tts.Entry{ID: tts.ProviderLocal, Name: "Local XTTS", Provider: localTts},
		tts.Entry{ID: tts.ProviderGoogle, Name: "Google Cloud TTS", Provider: googleTts},
	)

	queue := pipeline.NewQueue()
	worker := pipeline.NewWorker(logger.WithGroup("worker"), queue, db, providers)
	submitter := pipeline.NewSubmitter(logger.WithGroup("submitter"), db, queue, cfg.StaticDir)

	asm := assembler.New(logger.WithGroup("assembler"), db, cfg.StaticDir)

	api := api.NewAPI(&cfg.Api, logger.WithGroup("api"), db, providers, submitter, asm, cfg.StaticDir)

	router := api.NewRouter()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	srv := &http.Server{
		Addr:           ":" + strconv.Itoa(cfg.Api.Port),
		Handler:        router,
		MaxHeaderBytes: 20971520,
	}

	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()

		logger.Info("Starting server")

		if err := srv.ListenAndServe(); err != nil {
			logger.Error("ListenAndServe finished", "err", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()

		logger.Info("Starting conversion worker")

		worker.Run(ctx)

		logger.Info("Conversion worker finished")
	}()

	select {
	case <-ctx.Done():
	case <-stop:
		logger.Info("Interrupt triggerred")
		cancel()
	}

	queue.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err)
	}

	wg.Wait()
}
