package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/course-advisor/backend/internal/config"
	"github.com/zhouzirui/course-advisor/backend/internal/handler"
	"github.com/zhouzirui/course-advisor/backend/internal/model/catalog"
	"github.com/zhouzirui/course-advisor/backend/internal/observability"
	"github.com/zhouzirui/course-advisor/backend/internal/service/advisor"
	"github.com/zhouzirui/course-advisor/backend/internal/service/ai"
	"github.com/zhouzirui/course-advisor/backend/internal/service/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if cfg.Observability.MetricsEnabled {
		observability.InitMetrics()
	}
	if err := observability.InitTracing(observability.TracingConfig{
		ServiceName: cfg.Observability.ServiceName,
		Exporter:    cfg.Observability.TracesExporter,
	}); err != nil {
		log.Printf("warning: failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := observability.ShutdownTracing(context.Background()); err != nil {
			log.Printf("warning: tracing shutdown failed: %v", err)
		}
	}()

	// 课程数据缺失时仍然启动, 文档模式可用
	store := catalog.LoadDefaults(cfg.Catalog.Dir, cfg.Catalog.CoursesFile, cfg.Catalog.StructureFile)
	if !store.Available() {
		log.Printf("structured course data not found in %s, catalog mode disabled until files are provided", cfg.Catalog.Dir)
	}

	chatService := chat.NewService(cfg.Memory, cfg.AI.Models())

	var advisorService *advisor.Service
	if cfg.AI.Enabled() {
		provider, err := ai.NewProvider(ctx, cfg.AI, nil)
		if err != nil {
			log.Printf("warning: failed to initialize %s provider: %v", cfg.AI.Provider, err)
			log.Println("continuing without advisor functionality")
		} else {
			advisorService = advisor.NewService(chatService, store, provider, advisor.Config{
				Answer: ai.Options{
					MaxTokens:   cfg.AI.MaxTokens,
					Temperature: cfg.AI.Temperature,
					TopP:        cfg.AI.TopP,
				},
				SummaryMaxTokens: cfg.Memory.SummaryMaxTokens,
			})
			log.Printf("advisor initialized with %s provider, default model %s", provider.Name(), cfg.AI.DefaultModel())
		}
	} else {
		log.Printf("%s 凭证未配置，跳过顾问功能初始化", cfg.AI.Provider)
	}

	router := handler.NewRouter(store, chatService, advisorService, handler.Options{
		Models:    cfg.AI.Models(),
		Streaming: cfg.AI.StreamResponse,
		Metrics:   cfg.Observability.MetricsEnabled,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Course advisor backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
