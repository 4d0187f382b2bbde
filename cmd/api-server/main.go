// Package main API Server 入口
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"touropedia/internal/apiserver/auth"
	"touropedia/internal/apiserver/server"
	"touropedia/internal/config"
	"touropedia/internal/shared/cache"
	cacheredis "touropedia/internal/shared/cache/redis"
	"touropedia/internal/shared/mailer"
	"touropedia/internal/shared/objstore"
	"touropedia/internal/shared/storage/mongostore"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 切换配置文件）
	cfg := config.Load()

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	// 初始化 MongoDB（持久化业务数据）
	store, err := mongostore.NewStore(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer store.Close()
	log.Println("Connected to MongoDB")

	// 初始化 Redis（限流计数、标签聚合缓存），未配置时降级
	var redisCache cache.Cache
	if cfg.RedisURL != "" {
		redisCache, err = cacheredis.NewStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()
		log.Println("Connected to Redis")
	} else {
		log.Println("Redis not configured, rate limiting disabled")
	}

	// 初始化 MinIO（线路图片），未配置时图片端点不可用
	var images *objstore.Client
	if cfg.MinIO.Endpoint != "" {
		images, err = objstore.NewClient(cfg.MinIO)
		if err != nil {
			log.Fatalf("Failed to connect to object store: %v", err)
		}
		log.Println("Connected to object store")
	}

	authCfg := auth.Config{
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
		CookieTTL: cfg.TokenTTL,
	}

	// 引导管理员账号
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := auth.EnsureAdminUser(bootCtx, store.Users(), cfg.AdminEmail, cfg.AdminPassword); err != nil {
		bootCancel()
		log.Fatalf("Failed to ensure admin user: %v", err)
	}
	bootCancel()

	router := server.NewRouter(cfg.Server, server.Deps{
		AuthCfg: authCfg,
		Store:   store,
		Cache:   redisCache,
		Images:  images,
		Mail:    mailer.NewSMTP(cfg.SMTP),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.APIPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}
