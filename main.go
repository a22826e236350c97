package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/orbitalshelf/server/config"
	"github.com/orbitalshelf/server/handlers"
	"github.com/orbitalshelf/server/library"
	"github.com/orbitalshelf/server/middleware"
	"github.com/orbitalshelf/server/service"
	"github.com/orbitalshelf/server/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config:", err)
	}

	ctx := context.Background()

	local, err := store.OpenLocal(cfg.DataDir)
	if err != nil {
		log.Fatal("local store:", err)
	}
	defer func() {
		if err := local.Close(); err != nil {
			log.Println("local store close:", err)
		}
	}()

	var db *store.DB
	var remote library.RemoteStore
	if cfg.MongoURI != "" {
		db, err = store.NewMongoDB(ctx, cfg.MongoURI, cfg.DBName)
		if err != nil {
			log.Println("warning: mongodb unreachable, running on local snapshots only:", err)
		} else {
			remote = db
			defer func() {
				if err := db.Disconnect(context.Background()); err != nil {
					log.Println("mongodb disconnect:", err)
				}
			}()
		}
	} else {
		log.Println("MONGODB_URI not set; running on local snapshots only")
	}

	manager := library.NewManager(remote, local)
	defer manager.Close()

	authHandler := &handlers.AuthHandler{
		DB:           db,
		JWTSecret:    cfg.JWTSecret,
		DefaultEmail: cfg.AuthEmail,
		DefaultPass:  cfg.AuthPass,
	}
	booksHandler := &handlers.BooksHandler{Library: manager}
	metadataHandler := &handlers.MetadataHandler{Client: service.NewMetadataClient(cfg.MetadataLang)}

	r := chi.NewRouter()
	r.Use(middleware.AllowAll())
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"welcome to orbital shelf."}`))
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.AssetUpstream != "" {
		assets := cfg.Assets
		if assets == nil {
			assets = service.DefaultAssets
		}
		cache := service.NewAssetCache(local, cfg.AssetUpstream, cfg.AssetCacheVersion, assets)
		assetsHandler := &handlers.AssetsHandler{Cache: cache}
		r.Get("/assets/*", assetsHandler.Serve)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)
		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Get("/auth/me", authHandler.Me)

			r.Get("/books", booksHandler.List)
			r.Post("/books", booksHandler.Create)
			r.Get("/books/{id}", booksHandler.Get)
			r.Patch("/books/{id}", booksHandler.Update)
			r.Delete("/books/{id}", booksHandler.Delete)
			r.Post("/books/{id}/logs", booksHandler.AddLog)

			r.Get("/tags", booksHandler.Tags)
			r.Get("/genres", booksHandler.Genres)

			r.Get("/library/status", booksHandler.Status)
			r.Post("/library/migrate", booksHandler.Migrate)
			r.Post("/import/ai", booksHandler.ImportAI)

			r.Get("/metadata/isbn/{isbn}", metadataHandler.ByISBN)
			r.Get("/metadata/search", metadataHandler.Search)
		})
	})

	server := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Println("server listening on :" + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println("shutdown:", err)
	}
}
