package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"restaurant-reviews/src/cache"
	"restaurant-reviews/src/db"
	"restaurant-reviews/src/handlers"
	"restaurant-reviews/src/logger"
	"restaurant-reviews/src/metrics"
	"restaurant-reviews/src/middleware"
	"restaurant-reviews/src/token"
	"restaurant-reviews/src/types"
)

func main() {
	_ = godotenv.Load(".env")

	l, err := logger.Setup(os.Getenv("DEBUG") == "true")
	if err != nil {
		log.Fatal(err)
	}
	defer l.Sync()

	if token.Enabled() && len(token.SigningKey()) == 0 {
		l.Fatal("JWT_SIGNING_KEY environment variable is not set")
	}

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	dbName := os.Getenv("MONGODB_DB")
	if dbName == "" {
		dbName = "restaurants"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := db.NewMongoStore(ctx, uri, dbName, l)
	cancel()
	if err != nil {
		l.Fatalw("mongo connect failed", "uri", uri, "err", err)
	}
	defer store.Close(context.Background())

	if err := store.EnsureIndexes(context.Background()); err != nil {
		l.Fatalw("index creation failed", "err", err)
	}

	nc := cache.OpenFromEnv(l)
	if nc == nil {
		l.Info("neighborhood cache disabled")
	} else if err := nc.Ping(context.Background()); err != nil {
		l.Warnw("redis ping failed", "err", err)
	} else {
		l.Info("neighborhood cache enabled")
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	l.Infow("server started", "addr", addr, "auth", token.Enabled())
	if err := http.ListenAndServe(addr, routes(store, nc, l)); err != nil {
		l.Fatalw("server stopped", "err", err)
	}
}

func routes(client types.DataStore, nc *cache.Neighborhoods, l *zap.SugaredLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.AccessLog(l))
	r.Use(middleware.Metrics)

	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	if token.Enabled() {
		r.Post("/api/token", token.GetToken)
	}

	// guard wraps mutating routes with JWT auth when it is switched on;
	// otherwise the API is public and keeps its documented status codes.
	guard := func(h http.HandlerFunc) http.Handler {
		if token.Enabled() {
			return token.JwtMiddleware(h)
		}
		return h
	}

	r.Route("/restaurants", func(r chi.Router) {
		r.Method(http.MethodPost, "/", guard(func(w http.ResponseWriter, rq *http.Request) {
			handlers.HandleCreateRestaurant(w, rq, client)
		}))
		r.Get("/", func(w http.ResponseWriter, rq *http.Request) {
			handlers.HandleListRestaurants(w, rq, client)
		})
		r.Get("/search", func(w http.ResponseWriter, rq *http.Request) {
			handlers.HandleSearchRestaurants(w, rq, client)
		})
		r.Get("/within", func(w http.ResponseWriter, rq *http.Request) {
			handlers.HandleWithinNeighborhood(w, rq, client, nc)
		})
		r.Post("/within", func(w http.ResponseWriter, rq *http.Request) {
			handlers.HandleWithinPolygon(w, rq, client)
		})
		r.Get("/near", func(w http.ResponseWriter, rq *http.Request) {
			handlers.HandleNearRestaurants(w, rq, client)
		})

		r.Get("/{id}", func(w http.ResponseWriter, rq *http.Request) {
			handlers.HandleGetRestaurant(w, rq, client)
		})
		update := guard(func(w http.ResponseWriter, rq *http.Request) {
			handlers.HandleUpdateRestaurant(w, rq, client)
		})
		r.Method(http.MethodPut, "/{id}", update)
		r.Method(http.MethodPatch, "/{id}", update)
		r.Method(http.MethodDelete, "/{id}", guard(func(w http.ResponseWriter, rq *http.Request) {
			handlers.HandleDeleteRestaurant(w, rq, client)
		}))

		r.Method(http.MethodPost, "/{id}/reviews", guard(func(w http.ResponseWriter, rq *http.Request) {
			handlers.HandleCreateReview(w, rq, client)
		}))
		r.Get("/{id}/reviews", func(w http.ResponseWriter, rq *http.Request) {
			handlers.HandleListReviews(w, rq, client)
		})
	})

	r.Route("/reviews", func(r chi.Router) {
		update := guard(func(w http.ResponseWriter, rq *http.Request) {
			handlers.HandleUpdateReview(w, rq, client)
		})
		r.Method(http.MethodPut, "/{reviewId}", update)
		r.Method(http.MethodPatch, "/{reviewId}", update)
		r.Method(http.MethodDelete, "/{reviewId}", guard(func(w http.ResponseWriter, rq *http.Request) {
			handlers.HandleDeleteReview(w, rq, client)
		}))
	})

	return r
}
