package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quickcash/quickcash-gobackend/internal/config"
	"github.com/quickcash/quickcash-gobackend/internal/db"
	"github.com/quickcash/quickcash-gobackend/internal/handlers"
	"github.com/quickcash/quickcash-gobackend/internal/ledger"
	"github.com/quickcash/quickcash-gobackend/internal/mongostore"
	"github.com/quickcash/quickcash-gobackend/internal/notify"
	"github.com/quickcash/quickcash-gobackend/internal/recon"
	"github.com/quickcash/quickcash-gobackend/internal/services"
)

func main() {
	cfg := config.Load()
	handlers.SetJWTSecret(cfg.JWTSecret)

	// Connect to MongoDB
	client, err := db.Connect(context.Background(), cfg.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	store := mongostore.NewStore(client, cfg.DBName)
	if err := store.EnsureIndexes(context.Background()); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	// Reconciliation worker replays aggregate rollup deltas that failed
	// after a committed transfer.
	reconCtx, stopRecon := context.WithCancel(context.Background())
	defer stopRecon()
	reconWorker := recon.NewWorker(store)
	go reconWorker.Run(reconCtx)

	hub := notify.NewHub()

	// Initialize services and handlers
	userService := services.NewUserService(store)
	authority := ledger.NewAuthority(store, userService, cfg.AllowImplicitAccounts)
	executor := ledger.NewExecutor(store, hub, reconWorker)
	walletService := services.NewWalletService(store, authority, executor)

	userHandler := handlers.NewUserHandler(userService)
	walletHandler := handlers.NewWalletHandler(walletService)
	adminHandler := handlers.NewAdminHandler(userService, walletService)
	wsHandler := handlers.NewWSHandler(hub)

	// Set up router
	router := mux.NewRouter()
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "HEAD")

	router.HandleFunc("/api/register", userHandler.Register).Methods("POST")
	router.HandleFunc("/api/login", userHandler.Login).Methods("POST")
	router.HandleFunc("/api/users", userHandler.GetUsers).Methods("GET")

	router.HandleFunc("/api/transfer", walletHandler.Transfer).Methods("POST")
	router.HandleFunc("/api/cashout", walletHandler.CashOut).Methods("POST")
	router.HandleFunc("/api/cashin", walletHandler.CashIn).Methods("POST")
	router.HandleFunc("/api/balance", walletHandler.Balance).Methods("GET")
	router.HandleFunc("/api/transactions", walletHandler.History).Methods("GET")
	router.HandleFunc("/api/transaction/{reference}", walletHandler.GetTransaction).Methods("GET")

	router.HandleFunc("/api/admin/agent/{mobileNumber}/approve", adminHandler.ApproveAgent).Methods("PATCH")
	router.HandleFunc("/api/admin/account/{mobileNumber}/blocked", adminHandler.SetBlocked).Methods("PATCH")
	router.HandleFunc("/api/admin/aggregate", adminHandler.OperatorAggregate).Methods("GET")
	router.HandleFunc("/api/admin/agent/{mobileNumber}/aggregate", adminHandler.AgentAggregate).Methods("GET")

	router.HandleFunc("/ws", wsHandler.Serve).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Start server. No global write timeout: websocket connections are
	// long-lived.
	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Printf("Server running on port %s", cfg.Port)
	log.Fatal(server.ListenAndServe())
}
