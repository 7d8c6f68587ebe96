package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lob/internal/api"
	"lob/internal/bots"
	"lob/internal/quote"
	"lob/internal/registry"
	"lob/internal/router"
	"lob/internal/store"
	"lob/internal/token"
)

func main() {
	port := flag.String("port", "8088", "server port")
	dbPath := flag.String("db", "lob.db", "SQLite database path")
	corsOrigins := flag.String("cors", "", "comma-separated allowed CORS origins (empty = allow all for dev)")
	enableBots := flag.Bool("bots", true, "run the demo market maker and noise traders")
	refPrice := flag.Uint64("ref-price", 4500, "price ticks the demo bots quote around")
	flag.Parse()

	st, err := store.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Demo assets and the one seeded market. Further markets can be created
	// over the API.
	bank := token.NewBank()
	for _, a := range []token.Asset{
		{Symbol: "WETH", Decimals: 9},
		{Symbol: "USDC", Decimals: 6},
	} {
		if err := bank.CreateAsset(a.Symbol, a.Decimals); err != nil {
			log.Fatalf("Failed to create asset %s: %v", a.Symbol, err)
		}
	}

	reg := registry.New(bank)
	marketID, err := reg.CreateOrderBook("WETH", "USDC", 6, 3)
	if err != nil {
		log.Fatalf("Failed to create WETH/USDC market: %v", err)
	}

	rt := router.New(reg, bank)
	helper := quote.NewHelper(reg, rt)

	server := api.NewServer(bank, reg, rt, helper, st)
	if *corsOrigins != "" {
		origins := strings.Split(*corsOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		server.SetCORSOrigins(origins)
		log.Printf("CORS restricted to: %v", origins)
	}

	var botManager *bots.Manager
	if *enableBots {
		botManager, err = bots.CreateEcosystem(bank, reg, rt, marketID, *refPrice)
		if err != nil {
			log.Fatalf("Failed to create bots: %v", err)
		}
		botManager.StartAll()
		log.Printf("Started %d demo bots on market %d", botManager.Count(), marketID)
	}

	addr := ":" + *port
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("Starting exchange on http://localhost%s", addr)
		log.Printf("Database: %s", *dbPath)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	if botManager != nil {
		botManager.StopAll()
		log.Println("Bots stopped")
	}

	server.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("HTTP server stopped")

	if err := st.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}
	log.Println("Shutdown complete")
}
