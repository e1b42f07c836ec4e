package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/Rajchodisetti/stockpick-trader/internal/stubs"
)

func main() {
	var (
		addr     string
		fixtures string
	)
	flag.StringVar(&addr, "addr", ":8091", "listen address")
	flag.StringVar(&fixtures, "fixtures", "", "brokerage fixtures JSON (default: built-in)")
	flag.Parse()

	fx := stubs.DefaultFixtures()
	if fixtures != "" {
		loaded, err := stubs.LoadFixtures(fixtures)
		if err != nil {
			log.Fatalf("fixtures: %v", err)
		}
		fx = loaded
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/", stubs.NewBrokerageServer(fx))

	log.Printf("stub brokerage listening on %s (login %s)", addr, fx.Username)
	log.Fatal(http.ListenAndServe(addr, mux))
}
