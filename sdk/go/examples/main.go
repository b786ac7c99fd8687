package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"Intent-Solver/sdk/go/intentsolver"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/intents", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(intentsolver.Order{
			IntentType:         "swap",
			SourceChainID:      1,
			DestinationChainID: 8453,
			InputToken:         "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE",
			InputAmount:        "1",
			OutputToken:        "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			MinOutputAmount:    "2970.000000",
			Recipient:          "0x1111111111111111111111111111111111111111",
		})
	})
	mux.HandleFunc("/api/v1/orders/encode", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"primaryType": "GaslessCrossChainOrder"})
	})
	mux.HandleFunc("/api/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(intentsolver.OrderRecord{ID: "order-demo", Status: "queued"})
		default:
			_ = json.NewEncoder(w).Encode([]intentsolver.OrderRecord{{ID: "order-demo", Status: "dispatched"}})
		}
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := intentsolver.NewClient(srv.URL, srv.Client())
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := client.ResolveIntent(ctx, "swap 1 ETH on mainnet to USDC on base",
		"0x1111111111111111111111111111111111111111", 1)
	if err != nil {
		panic(err)
	}
	fmt.Printf("resolved intent type=%s min output=%s\n", result.Order.IntentType, result.Order.MinOutputAmount)

	signable, err := client.EncodeOrder(ctx, result.Order, "0x1111111111111111111111111111111111111111")
	if err != nil {
		panic(err)
	}
	fmt.Printf("typed data payload: %s\n", signable)

	record, err := client.SubmitOrder(ctx, result.Order, signable, "0x00",
		"0x1111111111111111111111111111111111111111")
	if err != nil {
		panic(err)
	}
	fmt.Printf("submitted order %s (status=%s)\n", record.ID, record.Status)
}
