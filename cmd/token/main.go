package main

import (
	"flag"
	"fmt"
	"os"

	"classchat/internal/auth"
	"classchat/internal/config"
)

// token mints a credential for a local websocket session:
//
//	JWT_SECRET=... go run ./cmd/token -user student-1
func main() {
	userID := flag.String("user", "", "Account id to issue the token for")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "Usage: token -user <account-id>")
		os.Exit(1)
	}

	cfg := config.Load()
	token, err := auth.NewService(nil, cfg.JWT).GenerateToken(*userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
