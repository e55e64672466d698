// Command mint-token signs an access token with JWT_SECRET so operators can
// call the booking API without the external auth service.
//
//	mint-token -sub 17 -role STAFF -ttl 2h
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/utils"
)

func main() {
	_ = godotenv.Load()
	sub := flag.String("sub", "", "actor id placed in the sub claim")
	role := flag.String("role", "STAFF", "CLIENT, STAFF or ADMIN")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if model.ParseRole(*role) == model.RoleUnknown {
		log.Fatalf("unknown role %q", *role)
	}
	tok, err := utils.NewAccessToken(os.Getenv("JWT_SECRET"), *sub, *role, *ttl)
	if err != nil {
		log.Fatalf("mint token: %v", err)
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
}
