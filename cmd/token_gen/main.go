// token_gen issues a device JWT by hand, for wiring up a test client
// without going through /api/v1/mobile/register.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jballard86/frigate-push-gateway/internal/tokens"
)

func main() {
	deviceID := flag.String("device", "dev-device", "Device id to embed in the token")
	platform := flag.String("platform", "android", "Device platform")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	key := os.Getenv("JWT_SIGNING_KEY")
	if key == "" {
		key = "dev-secret-do-not-use-in-prod"
	}

	mgr := tokens.NewManager(key)
	token, err := mgr.GenerateDeviceToken(*deviceID, *platform, *ttl)
	if err != nil {
		panic(err)
	}
	fmt.Println(token)
}
