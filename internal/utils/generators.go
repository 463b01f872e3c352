package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateGatewayRef builds the externally visible transaction reference
// attached to every order: TIKET-<unix millis>-<random>.
func GenerateGatewayRef() string {
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(1000))
	return fmt.Sprintf("TIKET-%d-%d", time.Now().UnixMilli(), randomNum.Int64())
}
