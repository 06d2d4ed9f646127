package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/voyago/booking-backend/internal/utils"
)

func main() {
	size := flag.Int("bytes", 48, "number of random bytes in the secret")
	flag.Parse()

	fmt.Println("===========================================")
	fmt.Println("JWT Secret Generator for the Booking Backend")
	fmt.Println("===========================================")
	fmt.Println()

	secret, err := utils.GenerateJWTSecret(*size)
	if err != nil {
		log.Fatalf("Failed to generate secret: %v", err)
	}

	fmt.Println("✅ Secret generated successfully!")
	fmt.Println()
	fmt.Println("Share it with the admin auth service and add it to your .env file:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", secret)
	fmt.Println()
	fmt.Println("⚠️  IMPORTANT: Keep this secret safe and never commit it to version control!")
	fmt.Println("===========================================")
}
