package config

import (
	"fmt"
	"os"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

// GetGatewayChallenge is the shared secret third-party gateway callbacks must
// echo back before they are trusted.
func GetGatewayChallenge() string {
	return os.Getenv("GATEWAY_CHALLENGE")
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

// DARAJA_TIMESTAMP_FORMAT is the timestamp layout Daraja expects in STK
// password derivation.
const DARAJA_TIMESTAMP_FORMAT = "20060102150405"
