package types

import "github.com/golang-jwt/jwt/v5"

// VoucherClaims is the payload of the signed hotspot access token handed to
// the captive portal after a completed payment.
type VoucherClaims struct {
	Phone      string `json:"phone"`
	Username   string `json:"username"`
	PackageID  string `json:"package_id"`
	PlatformID uint   `json:"platform_id"`
	jwt.RegisteredClaims
}
