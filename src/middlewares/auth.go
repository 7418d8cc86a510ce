package middlewares

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// AuthResult is what the external authentication service answers with.
type AuthResult struct {
	Success bool `json:"success"`
	Admin   bool `json:"admin"`
}

var authHTTPClient = &http.Client{Timeout: 10 * time.Second}

// Authenticate is the black-box session check. Swappable in tests.
var Authenticate = func(token string) (*AuthResult, error) {
	payload, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return nil, err
	}
	resp, err := authHTTPClient.Post(os.Getenv("AUTH_URL")+"/authenticate", "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var result AuthResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func AuthMiddleware(ctx *gin.Context) {
	bearerToken := ctx.Request.Header.Get("Authorization")
	if !strings.HasPrefix(bearerToken, "Bearer") {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	parts := strings.Split(bearerToken, " ")
	if len(parts) < 2 || parts[1] == "" {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	result, err := Authenticate(parts[1])
	if err != nil {
		log.Printf("[auth] Error authenticating token: %s\n", err.Error())
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if !result.Success {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	ctx.Set("admin", result.Admin)
}

func AdminOnly(ctx *gin.Context) {
	if !ctx.GetBool("admin") {
		ctx.AbortWithStatus(http.StatusForbidden)
		return
	}
}
