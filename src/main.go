package main

import (
	"context"
	"log"
	"os"
	"path"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/joho/godotenv/autoload"

	"netbill/src/boot"
	"netbill/src/middlewares"
	"netbill/src/payments"
)

const (
	apiPrefix string = "/api/v1"
)

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	return g.Group(apiPrefix)
}

func createRouter() *gin.Engine {
	origin := os.Getenv("WEB_ORIGIN")
	if origin == "" {
		origin = "http://localhost:3000"
	}
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{origin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	return router
}

func registerRoutes(router *gin.Engine, act *payments.Activator) {
	// Provider callbacks and the captive-portal status poll are
	// unauthenticated by nature; everything else sits behind the session
	// check.
	callbackRoutes(router, act)
	statusCheckRoute(router, act)

	authed := apiv1Group(router)
	authed.Use(middlewares.AuthMiddleware)
	paymentHandlers(authed, act)
}

func main() {
	cwd, err := os.Getwd()
	if err == nil {
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			log.Printf("No .env file found: %s\n", err.Error())
		}
	}

	registerValidators()

	boot.InitDb()

	act := payments.NewActivator(
		newRadiusProvisioner(),
		newHTTPSMSSender(),
		[]byte(os.Getenv("VOUCHER_SECRET")),
	)
	boot.InitScheduler(func(ctx context.Context) {
		payments.ReconcilePendingPayments(ctx, act, darajaTransfer)
	})

	router := createRouter()
	registerRoutes(router, act)

	if err := router.Run(":9090"); err != nil {
		log.Fatalf("Error starting server: %s\n", err.Error())
	}
}
