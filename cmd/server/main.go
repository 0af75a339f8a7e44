package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/tripook/tripook-backend/internal/config"
	"github.com/tripook/tripook-backend/internal/database"
	"github.com/tripook/tripook-backend/internal/handlers"
	"github.com/tripook/tripook-backend/internal/middleware"
	"github.com/tripook/tripook-backend/internal/routes"
	"github.com/tripook/tripook-backend/internal/services"
	"github.com/tripook/tripook-backend/internal/store"
	"github.com/tripook/tripook-backend/internal/token"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	if cfg.JWTSecret == "your-secret-key-change-in-production" && cfg.IsProduction() {
		log.Fatal("JWT_SECRET must be set in production")
	}

	// Connect to MongoDB
	log.Printf("Connecting to MongoDB...")
	client, db, err := database.Connect(cfg.MongoURI)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.Disconnect(client)

	// Connect to Redis
	log.Printf("Connecting to Redis...")
	redisClient, err := database.ConnectRedis(cfg.RedisURI)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	// Stores and indexes
	users := store.NewUserStore(db)
	activity := store.NewActivityStore(db)
	if err := users.EnsureIndexes(context.Background()); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure user indexes: %v", err)
	}
	if err := activity.EnsureIndexes(context.Background()); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure login activity indexes: %v", err)
	} else {
		log.Println("✅ MongoDB indexes ensured")
	}

	// Cloudinary (optional: provider license uploads)
	var uploader services.Uploader
	if cfg.CloudinaryName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cld, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			log.Printf("Warning: Failed to initialize Cloudinary: %v", err)
			log.Println("License uploads will not be available")
		} else {
			uploader = cld
			log.Println("✅ Cloudinary service initialized")
		}
	} else {
		log.Println("Warning: Cloudinary credentials not found. License uploads will not be available")
	}

	// Services
	issuer := token.NewIssuer(cfg.JWTSecret)
	mailer := services.NewBrevoMailer(cfg.BrevoAPIKey, cfg.SenderEmail, cfg.SenderName)
	recorder := services.NewLoginRecorder(activity, redisClient)
	accounts := services.NewAccountService(users, issuer, mailer, recorder, cfg.FrontendURL)

	// Setup router
	r := chi.NewRouter()

	// Custom CORS: set headers and respond to OPTIONS with 200 so preflight never gets 403
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	if cfg.IsProduction() {
		r.Use(middleware.SecurityHeaders)
		log.Println("✅ Production security headers enabled")
	}
	r.Use(middleware.NewRateLimiter(redisClient).Middleware)

	// Health check (no auth)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	routes.SetupRoutes(r, routes.Deps{
		Auth:         handlers.NewAuthHandler(accounts),
		Provider:     handlers.NewProviderHandler(accounts, uploader),
		Admin:        handlers.NewAdminHandler(accounts, activity),
		LoginFeed:    handlers.NewLoginFeedHandler(issuer, users, redisClient),
		Authn:        middleware.NewAuthenticator(issuer, users),
		LoginLimiter: middleware.NewLoginLimiter(),
	})

	log.Printf("🚀 Tripook backend running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
