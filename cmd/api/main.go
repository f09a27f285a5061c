// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/askpdf/internal/auth"
	"github.com/yourusername/askpdf/internal/config"
	"github.com/yourusername/askpdf/internal/database"
	"github.com/yourusername/askpdf/internal/mail"
	"github.com/yourusername/askpdf/internal/pdf"
	"github.com/yourusername/askpdf/internal/storage"
	"github.com/yourusername/askpdf/internal/token"
	"github.com/yourusername/askpdf/internal/user"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// データベース接続とマイグレーション
	ctx := context.Background()
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// バイナリ保存領域の初期化
	blobs, err := storage.NewLocal(cfg.PDFDir)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// トークンサービスの初期化
	tokens, err := token.NewService(cfg.SecretKey, cfg.SigningAlgorithm, cfg.AccessTokenTTL, cfg.ResetTokenTTL)
	if err != nil {
		log.Fatalf("Failed to initialize token service: %v", err)
	}

	// SMTP未設定の場合はリセットリンクをログに出すだけの通知に切り替える
	var notifier mail.Notifier
	if cfg.SMTPUser != "" && cfg.SMTPPassword != "" {
		notifier = mail.NewSMTPNotifier(mail.SMTPConfig{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			User:        cfg.SMTPUser,
			Password:    cfg.SMTPPassword,
			From:        cfg.EmailFrom,
			FrontendURL: cfg.FrontendURL,
		}, logger)
	} else {
		notifier = &mail.LogNotifier{FrontendURL: cfg.FrontendURL, Logger: logger}
	}

	userRepo := user.NewPostgresRepository(db)
	pdfRepo := pdf.NewPostgresRepository(db)
	pdfService := pdf.NewService(pdfRepo, blobs, cfg.MaxFileSize, logger)
	authManager := auth.NewManager(userRepo, tokens, notifier, logger)

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
	}
	router.Use(cors.New(corsConfig))

	// ルーティングの設定
	setupRoutes(router, authManager, pdfService, tokens, userRepo)

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// handleRoot はAPIのルートエンドポイントのハンドラーです。
func handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to askPDF API",
		"docs":    "/docs",
	})
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// setupRoutes は認証とPDFのエンドポイントを配線します。
func setupRoutes(router *gin.Engine, authManager *auth.Manager, pdfService *pdf.Service, tokens *token.Service, users user.Repository) {
	router.GET("/", handleRoot)
	router.GET("/health", handleHealth)

	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/signup", authManager.Signup)
		authRoutes.POST("/login", authManager.Login)
		authRoutes.GET("/me", authManager.RequireAuth(), authManager.Me)
		authRoutes.POST("/forgot-password", authManager.ForgotPassword)
		authRoutes.POST("/reset-password", authManager.ResetPassword)
	}

	pdfRoutes := router.Group("/pdf")
	{
		// ビューアはヘッダーを送れないため、/view のみクエリトークン認証
		pdfRoutes.GET("/:id/view", pdf.ViewHandler(pdfService, tokens, users))

		protected := pdfRoutes.Group("")
		protected.Use(authManager.RequireAuth())
		{
			protected.POST("/upload", pdf.UploadHandler(pdfService))
			protected.GET("/list", pdf.ListHandler(pdfService))
			protected.GET("/:id", pdf.GetHandler(pdfService))
			protected.DELETE("/:id", pdf.DeleteHandler(pdfService))
		}
	}
}
