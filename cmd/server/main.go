package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tyemirov/vtube/internal/authkit"
	"github.com/tyemirov/vtube/internal/directory"
	"github.com/tyemirov/vtube/internal/directorypg"
	"github.com/tyemirov/vtube/internal/mediastore"
	"github.com/tyemirov/vtube/internal/web"
	webassets "github.com/tyemirov/vtube/web"
	"go.uber.org/zap"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "vtube",
		Short:   "Media platform auth service with password login, JWT sessions, and rotating refresh tokens",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("cookie_domain", "", "Cookie domain; empty for host-only")
	rootCmd.Flags().String("access_token_secret", "", "HS256 signing secret for access tokens")
	rootCmd.Flags().String("refresh_token_secret", "", "HS256 signing secret for refresh tokens")
	rootCmd.Flags().Duration("access_token_ttl", 15*time.Minute, "Access token TTL")
	rootCmd.Flags().Duration("refresh_token_ttl", 10*24*time.Hour, "Refresh token TTL")
	rootCmd.Flags().Bool("dev_insecure_http", false, "Allow insecure HTTP for local dev")
	rootCmd.Flags().String("database_url", "", "Database URL for the user directory (postgres:// or sqlite://; leave empty for in-memory)")
	rootCmd.Flags().String("database_engine", "gorm", "Database engine for postgres URLs: gorm or pgx")
	rootCmd.Flags().String("media_dir", "./media", "Directory for locally stored uploads")
	rootCmd.Flags().String("s3_bucket", "", "S3 bucket for uploads; empty keeps the local media store")
	rootCmd.Flags().String("s3_region", "us-east-1", "S3 region")
	rootCmd.Flags().String("s3_endpoint", "", "Custom S3 endpoint for MinIO-style deployments")
	rootCmd.Flags().String("s3_access_key_id", "", "S3 access key id")
	rootCmd.Flags().String("s3_secret_access_key", "", "S3 secret access key")
	rootCmd.Flags().String("s3_public_base_url", "", "Public URL prefix for uploaded objects")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin clients (required to set SameSite=None cookies)")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled")

	for _, flagName := range []string{
		"listen_addr", "cookie_domain", "access_token_secret", "refresh_token_secret",
		"access_token_ttl", "refresh_token_ttl", "dev_insecure_http",
		"database_url", "database_engine", "media_dir",
		"s3_bucket", "s3_region", "s3_endpoint", "s3_access_key_id", "s3_secret_access_key", "s3_public_base_url",
		"enable_cors", "cors_allowed_origins",
	} {
		_ = viper.BindPFlag(flagName, rootCmd.Flags().Lookup(flagName))
	}

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"

	configCodeMissingAccessSecret     = "config.missing_access_token_secret"
	configCodeMissingRefreshSecret    = "config.missing_refresh_token_secret"
	configCodeSharedSecrets           = "config.access_and_refresh_secrets_must_differ"
	configCodeInvalidAccessTTL        = "config.invalid_access_token_ttl"
	configCodeInvalidRefreshTTL       = "config.invalid_refresh_token_ttl"
	configCodeUnknownDatabaseEngine   = "config.unknown_database_engine"
	configCodeUninitializedServerConf = "config.uninitialized_server_config"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	serverConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, serverConfig))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

// LoadServerConfig reads and validates the token and cookie configuration.
func LoadServerConfig() (authkit.ServerConfig, error) {
	accessSecret := viper.GetString("access_token_secret")
	if accessSecret == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingAccessSecret, "access_token_secret must be provided")
	}

	refreshSecret := viper.GetString("refresh_token_secret")
	if refreshSecret == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingRefreshSecret, "refresh_token_secret must be provided")
	}
	if accessSecret == refreshSecret {
		return authkit.ServerConfig{}, configError(configCodeSharedSecrets, "access and refresh secrets must differ")
	}

	accessTTL := viper.GetDuration("access_token_ttl")
	if accessTTL <= 0 {
		return authkit.ServerConfig{}, configError(configCodeInvalidAccessTTL, "access_token_ttl must be greater than zero")
	}

	refreshTTL := viper.GetDuration("refresh_token_ttl")
	if refreshTTL <= 0 {
		return authkit.ServerConfig{}, configError(configCodeInvalidRefreshTTL, "refresh_token_ttl must be greater than zero")
	}

	engine := viper.GetString("database_engine")
	if engine != "gorm" && engine != "pgx" {
		return authkit.ServerConfig{}, configError(configCodeUnknownDatabaseEngine, "database_engine must be gorm or pgx")
	}

	return authkit.ServerConfig{
		AccessTokenSecret:  []byte(accessSecret),
		RefreshTokenSecret: []byte(refreshSecret),
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
		Issuer:             "vtube-auth",
		CookieDomain:       viper.GetString("cookie_domain"),
		AccessCookieName:   accessCookieName,
		RefreshCookieName:  refreshCookieName,
	}, nil
}

func buildUserDirectory(ctx context.Context, logger *zap.Logger) (authkit.UserDirectory, error) {
	databaseURL := viper.GetString("database_url")
	if databaseURL == "" {
		logger.Info("using in-memory user directory")
		return directory.NewMemoryDirectory(), nil
	}
	if viper.GetString("database_engine") == "pgx" {
		pool, poolErr := directorypg.BuildPool(ctx, databaseURL)
		if poolErr != nil {
			return nil, poolErr
		}
		if schemaErr := directorypg.EnsureSchema(ctx, pool); schemaErr != nil {
			return nil, schemaErr
		}
		logger.Info("using pgx user directory")
		return directorypg.NewPgxDirectory(pool), nil
	}
	databaseDirectory, openErr := directory.NewDatabaseDirectory(ctx, databaseURL)
	if openErr != nil {
		return nil, openErr
	}
	logger.Info("using database user directory", zap.String("driver", databaseDirectory.Driver()))
	return databaseDirectory, nil
}

func buildMediaStore(ctx context.Context, logger *zap.Logger) (mediastore.MediaStore, *mediastore.LocalStore, error) {
	if bucket := viper.GetString("s3_bucket"); bucket != "" {
		s3Store, s3Err := mediastore.NewS3Store(ctx, mediastore.S3Config{
			Region:          viper.GetString("s3_region"),
			Bucket:          bucket,
			AccessKeyID:     viper.GetString("s3_access_key_id"),
			SecretAccessKey: viper.GetString("s3_secret_access_key"),
			BaseEndpoint:    viper.GetString("s3_endpoint"),
			PublicBaseURL:   viper.GetString("s3_public_base_url"),
		})
		if s3Err != nil {
			return nil, nil, s3Err
		}
		logger.Info("using s3 media store", zap.String("bucket", bucket))
		return s3Store, nil, nil
	}
	localStore, localErr := mediastore.NewLocalStore(viper.GetString("media_dir"), "/media")
	if localErr != nil {
		return nil, nil, localErr
	}
	logger.Info("using local media store", zap.String("dir", localStore.RootDir()))
	return localStore, localStore, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	serverConfig, ok := contextValue.(authkit.ServerConfig)
	if !ok {
		return configError(configCodeUninitializedServerConf, "server configuration not prepared; PreRunE must execute before RunE")
	}

	listenAddr := viper.GetString("listen_addr")
	enableCORS := viper.GetBool("enable_cors")

	serverConfig.AllowInsecureHTTP = viper.GetBool("dev_insecure_http")
	serverConfig.SameSiteMode = http.SameSiteStrictMode
	if enableCORS {
		serverConfig.SameSiteMode = http.SameSiteNoneMode
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if enableCORS {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, viper.GetStringSlice("cors_allowed_origins"))
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
	}

	router.GET("/static/auth-client.js", func(contextGin *gin.Context) {
		web.ServeEmbeddedStaticJS(contextGin, webassets.FS, "auth-client.js")
	})

	userDirectory, directoryErr := buildUserDirectory(command.Context(), logger)
	if directoryErr != nil {
		return directoryErr
	}

	mediaStore, localMedia, mediaErr := buildMediaStore(command.Context(), logger)
	if mediaErr != nil {
		return mediaErr
	}
	if localMedia != nil {
		router.Static("/media", localMedia.RootDir())
	}

	codec, codecErr := authkit.NewTokenCodec(serverConfig.TokenConfig(authkit.NewSystemClock()))
	if codecErr != nil {
		return codecErr
	}

	sessionStore := authkit.NewDirectorySessionStore(userDirectory)
	metricsRecorder := authkit.NewCounterMetrics()
	manager := authkit.NewSessionManager(userDirectory, sessionStore, codec, logger, metricsRecorder)

	authkit.MountAuthRoutes(router, serverConfig, manager, codec, logger)
	web.MountAccountRoutes(router, serverConfig, codec, web.NewAccountHandlers(userDirectory, mediaStore, logger))

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", listenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
