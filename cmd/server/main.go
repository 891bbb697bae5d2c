package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/NorthgateLabs/livechat_svc/internal/chat"
	"github.com/NorthgateLabs/livechat_svc/internal/httpapi"
	"github.com/NorthgateLabs/livechat_svc/internal/identity"
	"github.com/NorthgateLabs/livechat_svc/internal/storage"
	"github.com/NorthgateLabs/livechat_svc/internal/uploads"
)

const (
	commandUseName              = "server"
	commandShortDescription     = "Run the live-chat server"
	commandLongDescription      = "Launch the live-chat widget backend: REST message pipeline plus the duplex presence endpoints"
	missingConfigurationMessage = "missing required configuration"
	loggerCreationErrorMessage  = "logger"
	logEventListening           = "listening"
	logFieldAddress             = "addr"

	flagNameApplicationAddress     = "app-addr"
	flagNameDatabaseDriverName     = "db-driver"
	flagNameDatabaseDataSourceName = "db-dsn"
	flagNameTokenSecret            = "token-secret"
	flagNameAdminBearerToken       = "admin-bearer-token"
	flagNameUploadsDirectory       = "uploads-dir"
	flagNamePublicBaseURL          = "public-base-url"

	flagUsageApplicationAddress     = "address for the HTTP server to listen on"
	flagUsageDatabaseDriverName     = "database driver name (sqlite or postgres)"
	flagUsageDatabaseDataSourceName = "database connection string"
	flagUsageTokenSecret            = "HS256 secret for member access tokens"
	flagUsageAdminBearerToken       = "bearer token required for admin API access"
	flagUsageUploadsDirectory       = "directory attachment uploads are written into"
	flagUsagePublicBaseURL          = "base URL prefixed to attachment links"

	environmentKeyApplicationAddress = "APP_ADDR"
	environmentKeyDatabaseDriver     = "DB_DRIVER"
	environmentKeyDatabaseDataSource = "DB_DSN"
	environmentKeyTokenSecret        = "TOKEN_SECRET"
	environmentKeyAdminBearerToken   = "ADMIN_BEARER_TOKEN"
	environmentKeyUploadsDirectory   = "UPLOADS_DIR"
	environmentKeyPublicBaseURL      = "PUBLIC_BASE_URL"

	defaultApplicationAddress = ":8080"
	defaultDatabaseDriverName = storage.DriverNameSQLite
	defaultUploadsDirectory   = "./uploads"

	corsOriginWildcard      = "*"
	corsHeaderAuthorization = "Authorization"
	corsHeaderContentType   = "Content-Type"
	httpMethodGet           = "GET"
	httpMethodOptions       = "OPTIONS"
	httpMethodPost          = "POST"
	httpMethodDelete        = "DELETE"

	loggerContextOpenDatabase = "open_db"
	loggerContextAutoMigrate  = "migrate"
	loggerContextTokenCodec   = "token_codec"
	loggerContextUploadsStore = "uploads_store"
	loggerContextServer       = "server"

	readHeaderTimeoutSeconds      = 5
	unexpectedArgumentsMessage    = "unexpected command arguments"
	commandInitializationFailure  = "failed to configure command"
	flagNotDefinedMessage         = "flag %s not defined"
	environmentConfigurationError = "failed to apply environment configuration"
)

var (
	corsAllowedMethods = []string{httpMethodPost, httpMethodGet, httpMethodOptions, httpMethodDelete}
	corsAllowedHeaders = []string{corsHeaderAuthorization, corsHeaderContentType}
	corsExposedHeaders = []string{corsHeaderContentType}
	corsAllowOrigins   = []string{corsOriginWildcard}
)

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	ApplicationAddress     string
	DatabaseDriverName     string
	DatabaseDataSourceName string
	TokenSecret            string
	AdminBearerToken       string
	UploadsDirectory       string
	PublicBaseURL          string
}

// DatabaseOpener opens a database connection using the provided configuration.
type DatabaseOpener func(storage.Config) (*gorm.DB, error)

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		databaseOpener:      storage.OpenDatabase,
	}
}

// WithDatabaseOpener overrides the database opener dependency.
func (application *ServerApplication) WithDatabaseOpener(databaseOpener DatabaseOpener) *ServerApplication {
	application.databaseOpener = databaseOpener
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	application.configurationLoader.SetDefault(environmentKeyApplicationAddress, defaultApplicationAddress)
	application.configurationLoader.SetDefault(environmentKeyDatabaseDriver, defaultDatabaseDriverName)
	application.configurationLoader.SetDefault(environmentKeyDatabaseDataSource, "")
	application.configurationLoader.SetDefault(environmentKeyTokenSecret, "")
	application.configurationLoader.SetDefault(environmentKeyAdminBearerToken, "")
	application.configurationLoader.SetDefault(environmentKeyUploadsDirectory, defaultUploadsDirectory)
	application.configurationLoader.SetDefault(environmentKeyPublicBaseURL, "")
	application.configurationLoader.AutomaticEnv()

	commandFlags := command.Flags()
	commandFlags.String(flagNameApplicationAddress, defaultApplicationAddress, flagUsageApplicationAddress)
	commandFlags.String(flagNameDatabaseDriverName, defaultDatabaseDriverName, flagUsageDatabaseDriverName)
	commandFlags.String(flagNameDatabaseDataSourceName, "", flagUsageDatabaseDataSourceName)
	commandFlags.String(flagNameTokenSecret, "", flagUsageTokenSecret)
	commandFlags.String(flagNameAdminBearerToken, "", flagUsageAdminBearerToken)
	commandFlags.String(flagNameUploadsDirectory, defaultUploadsDirectory, flagUsageUploadsDirectory)
	commandFlags.String(flagNamePublicBaseURL, "", flagUsagePublicBaseURL)

	flagBindings := []struct {
		environmentKey string
		flagName       string
	}{
		{environmentKeyApplicationAddress, flagNameApplicationAddress},
		{environmentKeyDatabaseDriver, flagNameDatabaseDriverName},
		{environmentKeyDatabaseDataSource, flagNameDatabaseDataSourceName},
		{environmentKeyTokenSecret, flagNameTokenSecret},
		{environmentKeyAdminBearerToken, flagNameAdminBearerToken},
		{environmentKeyUploadsDirectory, flagNameUploadsDirectory},
		{environmentKeyPublicBaseURL, flagNamePublicBaseURL},
	}

	for _, binding := range flagBindings {
		if bindErr := application.bindFlag(commandFlags, binding.environmentKey, binding.flagName); bindErr != nil {
			return bindErr
		}
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, binding.environmentKey, binding.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

func (application *ServerApplication) loadServerConfig() ServerConfig {
	return ServerConfig{
		ApplicationAddress:     application.configurationLoader.GetString(environmentKeyApplicationAddress),
		DatabaseDriverName:     strings.TrimSpace(application.configurationLoader.GetString(environmentKeyDatabaseDriver)),
		DatabaseDataSourceName: strings.TrimSpace(application.configurationLoader.GetString(environmentKeyDatabaseDataSource)),
		TokenSecret:            strings.TrimSpace(application.configurationLoader.GetString(environmentKeyTokenSecret)),
		AdminBearerToken:       strings.TrimSpace(application.configurationLoader.GetString(environmentKeyAdminBearerToken)),
		UploadsDirectory:       strings.TrimSpace(application.configurationLoader.GetString(environmentKeyUploadsDirectory)),
		PublicBaseURL:          strings.TrimSpace(application.configurationLoader.GetString(environmentKeyPublicBaseURL)),
	}
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	serverConfig := application.loadServerConfig()
	if validationErr := application.ensureRequiredConfiguration(serverConfig); validationErr != nil {
		return validationErr
	}

	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	database, databaseErr := application.databaseOpener(storage.Config{
		DriverName:     serverConfig.DatabaseDriverName,
		DataSourceName: serverConfig.DatabaseDataSourceName,
	})
	if databaseErr != nil {
		logger.Fatal(loggerContextOpenDatabase, zap.Error(databaseErr))
	}

	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		logger.Fatal(loggerContextAutoMigrate, zap.Error(migrateErr))
	}

	tokenCodec, codecErr := identity.NewCodec(serverConfig.TokenSecret)
	if codecErr != nil {
		logger.Fatal(loggerContextTokenCodec, zap.Error(codecErr))
	}

	uploadStore, uploadsErr := uploads.NewLocalStore(serverConfig.UploadsDirectory, serverConfig.PublicBaseURL, logger)
	if uploadsErr != nil {
		logger.Fatal(loggerContextUploadsStore, zap.Error(uploadsErr))
	}

	websiteDirectory := chat.NewDatabaseWebsiteDirectory(database)
	sanitizer := chat.NewHTMLSanitizer()
	threadStore := chat.NewThreadStore(database, logger, websiteDirectory)
	messageStore := chat.NewMessageStore(database)
	typingTracker := chat.NewTypingTracker(database)
	messagePipeline := chat.NewMessagePipeline(database, logger, websiteDirectory, sanitizer, uploadStore)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsAllowOrigins,
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	guestHandlers := httpapi.NewGuestHandlers(logger, threadStore, messagePipeline, messageStore, typingTracker, sanitizer)
	memberHandlers := httpapi.NewMemberHandlers(database, logger, threadStore, messagePipeline, messageStore, typingTracker)
	adminHandlers := httpapi.NewAdminHandlers(database, logger)
	streamHandlers := httpapi.NewStreamHandlers(logger, threadStore, messageStore, typingTracker, tokenCodec)

	registerRoutes(router, routeDependencies{
		guestHandlers:    guestHandlers,
		memberHandlers:   memberHandlers,
		adminHandlers:    adminHandlers,
		streamHandlers:   streamHandlers,
		tokenCodec:       tokenCodec,
		adminBearerToken: serverConfig.AdminBearerToken,
		uploadsDirectory: uploadStore.Directory(),
	})

	httpServer := &http.Server{
		Addr:              serverConfig.ApplicationAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeoutSeconds * time.Second,
	}

	logger.Info(logEventListening, zap.String(logFieldAddress, serverConfig.ApplicationAddress))
	if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		logger.Fatal(loggerContextServer, zap.Error(serveErr))
	}

	return nil
}

func (application *ServerApplication) ensureRequiredConfiguration(configuration ServerConfig) error {
	var missingParameters []string

	if configuration.DatabaseDataSourceName == "" {
		missingParameters = append(missingParameters, flagNameDatabaseDataSourceName)
	}

	if configuration.TokenSecret == "" {
		missingParameters = append(missingParameters, flagNameTokenSecret)
	}

	if configuration.AdminBearerToken == "" {
		missingParameters = append(missingParameters, flagNameAdminBearerToken)
	}

	if len(missingParameters) == 0 {
		return nil
	}

	return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
}

func main() {
	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
