package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/calcfunding/publishing-backend/internal/clients/cache"
	"github.com/calcfunding/publishing-backend/internal/clients/jobsapi"
	"github.com/calcfunding/publishing-backend/internal/clients/policies"
	"github.com/calcfunding/publishing-backend/internal/clients/profiling"
	"github.com/calcfunding/publishing-backend/internal/clients/providers"
	"github.com/calcfunding/publishing-backend/internal/clients/queue"
	"github.com/calcfunding/publishing-backend/internal/clients/results"
	"github.com/calcfunding/publishing-backend/internal/clients/search"
	"github.com/calcfunding/publishing-backend/internal/compiler"
	"github.com/calcfunding/publishing-backend/internal/db"
	"github.com/calcfunding/publishing-backend/internal/handlers"
	"github.com/calcfunding/publishing-backend/internal/platform/envutil"
	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/publishing"
	"github.com/calcfunding/publishing-backend/internal/repos"
	"github.com/calcfunding/publishing-backend/internal/resilience"
	"github.com/calcfunding/publishing-backend/internal/server"
	"github.com/calcfunding/publishing-backend/internal/services"
	"github.com/calcfunding/publishing-backend/internal/worker"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	allocationBatchSize := envutil.GetEnvAsInt("ALLOCATION_BATCH_SIZE", 1000, log)
	profilingBatchSize := envutil.GetEnvAsInt("PROFILING_BATCH_SIZE", 100, log)
	scopedProviderTTL := envutil.GetEnvAsInt("SCOPED_PROVIDER_CACHE_TTL", 3600, log)
	maxRetries := envutil.GetEnvAsInt("RESILIENCE_MAX_RETRIES", 5, log)
	toggles := services.FeatureToggles{
		IsJobServiceEnabled:                         envutil.GetEnvAsBool("JOB_SERVICE_ENABLED", true, log),
		IsAllocationLineMajorMinorVersioningEnabled: envutil.GetEnvAsBool("ALLOCATION_LINE_MAJOR_MINOR_VERSIONING_ENABLED", false, log),
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	calculationsRepo := repos.NewCalculationsRepo(thePG, log)
	templateMappingsRepo := repos.NewTemplateMappingsRepo(thePG, log)
	buildProjectsRepo := repos.NewBuildProjectsRepo(thePG, log)
	specificationsRepo := repos.NewSpecificationsRepo(thePG, log)
	publishedProvidersRepo := repos.NewPublishedProvidersRepo(thePG, log)
	publishedFundingRepo := repos.NewPublishedFundingRepo(thePG, log)

	// Clients
	log.Info("Setting up clients from main...")
	redisCache, err := cache.NewRedisCache(log)
	if err != nil {
		log.Error("Could not init redis cache", "error", err)
		os.Exit(1)
	}
	bus, err := queue.NewRedisBus(log)
	if err != nil {
		log.Error("Could not init queue bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close()
	searchIndex, err := search.NewRedisIndex(log)
	if err != nil {
		log.Error("Could not init search index", "error", err)
		os.Exit(1)
	}
	jobsClient, err := jobsapi.NewClient(log)
	if err != nil {
		log.Error("Could not init jobs client", "error", err)
		os.Exit(1)
	}
	policiesClient, err := policies.NewClient(log)
	if err != nil {
		log.Error("Could not init policies client", "error", err)
		os.Exit(1)
	}
	providersClient, err := providers.NewClient(log)
	if err != nil {
		log.Error("Could not init providers client", "error", err)
		os.Exit(1)
	}
	resultsClient, err := results.NewClient(log)
	if err != nil {
		log.Error("Could not init results client", "error", err)
		os.Exit(1)
	}
	profilingClient, err := profiling.NewClient(log)
	if err != nil {
		log.Error("Could not init profiling client", "error", err)
		os.Exit(1)
	}

	// Services
	log.Info("Setting up Services from main...")
	policy := resilience.NewPolicy(log, maxRetries)
	jobTracker := services.NewJobTracker(log, jobsClient)
	calculationsService := services.NewCalculationsService(thePG, log, calculationsRepo)
	instructAllocations := services.NewInstructionAllocationJobCreation(log, jobsClient)
	scopedProviders := services.NewScopedProvidersService(log, redisCache, providersClient, time.Duration(scopedProviderTTL)*time.Second)
	applyTemplateService := services.NewApplyTemplateCalculationsService(
		thePG, log, templateMappingsRepo, policiesClient, calculationsService, jobTracker, instructAllocations)
	buildProjectsService := services.NewBuildProjectsService(
		thePG, log, buildProjectsRepo, specificationsRepo, calculationsService,
		compiler.NewInProcessFactory(), scopedProviders, jobsClient, toggles, allocationBatchSize)

	versioning := publishing.NewPublishedProviderVersioningService(thePG, log, publishedProvidersRepo)
	jobsRunning := publishing.NewJobsRunningChecker(jobsClient)
	prerequisites := publishing.NewRefreshPrerequisiteChecker(
		thePG, log, jobsClient, jobsRunning, specificationsRepo, scopedProviders,
		policiesClient, profilingClient, calculationsService)
	publishService := publishing.NewPublishService(
		thePG, log, specificationsRepo, templateMappingsRepo, publishedProvidersRepo,
		publishedFundingRepo, policiesClient, resultsClient, prerequisites, versioning,
		publishing.NewOrganisationGroupGenerator(log),
		publishing.NewPublishedFundingChangeDetector(),
		publishing.NewPublishedFundingGenerator(),
		searchIndex, bus, jobTracker, profilingBatchSize)
	refreshService := publishing.NewRefreshService(
		thePG, log, specificationsRepo, publishedProvidersRepo, prerequisites, versioning, jobTracker)

	// Worker
	log.Info("Setting up queue worker from main...")
	queueWorker := worker.NewWorker(log, bus, policy, buildProjectsService.UpdateDeadLetteredJobLog)
	queueWorker.Register(worker.TopicApplyTemplateCalculations, applyTemplateService.ApplyTemplateCalculation)
	queueWorker.Register(worker.TopicUpdateBuildProjectRelationships, buildProjectsService.UpdateBuildProjectRelationships)
	queueWorker.Register(worker.TopicUpdateAllocations, buildProjectsService.UpdateAllocations)
	queueWorker.Register(worker.TopicRefreshFunding, refreshService.RefreshResults)
	queueWorker.Register(worker.TopicPublishProviderFunding, publishService.PublishProviderResults)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := queueWorker.Start(ctx); err != nil {
		log.Error("Could not start queue worker", "error", err)
		os.Exit(1)
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	buildProjectsHandler := handlers.NewBuildProjectsHandler(buildProjectsService)
	publishedFundingHandler := handlers.NewPublishedFundingHandler(publishedFundingRepo, publishing.NewPublishedFundingQueryBuilder())

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		BuildProjectsHandler:    buildProjectsHandler,
		PublishedFundingHandler: publishedFundingHandler,
	})

	port := envutil.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
