// Package main provides a Lambda entry point for the try-on API.
//
// It serves the same handler as tryon-web behind API Gateway (HTTP API,
// payload v2). The Gemini key comes from SSM Parameter Store when
// GEMINI_API_KEY is unset, and the ledger normally lives in DynamoDB.
//
// Sessions are held in the function instance's memory, so the API must be
// deployed with a single concurrent instance for a session to survive
// between requests.
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/virtual-tryon/internal/api"
	"github.com/fpang/virtual-tryon/internal/chat"
	"github.com/fpang/virtual-tryon/internal/config"
	"github.com/fpang/virtual-tryon/internal/lambdaboot"
	"github.com/fpang/virtual-tryon/internal/logging"
	"github.com/fpang/virtual-tryon/internal/studio"
	"github.com/fpang/virtual-tryon/internal/workflow"
)

var (
	handler  *httpadapter.HandlerAdapterV2
	sessions *workflow.Registry
)

func init() {
	initStart := time.Now()
	logging.Init()
	ctx := context.Background()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.OriginVerifySecret == "" {
		log.Warn().Msg("ORIGIN_VERIFY_SECRET not set, origin verification disabled")
	}

	clients, err := lambdaboot.InitAWS(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	apiKey, err := lambdaboot.LoadGeminiKey(ctx, clients.SSM, cfg.SSMAPIKeyParam)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load Gemini API key")
	}
	client, err := chat.NewGeminiClient(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	ledger, _, err := lambdaboot.OpenLedger(ctx, cfg, &clients.Config)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open usage ledger")
	}

	sessions = workflow.NewRegistry(cfg.SessionTTL)
	svc := studio.NewService(sessions, chat.NewGenerator(client.Models, cfg.Model), ledger, cfg.GenerationTimeout)
	server := api.NewServer(sessions, svc, ledger, api.Options{
		AllowedOrigins:     cfg.AllowedOrigins,
		OriginVerifySecret: cfg.OriginVerifySecret,
	})
	handler = httpadapter.NewV2(server.Handler())

	lambdaboot.DescribeConfig(lambdaboot.StartupLog("tryon-lambda", initStart), cfg, ledger).
		CommitHash(commitHash).
		Config("buildTime", buildTime).
		SSMParam("geminiApiKey", cfg.SSMAPIKeyParam).
		Feature("originVerify", cfg.OriginVerifySecret != "").
		Log()
}

func main() {
	lambda.Start(func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		sessions.Sweep()
		return handler.ProxyWithContext(ctx, req)
	})
}
