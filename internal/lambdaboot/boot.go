// Package lambdaboot holds the cold-start wiring shared by the web server and
// the Lambda entry point: AWS config, SSM key fetch, ledger store selection
// and startup logging.
package lambdaboot

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/fpang/virtual-tryon/internal/config"
	"github.com/fpang/virtual-tryon/internal/logging"
	"github.com/fpang/virtual-tryon/internal/usage"
)

// AWSClients holds the core AWS SDK clients.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS(ctx context.Context) (AWSClients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return AWSClients{}, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}, nil
}

type ssmAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

var _ ssmAPI = (*ssm.Client)(nil)

// LoadGeminiKey fetches the Gemini API key from SSM Parameter Store unless
// GEMINI_API_KEY is already set. The fetched key is exported to the
// environment so later lookups see it.
func LoadGeminiKey(ctx context.Context, client ssmAPI, paramName string) (string, error) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key, nil
	}
	if paramName == "" {
		paramName = config.DefaultSSMAPIKeyParam
	}
	ssmStart := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read API key from SSM %s: %w", paramName, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil || *result.Parameter.Value == "" {
		return "", fmt.Errorf("SSM parameter %s is empty", paramName)
	}
	key := *result.Parameter.Value
	os.Setenv("GEMINI_API_KEY", key)
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("Gemini API key loaded from SSM")
	return key, nil
}

// LedgerStore is an opened persistence strategy plus its cleanup.
type LedgerStore struct {
	Store usage.Store
	close func() error
}

// Close releases the store's connection, if any.
func (l LedgerStore) Close() error {
	if l.close == nil {
		return nil
	}
	return l.close()
}

// OpenLedgerStore builds the usage store selected by cfg.LedgerBackend.
// awsCfg is only consulted for the dynamodb and s3 backends and may be nil
// otherwise.
func OpenLedgerStore(cfg config.Config, awsCfg *aws.Config) (LedgerStore, error) {
	if cfg.NeedsAWS() && awsCfg == nil {
		return LedgerStore{}, fmt.Errorf("ledger backend %s requires AWS config", cfg.LedgerBackend)
	}

	switch cfg.LedgerBackend {
	case config.BackendFile:
		return LedgerStore{Store: usage.NewFileStore(cfg.LedgerPath)}, nil

	case config.BackendSQLite:
		st, err := usage.NewSQLiteStore(cfg.LedgerSQLitePath)
		if err != nil {
			return LedgerStore{}, err
		}
		return LedgerStore{Store: st, close: st.Close}, nil

	case config.BackendDynamoDB:
		client := dynamodb.NewFromConfig(*awsCfg)
		return LedgerStore{Store: usage.NewDynamoStore(client, cfg.LedgerTable, cfg.LedgerName)}, nil

	case config.BackendS3:
		client := s3.NewFromConfig(*awsCfg)
		return LedgerStore{Store: usage.NewS3Store(client, cfg.LedgerBucket, cfg.LedgerKey)}, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		return LedgerStore{Store: usage.NewRedisStore(client, cfg.RedisKey), close: client.Close}, nil

	case config.BackendMemory:
		return LedgerStore{Store: usage.NewMemoryStore()}, nil
	}
	return LedgerStore{}, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
}

// OpenLedger opens the configured store and loads the ledger from it.
func OpenLedger(ctx context.Context, cfg config.Config, awsCfg *aws.Config) (*usage.Ledger, LedgerStore, error) {
	ls, err := OpenLedgerStore(cfg, awsCfg)
	if err != nil {
		return nil, LedgerStore{}, err
	}
	return usage.Open(ctx, ls.Store, cfg.Pricing), ls, nil
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}

// DescribeConfig registers the resources and settings in cfg on sl.
func DescribeConfig(sl *logging.StartupLogger, cfg config.Config, ledger *usage.Ledger) *logging.StartupLogger {
	sl.Ledger(ledger.Describe()).
		Config("model", cfg.Model).
		Config("ledgerBackend", cfg.LedgerBackend).
		Config("generationTimeout", cfg.GenerationTimeout.String()).
		Config("sessionTTL", cfg.SessionTTL.String())
	switch cfg.LedgerBackend {
	case config.BackendDynamoDB:
		sl.DynamoTable("ledger", cfg.LedgerTable)
	case config.BackendS3:
		sl.S3Bucket("ledger", cfg.LedgerBucket)
	case config.BackendRedis:
		sl.Redis("ledger", cfg.RedisAddr)
	}
	return sl
}
