package integration_test

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"

	"github.com/visaflow/visaflow-api/internal/repository"
)

const (
	dbName         = "visaflow"
	dbUser         = "test_user"
	dbPassword     = "test_password"
	dbImageName    = "postgres:17-alpine"
	cacheImageName = "redis:7"
)

type BaseSuite struct {
	suite.Suite
	dbContainer    *PostgresContainer
	cacheContainer *RedisContainer
	pool           *pgxpool.Pool
	redisClient    *redis.Client

	payments *repository.PostgresPaymentRepository
	refunds  *repository.PostgresRefundRepository
	webhooks *repository.PostgresWebhookAttemptRepository
	audit    *repository.PostgresAuditLogRepository
}

func (s *BaseSuite) SetupSuite() {
	ctx := context.Background()

	postgresContainer, err := getDbContainer(ctx)
	if err != nil {
		s.T().Fatalf("failed to start container: %s", err)
	}
	s.dbContainer = postgresContainer

	redisContainer, err := getCacheContainer(ctx)
	if err != nil {
		s.T().Fatalf("failed to start container: %s", err)
	}
	s.cacheContainer = redisContainer

	pool, err := pgxpool.New(ctx, postgresContainer.ConnectionString)
	if err != nil {
		s.T().Fatalf("failed to create pool: %s", err)
	}
	s.pool = pool

	s.redisClient = redis.NewClient(&redis.Options{Addr: redisContainer.ConnectionString})

	s.payments = repository.NewPostgresPaymentRepository(pool)
	s.refunds = repository.NewPostgresRefundRepository(pool)
	s.webhooks = repository.NewPostgresWebhookAttemptRepository(pool)
	s.audit = repository.NewPostgresAuditLogRepository(pool)
}

func (s *BaseSuite) TearDownSuite() {
	if s.redisClient != nil {
		s.redisClient.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.dbContainer != nil {
		if err := testcontainers.TerminateContainer(s.dbContainer.Container.Container); err != nil {
			log.Printf("failed to terminate container: %s", err)
		}
	}
	if s.cacheContainer != nil {
		if err := testcontainers.TerminateContainer(s.cacheContainer.Container); err != nil {
			log.Printf("failed to terminate container: %s", err)
		}
	}
}

func (s *BaseSuite) truncateAll() {
	_, err := s.pool.Exec(context.Background(),
		`TRUNCATE payment_audit_log, webhook_attempts, refunds, payments RESTART IDENTITY CASCADE`)
	s.Require().NoError(err)
	s.Require().NoError(s.redisClient.FlushAll(context.Background()).Err())
}
