package integration

import (
	"context"
	"fmt"
	"os"

	"github.com/stretchr/testify/suite"

	"github.com/SuperWhiteDev/BattleShip/internal/store"
)

// GameSuite — базовый suite для интеграционных тестов. PostgreSQL контейнер
// создаётся один раз в TestMain, каждый тест начинает с пустых таблиц.
type GameSuite struct {
	suite.Suite
	store *store.Store
	ctx   context.Context
}

// SetupSuite выполняется один раз перед всеми тестами в suite.
func (s *GameSuite) SetupSuite() {
	s.ctx = context.Background()

	// Если DB_ADDR задан вручную — используем его (для CI/CD)
	dsn := os.Getenv("DB_ADDR")
	if dsn == "" {
		dsn = sharedDSN
	}

	// Миграции идемпотентны: goose хранит версию в самой базе
	if err := store.RunMigrations(s.ctx, dsn); err != nil {
		s.T().Fatalf("failed to run migrations: %v", err)
	}

	var err error
	s.store, err = store.New(s.ctx, dsn)
	if err != nil {
		s.T().Fatalf("failed to connect to database: %v", err)
	}
}

// SetupTest выполняется перед каждым тестом для очистки данных.
func (s *GameSuite) SetupTest() {
	if err := s.cleanupTestData(); err != nil {
		s.T().Fatalf("failed to cleanup test data: %v", err)
	}
}

// TearDownSuite выполняется один раз после всех тестов в suite.
func (s *GameSuite) TearDownSuite() {
	if s.store != nil {
		s.store.Close()
	}
	// Контейнер терминируется в TestMain
}

// cleanupTestData очищает все данные из тестовых таблиц.
func (s *GameSuite) cleanupTestData() error {
	_, err := s.store.Pool().Exec(s.ctx,
		"TRUNCATE TABLE users, blacklist, whitelist")
	if err != nil {
		return fmt.Errorf("truncating test tables: %w", err)
	}
	return nil
}
