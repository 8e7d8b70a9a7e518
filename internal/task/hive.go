package task

import (
	"context"
	"fmt"
)

type HiveRunner interface {
	RunHive(ctx context.Context, statement string) (string, error)
}

// HiveService owns the run's Hive database.
type HiveService struct {
	runner        HiveRunner
	database      string
	warehousePath string
}

func NewHiveService(runner HiveRunner, database, warehousePath string) *HiveService {
	return &HiveService{runner: runner, database: database, warehousePath: warehousePath}
}

func (s *HiveService) Reset(ctx context.Context) error {
	stmt := fmt.Sprintf("DROP DATABASE IF EXISTS %s CASCADE; CREATE DATABASE %s LOCATION '%s';",
		s.database, s.database, s.warehousePath)
	if _, err := s.runner.RunHive(ctx, stmt); err != nil {
		return fmt.Errorf("reset hive database %s: %w", s.database, err)
	}
	return nil
}
