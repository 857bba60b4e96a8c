package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/rules-engine/pkg/check"
)

// CheckService resolves standalone checks.
type CheckService struct {
	engine *check.Engine
	logger *slog.Logger
}

func NewCheckService(engine *check.Engine, log *slog.Logger) *CheckService {
	return &CheckService{engine: engine, logger: log}
}

// Resolve validates the request and resolves it.
func (s *CheckService) Resolve(ctx context.Context, req check.Request) (*check.Result, error) {
	if req.TenantID == "" || req.CheckType == "" || req.Actor.ID == "" {
		return nil, fmt.Errorf("%w: tenant_id, check_type and actor are required", ErrInvalidRequest)
	}
	res, err := s.engine.ResolveCheck(ctx, req)
	if err != nil {
		s.logger.Error("Check failed", "tenant_id", req.TenantID, "check_type", req.CheckType, "error", err)
		return nil, err
	}
	return res, nil
}
