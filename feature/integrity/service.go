package integrity

import (
	"context"
	"fmt"

	"anki-sync/core/graph"
	"anki-sync/core/reconcile"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Check statuses.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Report strictly types the result of a full integrity run.
type Report struct {
	Healthy bool          `json:"healthy"`
	Checks  []CheckResult `json:"checks"`
}

// Checker is implemented by asset sources that can verify their backend.
type Checker interface {
	Check(ctx context.Context) error
}

// Service runs the integrity checks.
type Service struct {
	describer graph.Describer
	conn      reconcile.Connector
	assets    any
	db        *gorm.DB
	model     string
	logger    *zap.Logger
}

// NewService creates a new integrity service. assets is checked when it
// implements Checker; db is only inspected when non-nil. An empty model
// derives the default model from the graph name.
func NewService(describer graph.Describer, conn reconcile.Connector, assets any, db *gorm.DB, model string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		describer: describer,
		conn:      conn,
		assets:    assets,
		db:        db,
		model:     model,
		logger:    logger,
	}
}

// Run executes every check in order.
func (s *Service) Run(ctx context.Context) *Report {
	report := &Report{Healthy: true}
	add := func(r CheckResult) {
		if r.Status == StatusError {
			report.Healthy = false
			s.logger.Warn("Integrity check failed", zap.String("check", r.Name), zap.String("detail", r.Detail))
		}
		report.Checks = append(report.Checks, r)
	}

	graphName, result := s.CheckGraph(ctx)
	add(result)
	add(s.CheckStore(ctx))
	add(s.CheckModel(ctx, graphName))
	add(s.CheckAssets(ctx))
	add(s.CheckSchema(ctx))
	return report
}

// CheckGraph reads the current graph. It returns the graph name for the
// model check.
func (s *Service) CheckGraph(ctx context.Context) (string, CheckResult) {
	result := CheckResult{Name: "graph"}
	info, err := s.describer.CurrentGraph(ctx)
	switch {
	case err != nil:
		result.Status, result.Detail = StatusError, err.Error()
		return "", result
	case info == nil || info.Name == "":
		result.Status, result.Detail = StatusError, "no graph is open"
		return "", result
	}
	result.Status, result.Detail = StatusOK, info.Name
	return info.Name, result
}

// CheckStore asks for permission when needed and lists the store's media.
func (s *Service) CheckStore(ctx context.Context) CheckResult {
	result := CheckResult{Name: "store"}
	if pr, ok := s.conn.(reconcile.PermissionRequester); ok {
		if err := pr.RequestPermission(ctx); err != nil {
			result.Status, result.Detail = StatusError, err.Error()
			return result
		}
	}
	media, err := s.conn.ListMedia(ctx)
	if err != nil {
		result.Status, result.Detail = StatusError, err.Error()
		return result
	}
	result.Status, result.Detail = StatusOK, fmt.Sprintf("%d media files", len(media))
	return result
}

// CheckModel loads the default model. A missing model is reported as an
// error even though the first sync creates it.
func (s *Service) CheckModel(ctx context.Context, graphName string) CheckResult {
	model := s.model
	if model == "" {
		if graphName == "" {
			return CheckResult{Name: "model", Status: StatusSkipped, Detail: "graph name unknown"}
		}
		model = reconcile.DefaultModelName(graphName)
	}
	result := CheckResult{Name: "model"}
	notes, err := s.conn.LoadModel(ctx, model)
	if err != nil {
		result.Status, result.Detail = StatusError, err.Error()
		return result
	}
	result.Status, result.Detail = StatusOK, fmt.Sprintf("%s has %d notes", model, len(notes))
	return result
}

// CheckAssets verifies the asset backend when it supports checking.
func (s *Service) CheckAssets(ctx context.Context) CheckResult {
	checker, ok := s.assets.(Checker)
	if !ok {
		return CheckResult{Name: "assets", Status: StatusSkipped, Detail: "local asset source"}
	}
	if err := checker.Check(ctx); err != nil {
		return CheckResult{Name: "assets", Status: StatusError, Detail: err.Error()}
	}
	return CheckResult{Name: "assets", Status: StatusOK}
}
