package integrity

import (
	"context"
	"fmt"
	"strings"

	"anki-sync/core/collection"

	"gorm.io/gorm"
)

// TableReport lists what a collection table is missing.
type TableReport struct {
	Table          string   `json:"table"`
	Missing        bool     `json:"missing"`
	MissingColumns []string `json:"missing_columns,omitempty"`
}

// InspectSchema compares the collection tables with their GORM models,
// which act as the source of truth.
func InspectSchema(ctx context.Context, db *gorm.DB) ([]TableReport, error) {
	db = db.WithContext(ctx)
	migrator := db.Migrator()

	var reports []TableReport
	for _, model := range []any{&collection.Model{}, &collection.Note{}, &collection.Media{}} {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("failed to parse model %T: %w", model, err)
		}
		report := TableReport{Table: stmt.Schema.Table}
		if !migrator.HasTable(model) {
			report.Missing = true
			reports = append(reports, report)
			continue
		}
		for _, column := range stmt.Schema.DBNames {
			if !migrator.HasColumn(model, column) {
				report.MissingColumns = append(report.MissingColumns, column)
			}
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// CheckSchema inspects the local collection database when one is in use.
func (s *Service) CheckSchema(ctx context.Context) CheckResult {
	if s.db == nil {
		return CheckResult{Name: "schema", Status: StatusSkipped, Detail: "no local collection"}
	}
	reports, err := InspectSchema(ctx, s.db)
	if err != nil {
		return CheckResult{Name: "schema", Status: StatusError, Detail: err.Error()}
	}
	var problems []string
	for _, r := range reports {
		switch {
		case r.Missing:
			problems = append(problems, r.Table+" is missing")
		case len(r.MissingColumns) > 0:
			problems = append(problems, fmt.Sprintf("%s lacks %s", r.Table, strings.Join(r.MissingColumns, ", ")))
		}
	}
	if len(problems) > 0 {
		return CheckResult{Name: "schema", Status: StatusError, Detail: strings.Join(problems, "; ")}
	}
	return CheckResult{Name: "schema", Status: StatusOK, Detail: fmt.Sprintf("%d tables", len(reports))}
}
