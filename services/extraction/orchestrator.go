package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"matextract-backend/lib/qaparse"
	"matextract-backend/lib/scrapers/quickbase"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/extraction")

// RecordSource looks up the flat backend record for a material number.
type RecordSource interface {
	MaterialDetails(ctx context.Context, materialNumber string) (quickbase.MaterialDetails, error)
}

// PortalSession is the authenticated browser session shared across one run.
// It is exclusive, the orchestrator never calls it concurrently.
type PortalSession interface {
	FetchItemPage(ctx context.Context, recordId int) (string, error)
	DownloadImage(ctx context.Context, url, destPath string) error
	Close() error
}

// SessionFactory opens the run's single portal session. Run guarantees the
// returned session is closed on every exit path.
type SessionFactory func(ctx context.Context) (PortalSession, error)

type Orchestrator struct {
	records     RecordSource
	openSession SessionFactory
}

func NewOrchestrator(records RecordSource, openSession SessionFactory) Orchestrator {
	return Orchestrator{
		records:     records,
		openSession: openSession,
	}
}

// Batch is one input workbook's worth of work: its output folder name and the
// deduplicated material numbers it contributed.
type Batch struct {
	Name            string
	MaterialNumbers []string
}

// MaterialOutcome records how one identifier fared. Err is only set when the
// material's snapshot could not be persisted, everything softer (missing
// fields, missing QA page, failed downloads) shows up as absent data instead.
type MaterialOutcome struct {
	Batch          string
	MaterialNumber string
	HasQA          bool
	Images         int
	Err            error
}

type Result struct {
	Outcomes []MaterialOutcome
}

// Processed counts identifiers that ended with a persisted snapshot.
func (r Result) Processed() int {
	n := 0
	for _, outcome := range r.Outcomes {
		if outcome.Err == nil {
			n++
		}
	}
	return n
}

func (r Result) Failed() int {
	return len(r.Outcomes) - r.Processed()
}

// Run drives every batch through one shared portal session, strictly
// sequentially. A failure on one material never aborts the rest, only a
// session that cannot be opened at all is fatal. An empty identifier set
// returns an empty Result without touching the portal.
func (o Orchestrator) Run(ctx context.Context, batches []Batch, outputDir string) (Result, error) {
	ctx, span := tracer.Start(ctx, "extraction:Run")
	defer span.End()

	total := 0
	for _, batch := range batches {
		total += len(batch.MaterialNumbers)
	}
	span.SetAttributes(attribute.Int("materials", total))
	if total == 0 {
		return Result{}, nil
	}

	session, err := o.openSession(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open portal session")
		return Result{}, fmt.Errorf("open portal session: %w", err)
	}
	defer session.Close()

	var result Result
	for _, batch := range batches {
		batchDir := filepath.Join(outputDir, batch.Name)
		for _, materialNumber := range batch.MaterialNumbers {
			outcome := o.processMaterial(ctx, session, batch.Name, materialNumber, batchDir)
			result.Outcomes = append(result.Outcomes, outcome)
		}
	}

	span.SetAttributes(attribute.Int("processed", result.Processed()))
	return result, nil
}

func (o Orchestrator) processMaterial(
	ctx context.Context,
	session PortalSession,
	batchName, materialNumber, batchDir string,
) MaterialOutcome {
	ctx, span := tracer.Start(ctx, "extraction:processMaterial")
	defer span.End()
	span.SetAttributes(attribute.String("material_number", materialNumber))

	slog.InfoContext(ctx, "processing material",
		"batch", batchName, "material_number", materialNumber)

	outcome := MaterialOutcome{Batch: batchName, MaterialNumber: materialNumber}
	material := Material{MaterialNumber: materialNumber}

	details, err := o.records.MaterialDetails(ctx, materialNumber)
	if err != nil {
		// the client already degraded to whatever it could fetch
		slog.WarnContext(ctx, "record lookup incomplete",
			"material_number", materialNumber, "err", err)
	}
	material.ComponentId = details.ComponentId
	material.Cost = details.Cost
	material.SupplierName = details.SupplierName
	material.SupplierMaterialNo = details.SupplierMaterialNo
	material.ImageUrls = details.ImageUrls

	materialDir := MaterialDir(batchDir, materialNumber)
	if err := os.MkdirAll(ImagesDir(materialDir), 0755); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create material directory")
		slog.ErrorContext(ctx, "failed to create material directory",
			"dir", materialDir, "err", err)
		outcome.Err = err
		return outcome
	}

	if material.ComponentId != "" {
		o.scrapeQARequirements(ctx, session, &material, &outcome)
	}

	for i, url := range material.ImageUrls {
		dest := filepath.Join(ImagesDir(materialDir), fmt.Sprintf("image_%d.png", i+1))
		if err := session.DownloadImage(ctx, url, dest); err != nil {
			slog.WarnContext(ctx, "image download errored",
				"material_number", materialNumber, "url", url, "err", err)
			continue
		}
		if _, err := os.Stat(dest); err == nil {
			outcome.Images++
		}
	}

	if err := WriteSnapshot(material, materialDir); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist snapshot")
		slog.ErrorContext(ctx, "failed to persist material snapshot",
			"material_number", materialNumber, "err", err)
		outcome.Err = err
		return outcome
	}

	slog.InfoContext(ctx, "finished material",
		"material_number", materialNumber,
		"has_qa", outcome.HasQA, "images", outcome.Images)
	return outcome
}

func (o Orchestrator) scrapeQARequirements(
	ctx context.Context,
	session PortalSession,
	material *Material,
	outcome *MaterialOutcome,
) {
	recordId, err := strconv.Atoi(strings.TrimSpace(material.ComponentId))
	if err != nil {
		slog.WarnContext(ctx, "component id is not an integer, skipping QA scrape",
			"material_number", material.MaterialNumber,
			"component_id", material.ComponentId)
		return
	}

	html, err := session.FetchItemPage(ctx, recordId)
	if err != nil {
		slog.WarnContext(ctx, "failed to fetch QA page",
			"material_number", material.MaterialNumber,
			"record_id", recordId, "err", err)
		return
	}

	requirements, err := qaparse.ParseQARequirements(html)
	if err != nil {
		slog.WarnContext(ctx, "failed to parse QA page",
			"material_number", material.MaterialNumber,
			"record_id", recordId, "err", err)
		return
	}

	material.QARequirements = requirements
	outcome.HasQA = true
}
