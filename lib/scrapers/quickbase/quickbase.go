package quickbase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"matextract-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/quickbase")

const DefaultBaseUrl = "https://api.quickbase.com/v1"

// FieldLabels maps the record fields this pipeline cares about to the labels
// the backend uses for them.
type FieldLabels struct {
	ComponentID        string `json:"component_id"`
	Cost               string `json:"cost"`
	SupplierName       string `json:"supplier_name"`
	SupplierMaterialNo string `json:"supplier_material_no"`
	Image              string `json:"image"`
}

func DefaultFieldLabels() FieldLabels {
	return FieldLabels{
		ComponentID:        "Component ID#",
		Cost:               "Material Cost",
		SupplierName:       "Supplier Name(EN)",
		SupplierMaterialNo: "Supplier Material ID#",
		Image:              "Image",
	}
}

type ClientOptions struct {
	// BaseUrl defaults to the public quickbase API endpoint.
	BaseUrl              string
	Realm                string
	Token                string
	MaterialTableId      string
	AttachmentTableId    string
	RelatedMaterialField string
	Fields               FieldLabels
}

type Client struct {
	http *resty.Client
	opts ClientOptions
}

func NewClient(opts ClientOptions) *Client {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetHeader("QB-Realm-Hostname", opts.Realm)
	client.SetHeader("Authorization", fmt.Sprintf("QB-USER-TOKEN %s", opts.Token))
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/quickbase/http")

	return &Client{http: client, opts: opts}
}

// Record is a single row reshaped from the backend's id-keyed field layout
// into a label-keyed mapping.
type Record map[string]any

type queryResponse struct {
	Fields []struct {
		Id    int    `json:"id"`
		Label string `json:"label"`
	} `json:"fields"`
	Data []map[string]struct {
		Value any `json:"value"`
	} `json:"data"`
}

// QueryTable issues a "related material contains value" query against a table
// and returns the matching rows keyed by field label.
func (c *Client) QueryTable(ctx context.Context, tableId, materialNumber string) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "quickbase:QueryTable")
	defer span.End()
	span.SetAttributes(
		attribute.String("table", tableId),
		attribute.String("material_number", materialNumber),
	)

	body := map[string]any{
		"from":  tableId,
		"where": fmt.Sprintf("{%s.CT.'%s'}", c.opts.RelatedMaterialField, materialNumber),
	}

	result := queryResponse{}
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/records/query")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query request failed")
		return nil, err
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "query returned error status")
		return nil, fmt.Errorf("query table %s: %s", tableId, res.Status())
	}

	labels := map[string]string{}
	for _, field := range result.Fields {
		labels[strconv.Itoa(field.Id)] = field.Label
	}

	records := make([]Record, 0, len(result.Data))
	for _, row := range result.Data {
		record := Record{}
		for id, cell := range row {
			label, ok := labels[id]
			if !ok {
				continue
			}
			record[label] = cell.Value
		}
		records = append(records, record)
	}
	return records, nil
}

// MaterialDetails is the flat record the extraction pipeline works with.
// Fields other than ImageUrls are empty strings when the backend has no data.
type MaterialDetails struct {
	ComponentId        string
	Cost               string
	SupplierName       string
	SupplierMaterialNo string
	ImageUrls          []string
}

var imgSrcRegex = regexp.MustCompile(`(?i)src\s*=\s*["']([^"']+)["']`)

// MaterialDetails looks up the primary record (first match wins) and the
// attachment rows for a material number. Query failures degrade to empty
// fields so one bad lookup cannot sink a whole run; the returned error joins
// whatever went wrong so the caller can still log the difference between
// "no data" and "query failed".
func (c *Client) MaterialDetails(ctx context.Context, materialNumber string) (MaterialDetails, error) {
	ctx, span := tracer.Start(ctx, "quickbase:MaterialDetails")
	defer span.End()
	span.SetAttributes(attribute.String("material_number", materialNumber))

	var details MaterialDetails
	var errlist []error

	components, err := c.QueryTable(ctx, c.opts.MaterialTableId, materialNumber)
	if err != nil {
		slog.WarnContext(ctx, "component query failed", "material_number", materialNumber, "err", err)
		errlist = append(errlist, err)
	} else if len(components) == 0 {
		slog.InfoContext(ctx, "no component data for material", "material_number", materialNumber)
	} else {
		record := components[0]
		details.ComponentId = valueString(record[c.opts.Fields.ComponentID])
		details.Cost = valueString(record[c.opts.Fields.Cost])
		details.SupplierName = valueString(record[c.opts.Fields.SupplierName])
		details.SupplierMaterialNo = valueString(record[c.opts.Fields.SupplierMaterialNo])
	}

	attachments, err := c.QueryTable(ctx, c.opts.AttachmentTableId, materialNumber)
	if err != nil {
		slog.WarnContext(ctx, "attachment query failed", "material_number", materialNumber, "err", err)
		errlist = append(errlist, err)
	}
	for _, attachment := range attachments {
		imageHtml := valueString(attachment[c.opts.Fields.Image])
		if !strings.Contains(strings.ToLower(imageHtml), "<img") {
			continue
		}
		groups := imgSrcRegex.FindStringSubmatch(imageHtml)
		if len(groups) < 2 {
			continue
		}
		details.ImageUrls = append(details.ImageUrls, groups[1])
	}

	return details, errors.Join(errlist...)
}

func valueString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
