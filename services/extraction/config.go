package extraction

import (
	"fmt"
	"strings"

	"matextract-backend/lib/scrapers/qbportal"
	"matextract-backend/lib/scrapers/quickbase"
)

type Config struct {
	Realm                string                `json:"realm"`
	AppId                string                `json:"app_id"`
	MaterialTableId      string                `json:"material_table_id"`
	AttachmentTableId    string                `json:"attachment_table_id"`
	Token                string                `json:"token"`
	RelatedMaterialField string                `json:"related_material_field"`
	LoginUrl             string                `json:"login_url"`
	LoginEmail           string                `json:"login_email"`
	LoginPassword        string                `json:"login_password"`
	Headless             bool                  `json:"headless"`
	MaterialNumberColumn string                `json:"material_number_column"`
	DownloadsDir         string                `json:"downloads_dir"`
	Fields               quickbase.FieldLabels `json:"fields"`
	Delays               qbportal.Delays       `json:"delays"`
}

// Validate reports every missing required setting at once. A config failing
// validation aborts the run before any processing.
func (c Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"realm", c.Realm},
		{"app_id", c.AppId},
		{"material_table_id", c.MaterialTableId},
		{"attachment_table_id", c.AttachmentTableId},
		{"token", c.Token},
		{"login_url", c.LoginUrl},
		{"login_email", c.LoginEmail},
		{"login_password", c.LoginPassword},
	}

	var missing []string
	for _, setting := range required {
		if strings.TrimSpace(setting.value) == "" {
			missing = append(missing, setting.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// WithDefaults fills in the optional settings the way the original deployment
// ran them.
func (c Config) WithDefaults() Config {
	if c.RelatedMaterialField == "" {
		c.RelatedMaterialField = "Related Material"
	}
	if c.MaterialNumberColumn == "" {
		c.MaterialNumberColumn = "NPR Material Number"
	}
	if c.DownloadsDir == "" {
		c.DownloadsDir = "downloads"
	}
	if c.Fields == (quickbase.FieldLabels{}) {
		c.Fields = quickbase.DefaultFieldLabels()
	}
	if c.Delays == (qbportal.Delays{}) {
		c.Delays = qbportal.DefaultDelays()
	}
	return c
}

func (c Config) QuickbaseOptions() quickbase.ClientOptions {
	return quickbase.ClientOptions{
		Realm:                c.Realm,
		Token:                c.Token,
		MaterialTableId:      c.MaterialTableId,
		AttachmentTableId:    c.AttachmentTableId,
		RelatedMaterialField: c.RelatedMaterialField,
		Fields:               c.Fields,
	}
}

func (c Config) PortalOptions() qbportal.SessionOptions {
	return qbportal.SessionOptions{
		Realm:           c.Realm,
		AppId:           c.AppId,
		MaterialTableId: c.MaterialTableId,
		LoginUrl:        c.LoginUrl,
		LoginEmail:      c.LoginEmail,
		LoginPassword:   c.LoginPassword,
		Headless:        c.Headless,
		Delays:          c.Delays,
	}
}
