package qaparse

import (
	"strings"

	"matextract-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// ParseQARequirements extracts the QA requirement table from a rendered item
// page. Checkbox fields become booleans (true when the cell carries the
// "checked" marker image), text fields read the following cell as a string.
// A page without the table yields an empty mapping, components without a QA
// section are a normal case.
func ParseQARequirements(htmlContent string) (map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	requirements := map[string]any{}

	table := doc.Find("table#sect_s3")
	if table.Length() == 0 {
		return requirements, nil
	}

	table.Find("tr.formRow").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		for i := 0; i < cells.Length(); i++ {
			cell := cells.Eq(i)
			label := cell.Find("label.fieldLabel")
			if label.Length() == 0 {
				continue
			}
			name := htmlutil.CleanText(label.Text())

			if cell.HasClass("label") {
				// text field, the value lives in the next cell
				i++
				if i >= cells.Length() {
					break
				}
				content := cells.Eq(i)
				if content.HasClass("cell") && len(content.Nodes) > 0 {
					requirements[name] = htmlutil.CleanText(htmlutil.GetText(content.Nodes[0]))
				}
			} else {
				requirements[name] = cell.Find(`img[alt="Yes"]`).Length() > 0
			}
		}
	})

	return requirements, nil
}
