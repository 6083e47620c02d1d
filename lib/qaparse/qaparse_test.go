package qaparse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const qaPage = `
<html><body>
<table id="sect_s3">
  <tr class="formRow">
    <td><label class="fieldLabel">X-Ray</label><img alt="Yes" src="check.gif"></td>
    <td><label class="fieldLabel">Drop Test</label></td>
  </tr>
  <tr class="formRow">
    <td class="label"><label class="fieldLabel">Comments</label></td>
    <td class="cell">  handle with care </td>
    <td><label class="fieldLabel">Salt Spray</label><img alt="Yes" src="check.gif"></td>
  </tr>
  <tr class="formRow">
    <td class="label"><label class="fieldLabel">Additional Tests</label></td>
    <td class="cell"></td>
  </tr>
  <tr><td>not a form row, skipped</td></tr>
</table>
</body></html>`

func TestParseQARequirements(t *testing.T) {
	reqs, err := ParseQARequirements(qaPage)
	require.NoError(t, err)

	require.Equal(t, map[string]any{
		"X-Ray":            true,
		"Drop Test":        false,
		"Comments":         "handle with care",
		"Salt Spray":       true,
		"Additional Tests": "",
	}, reqs)
}

func TestParseQARequirementsIdempotent(t *testing.T) {
	first, err := ParseQARequirements(qaPage)
	require.NoError(t, err)
	second, err := ParseQARequirements(qaPage)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestParseQARequirementsMissingTable(t *testing.T) {
	reqs, err := ParseQARequirements(`<html><body><p>no qa section</p></body></html>`)
	require.NoError(t, err)
	require.Empty(t, reqs)
	require.NotNil(t, reqs)
}
