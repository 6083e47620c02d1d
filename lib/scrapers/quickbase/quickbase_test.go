package quickbase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"matextract-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(ClientOptions{
		BaseUrl:              server.URL,
		Realm:                "example.quickbase.com",
		Token:                "test-token",
		MaterialTableId:      "materials",
		AttachmentTableId:    "attachments",
		RelatedMaterialField: "6",
		Fields:               DefaultFieldLabels(),
	})
}

func TestQueryTableReshapesRows(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:quickbase")
	defer cleanup()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/records/query", r.URL.Path)
		require.Equal(t, "example.quickbase.com", r.Header.Get("QB-Realm-Hostname"))
		require.Equal(t, "QB-USER-TOKEN test-token", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "{6.CT.'123'}", body["where"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"fields": [
				{"id": 7, "label": "Component ID#"},
				{"id": 8, "label": "Material Cost"}
			],
			"data": [
				{"7": {"value": 4518}, "8": {"value": 12.5}},
				{"7": {"value": 9999}}
			]
		}`))
	})

	records, err := client.QueryTable(context.Background(), "materials", "123")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, float64(4518), records[0]["Component ID#"])
	require.Equal(t, 12.5, records[0]["Material Cost"])
}

func TestMaterialDetailsFirstMatchWins(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:quickbase")
	defer cleanup()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")

		switch body["from"] {
		case "materials":
			w.Write([]byte(`{
				"fields": [
					{"id": 7, "label": "Component ID#"},
					{"id": 8, "label": "Material Cost"},
					{"id": 9, "label": "Supplier Name(EN)"},
					{"id": 10, "label": "Supplier Material ID#"}
				],
				"data": [
					{"7": {"value": 4518}, "8": {"value": 3.25}, "9": {"value": "Acme"}, "10": {"value": "AC-99"}},
					{"7": {"value": 1}, "9": {"value": "Other"}}
				]
			}`))
		case "attachments":
			w.Write([]byte(`{
				"fields": [{"id": 12, "label": "Image"}],
				"data": [
					{"12": {"value": "<img src=\"https://cdn.example.com/a.png\">"}},
					{"12": {"value": "no image markup here"}},
					{"12": {"value": "<IMG SRC='https://cdn.example.com/b.png' alt='x'>"}}
				]
			}`))
		}
	})

	details, err := client.MaterialDetails(context.Background(), "123")
	require.NoError(t, err)
	require.Equal(t, "4518", details.ComponentId)
	require.Equal(t, "3.25", details.Cost)
	require.Equal(t, "Acme", details.SupplierName)
	require.Equal(t, "AC-99", details.SupplierMaterialNo)
	require.Equal(t, []string{
		"https://cdn.example.com/a.png",
		"https://cdn.example.com/b.png",
	}, details.ImageUrls)
}

func TestMaterialDetailsDegradesOnFailure(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:quickbase")
	defer cleanup()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	details, err := client.MaterialDetails(context.Background(), "123")
	require.Error(t, err)
	require.Equal(t, MaterialDetails{}, details)
}

func TestMaterialDetailsNoData(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:quickbase")
	defer cleanup()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"fields": [], "data": []}`))
	})

	details, err := client.MaterialDetails(context.Background(), "456")
	require.NoError(t, err)
	require.Empty(t, details.ComponentId)
	require.Empty(t, details.ImageUrls)
}
