package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eodatahub/action-creator/internal/catalog"
	"github.com/eodatahub/action-creator/pkg/api/dto"
	"github.com/eodatahub/action-creator/pkg/api/middleware"
)

// FunctionsHandler serves the task catalog and the preset workflows.
type FunctionsHandler struct {
	registry *catalog.Registry
}

// NewFunctionsHandler builds the catalog handler.
func NewFunctionsHandler(registry *catalog.Registry) *FunctionsHandler {
	return &FunctionsHandler{registry: registry}
}

// GetFunctions lists visible catalog entries, optionally filtered to a
// dataset.
func (h *FunctionsHandler) GetFunctions(c *gin.Context) {
	dataset := c.Query("dataset")
	if dataset != "" && !h.registry.KnownDataset(dataset) {
		middleware.AbortWithError(c, http.StatusUnprocessableEntity, []string{"query", "dataset"},
			"collection_not_supported_error", "dataset "+dataset+" is not supported")
		return
	}

	functions := h.registry.Functions(dataset)
	c.JSON(http.StatusOK, dto.FunctionsResponse{
		Functions: functions,
		Total:     len(functions),
	})
}

// presets are the canned starting-point workflows.
var presets = []dto.Preset{
	{
		Identifier:  "ndvi-mean",
		Name:        "Vegetation index over an area",
		Description: "Query Sentinel-2 imagery and compute NDVI for every scene.",
		Workflow: map[string]any{
			"functions": map[string]any{
				"query": map[string]any{
					"identifier": "s2-ds-query",
					"inputs": map[string]any{
						"area":            map[string]any{"$type": "ref", "value": []string{"inputs", "area"}},
						"stac_collection": map[string]any{"$type": "ref", "value": []string{"inputs", "dataset"}},
						"date_start":      map[string]any{"$type": "ref", "value": []string{"inputs", "date_start"}},
						"date_end":        map[string]any{"$type": "ref", "value": []string{"inputs", "date_end"}},
					},
					"outputs": map[string]any{
						"results": map[string]any{"name": "results", "type": "directory"},
					},
				},
				"ndvi": map[string]any{
					"identifier": "ndvi",
					"inputs": map[string]any{
						"data_dir": map[string]any{"$type": "ref", "value": []string{"functions", "query", "outputs", "results"}},
					},
					"outputs": map[string]any{
						"results": map[string]any{"$type": "ref", "value": []string{"outputs", "results"}},
					},
				},
			},
			"outputs": map[string]any{
				"results": map[string]any{"name": "results", "type": "directory"},
			},
		},
	},
	{
		Identifier:  "land-cover-change",
		Name:        "Land cover class statistics",
		Description: "Query CORINE land cover and summarize class statistics over time.",
		Workflow: map[string]any{
			"functions": map[string]any{
				"query": map[string]any{
					"identifier": "corine-lc-ds-query",
					"inputs": map[string]any{
						"area":            map[string]any{"$type": "ref", "value": []string{"inputs", "area"}},
						"stac_collection": map[string]any{"$type": "ref", "value": []string{"inputs", "dataset"}},
					},
					"outputs": map[string]any{
						"results": map[string]any{"name": "results", "type": "directory"},
					},
				},
				"summarize": map[string]any{
					"identifier": "summarize-class-statistics",
					"inputs": map[string]any{
						"data_dir": map[string]any{"$type": "ref", "value": []string{"functions", "query", "outputs", "results"}},
					},
					"outputs": map[string]any{
						"results": map[string]any{"$type": "ref", "value": []string{"outputs", "results"}},
					},
				},
			},
			"outputs": map[string]any{
				"results": map[string]any{"name": "results", "type": "directory"},
			},
		},
	},
}

// GetPresets lists the static preset workflows.
func (h *FunctionsHandler) GetPresets(c *gin.Context) {
	c.JSON(http.StatusOK, dto.PresetsResponse{
		Presets: presets,
		Total:   len(presets),
	})
}
