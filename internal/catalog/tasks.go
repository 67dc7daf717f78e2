package catalog

// Supported input datasets.
const (
	DatasetSentinel2L2A    = "sentinel-2-l2a"
	DatasetSentinel2L2AARD = "sentinel-2-l2a-ard"
	DatasetSentinel1GRD    = "sentinel-1-grd"
	DatasetESALCCCIGLCM    = "esa-lccci-glcm"
	DatasetCorineLC        = "clms-corine-lc"
	DatasetWaterBodies     = "clms-water-bodies"
)

// Datasets lists every dataset a workflow may select.
var Datasets = []string{
	DatasetSentinel2L2A,
	DatasetSentinel2L2AARD,
	DatasetSentinel1GRD,
	DatasetESALCCCIGLCM,
	DatasetCorineLC,
	DatasetWaterBodies,
}

func queryInputs(extra map[string]FieldSchema) map[string]FieldSchema {
	inputs := map[string]FieldSchema{
		"area":            {Type: FieldPolygon, Required: true},
		"stac_collection": {Type: FieldString, Required: true, Constraints: []Constraint{{Op: OpMinLength, Value: 1}}},
		"date_start":      {Type: FieldDateTime},
		"date_end":        {Type: FieldDateTime},
		"limit": {Type: FieldNumber, Default: 10, Constraints: []Constraint{
			{Op: OpGE, Value: 1}, {Op: OpLE, Value: 100},
		}},
	}
	for k, v := range extra {
		inputs[k] = v
	}
	return inputs
}

func directoryResult() map[string]FieldSchema {
	return map[string]FieldSchema{
		"results": {Type: FieldDirectory, Required: true},
	}
}

func dataDirInputs(extra map[string]FieldSchema) map[string]FieldSchema {
	inputs := map[string]FieldSchema{
		"data_dir": {Type: FieldDirectory, Required: true},
	}
	for k, v := range extra {
		inputs[k] = v
	}
	return inputs
}

// EPSGOptions are the target projections accepted by the reproject task.
var EPSGOptions = []any{"EPSG:4326", "EPSG:3857", "EPSG:27700", "EPSG:32630"}

func cloudCoverField(def int) FieldSchema {
	return FieldSchema{
		Type:    FieldNumber,
		Default: def,
		Constraints: []Constraint{
			{Op: OpGE, Value: 0}, {Op: OpLE, Value: 100},
		},
	}
}

func spectralIndex(id, name string, datasets ...string) TaskDescriptor {
	return TaskDescriptor{
		Identifier:              id,
		Name:                    name,
		Category:                CategorySpectralIndices,
		Tags:                    []string{"raster", "index"},
		Visible:                 true,
		CompatibleInputDatasets: datasets,
		Inputs:                  dataDirInputs(nil),
		Outputs:                 directoryResult(),
		Resources:               ResourceHint{CPUMin: 1, CPUMax: 2, RAMMin: 1024, RAMMax: 4096},
	}
}

var s2Datasets = []string{DatasetSentinel2L2A, DatasetSentinel2L2AARD}

// descriptors is the full static task catalog.
var descriptors = []TaskDescriptor{
	{
		Identifier:              "s2-ds-query",
		Name:                    "Sentinel-2 Dataset Query",
		Category:                CategoryDataSelect,
		Tags:                    []string{"stac", "sentinel-2"},
		Visible:                 true,
		CompatibleInputDatasets: s2Datasets,
		Inputs: queryInputs(map[string]FieldSchema{
			"cloud_cover_min": cloudCoverField(0),
			"cloud_cover_max": cloudCoverField(100),
		}),
		Outputs:   directoryResult(),
		Resources: ResourceHint{CPUMin: 1, CPUMax: 2, RAMMin: 2048, RAMMax: 4096},
	},
	{
		Identifier:              "sentinel1-ds-query",
		Name:                    "Sentinel-1 GRD Dataset Query",
		Category:                CategoryDataSelect,
		Tags:                    []string{"stac", "sentinel-1"},
		Visible:                 true,
		CompatibleInputDatasets: []string{DatasetSentinel1GRD},
		Inputs:                  queryInputs(nil),
		Outputs:                 directoryResult(),
		Resources:               ResourceHint{CPUMin: 1, CPUMax: 2, RAMMin: 2048, RAMMax: 4096},
	},
	{
		Identifier:              "esacci-glc-ds-query",
		Name:                    "ESA CCI Global Land Cover Query",
		Category:                CategoryDataSelect,
		Tags:                    []string{"stac", "land-cover"},
		Visible:                 true,
		CompatibleInputDatasets: []string{DatasetESALCCCIGLCM},
		Inputs:                  queryInputs(nil),
		Outputs:                 directoryResult(),
		Resources:               ResourceHint{CPUMin: 1, CPUMax: 2, RAMMin: 2048, RAMMax: 4096},
	},
	{
		Identifier:              "corine-lc-ds-query",
		Name:                    "CORINE Land Cover Query",
		Category:                CategoryDataSelect,
		Tags:                    []string{"stac", "land-cover"},
		Visible:                 true,
		CompatibleInputDatasets: []string{DatasetCorineLC},
		Inputs:                  queryInputs(nil),
		Outputs:                 directoryResult(),
		Resources:               ResourceHint{CPUMin: 1, CPUMax: 2, RAMMin: 2048, RAMMax: 4096},
	},
	{
		Identifier:              "water-bodies-ds-query",
		Name:                    "CLMS Water Bodies Query",
		Category:                CategoryDataSelect,
		Tags:                    []string{"stac", "water"},
		Visible:                 true,
		CompatibleInputDatasets: []string{DatasetWaterBodies},
		Inputs:                  queryInputs(nil),
		Outputs:                 directoryResult(),
		Resources:               ResourceHint{CPUMin: 1, CPUMax: 2, RAMMin: 2048, RAMMax: 4096},
	},

	spectralIndex("ndvi", "Normalised Difference Vegetation Index", s2Datasets...),
	spectralIndex("evi", "Enhanced Vegetation Index", s2Datasets...),
	spectralIndex("savi", "Soil Adjusted Vegetation Index", s2Datasets...),
	spectralIndex("ndwi", "Normalised Difference Water Index", s2Datasets...),
	spectralIndex("cya", "Cyanobacteria Density", s2Datasets...),
	spectralIndex("doc", "Dissolved Organic Carbon", s2Datasets...),
	spectralIndex("cdom", "Coloured Dissolved Organic Matter", s2Datasets...),

	{
		Identifier:              "clip",
		Name:                    "Clip",
		Category:                CategoryRasterOps,
		Tags:                    []string{"raster"},
		Visible:                 true,
		CompatibleInputDatasets: Datasets,
		Inputs: dataDirInputs(map[string]FieldSchema{
			"aoi": {Type: FieldPolygon, Required: true},
		}),
		Outputs:   directoryResult(),
		Resources: ResourceHint{CPUMin: 1, CPUMax: 4, RAMMin: 2048, RAMMax: 8192},
	},
	{
		Identifier:              "reproject",
		Name:                    "Reproject",
		Category:                CategoryRasterOps,
		Tags:                    []string{"raster"},
		Visible:                 true,
		CompatibleInputDatasets: Datasets,
		Inputs: dataDirInputs(map[string]FieldSchema{
			"epsg": {Type: FieldString, Required: true, Default: "EPSG:4326", Options: EPSGOptions},
		}),
		Outputs:   directoryResult(),
		Resources: ResourceHint{CPUMin: 1, CPUMax: 4, RAMMin: 2048, RAMMax: 8192},
	},
	{
		Identifier:              "defra-calibrate",
		Name:                    "DEFRA Calibration",
		Category:                CategoryRasterOps,
		Tags:                    []string{"raster", "calibration"},
		Visible:                 false,
		CompatibleInputDatasets: s2Datasets,
		Inputs:                  dataDirInputs(nil),
		Outputs:                 directoryResult(),
		Resources:               ResourceHint{CPUMin: 1, CPUMax: 2, RAMMin: 2048, RAMMax: 4096},
	},
	{
		Identifier:              "water-quality",
		Name:                    "Water Quality",
		Category:                CategoryRasterOps,
		Tags:                    []string{"raster", "water"},
		Visible:                 true,
		CompatibleInputDatasets: s2Datasets,
		Inputs: dataDirInputs(map[string]FieldSchema{
			"calibrate": {Type: FieldBoolean, Default: false},
		}),
		Outputs:   directoryResult(),
		Resources: ResourceHint{CPUMin: 1, CPUMax: 4, RAMMin: 2048, RAMMax: 8192},
	},
	{
		Identifier:              "summarize-class-statistics",
		Name:                    "Summarise Class Statistics",
		Category:                CategoryStacOps,
		Tags:                    []string{"stac", "statistics"},
		Visible:                 true,
		CompatibleInputDatasets: []string{DatasetESALCCCIGLCM, DatasetCorineLC, DatasetWaterBodies},
		Inputs:                  dataDirInputs(nil),
		Outputs:                 directoryResult(),
		Resources:               ResourceHint{CPUMin: 1, CPUMax: 2, RAMMin: 1024, RAMMax: 2048},
	},
	{
		Identifier:              "stac-join",
		Name:                    "STAC Join",
		Category:                CategoryStacOps,
		Tags:                    []string{"stac"},
		Visible:                 true,
		CompatibleInputDatasets: Datasets,
		Inputs:                  dataDirInputs(nil),
		Outputs:                 directoryResult(),
		Resources:               ResourceHint{CPUMin: 1, CPUMax: 1, RAMMin: 1024, RAMMax: 2048},
	},
	{
		Identifier:              "thumbnail",
		Name:                    "Thumbnail",
		Category:                CategoryOther,
		Tags:                    []string{"visualisation"},
		Visible:                 true,
		CompatibleInputDatasets: Datasets,
		Inputs:                  dataDirInputs(nil),
		Outputs:                 directoryResult(),
		Resources:               ResourceHint{CPUMin: 1, CPUMax: 1, RAMMin: 1024, RAMMax: 1024},
	},
}
