package metric

// Label names shared by connector pipeline metrics. Every domain metric
// carries a category and operation as constant labels; traffic and latency
// vectors additionally carry the event hub partition as a variable label.
const (
	LabelPartition = "partition"
	LabelCategory  = "category"
	LabelOperation = "operation"
	LabelErrorType = "error_type"
	LabelStage     = "stage"
)

// Metric categories.
const (
	CategoryTraffic = "traffic"
	CategoryLatency = "latency"
	CategoryErrors  = "errors"
)

// Connector operations. Normalization covers template matching and
// extraction; FHIRConversion covers the downstream measurement import path
// fed by the sink.
const (
	OperationNormalization  = "normalization"
	OperationFHIRConversion = "fhir_conversion"
)
