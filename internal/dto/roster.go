package dto

// UpdateGradeRequest sets a single composition grade.
type UpdateGradeRequest struct {
	Value string `json:"value" validate:"required"`
}

// UploadResult summarizes a spreadsheet import.
type UploadResult struct {
	Rows          int `json:"rows"`
	Upserted      int `json:"upserted"`
	Skipped       int `json:"skipped"`
	TotalsChanged int `json:"totals_changed"`
}

// ExportFormat selects the gradebook export renderer.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportFile is a rendered gradebook ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
