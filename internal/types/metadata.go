package types

// Metadata contains common media metadata for embedding into the output container.
type Metadata struct {
	Title       string
	Description string
	Date        string // YYYY
	Comment     string
}
