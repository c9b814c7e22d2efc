package driven

// ResultWriter exports the results table.
type ResultWriter interface {
	// Write stores the table at path, creating parent directories as needed.
	Write(path string, columns []string, rows []map[string]string) error

	// Extension is the file extension written, including the dot.
	Extension() string
}
