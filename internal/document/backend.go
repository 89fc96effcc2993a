package document

import "context"

// Backend extracts the text of one document stored at path.
type Backend interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, path string) (string, error)

// ExtractText calls f.
func (f BackendFunc) ExtractText(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// defaultBackends maps extensions to the built-in backends.
func defaultBackends() map[string]Backend {
	return map[string]Backend{
		".pdf":  BackendFunc(extractPDF),
		".docx": BackendFunc(extractDOCX),
		".doc":  NewAntiwordBackend(DefaultAntiwordCommand),
	}
}
