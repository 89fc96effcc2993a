package browser

import "context"

// Driver is one browser session. Implementations are not safe for
// concurrent use; a Session calls them sequentially.
type Driver interface {
	// Navigate loads pageURL and waits for the document to be ready.
	Navigate(ctx context.Context, pageURL string) error

	// Location returns the URL of the current document.
	Location(ctx context.Context) (string, error)

	// HTML returns the serialized current document.
	HTML(ctx context.Context) (string, error)

	// Anchors lists the a[href] elements of the current document in order.
	// Href is the raw attribute value.
	Anchors(ctx context.Context) ([]Anchor, error)

	// Click performs a native click on the anchor matching fp.
	Click(ctx context.Context, fp Fingerprint) error

	// ClickAlternate scrolls the anchor into view and clicks it from the DOM.
	ClickAlternate(ctx context.Context, fp Fingerprint) error

	// Close releases the browser.
	Close() error
}

// Launcher starts a new Driver.
type Launcher interface {
	Launch(ctx context.Context) (Driver, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context) (Driver, error)

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context) (Driver, error) {
	return f(ctx)
}
