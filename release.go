package overseer

// EntryPoint names the function the worker invokes after a release has been
// loaded, e.g. {Module: "myapp", Function: "start"}.
type EntryPoint struct {
	Module   string
	Function string
}

// ReleaseRef identifies the worker release artifact. URL determines the
// fetcher used by internal/release: "file://", "https://", or "s3://".
type ReleaseRef struct {
	URL        string
	EntryPoint EntryPoint
}
