package spine

import "fmt"

// AssetError reports a failed skeleton or atlas load. Path names the offending
// file and Stage the parse phase that rejected it, so broken exports can be
// traced without re-running the loader under a debugger.
type AssetError struct {
	Path  string
	Stage string
	Err   error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset %s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }

func assetErr(path, stage string, err error) error {
	return &AssetError{Path: path, Stage: stage, Err: err}
}

func assetErrf(path, stage, format string, args ...any) error {
	return &AssetError{Path: path, Stage: stage, Err: fmt.Errorf(format, args...)}
}
