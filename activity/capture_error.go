package activity

// CaptureError wraps a function and captures any error to the status line.
// If the function returns an error, it's prefixed with ❌ and set as the
// current operation.
//
// Usage in units:
//
//	err := activity.CaptureError(env.Status, func() error {
//	    env.Status.Set("reading purchase orders")
//	    return r.read(path)
//	})
func CaptureError(statusLine *StatusLine, f func() error) error {
	err := f()
	if err != nil && statusLine != nil {
		statusLine.Set("❌ " + err.Error())
	}
	return err
}
