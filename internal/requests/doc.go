// Package requests routes named requests to their handlers and turns every
// outcome into a uniform (status, payload) response.
//
// A Dispatcher is built once from an ordered list of Handlers. Names are
// matched case-insensitively; when two handlers share a name the last one
// wins. Each call to ProcessRequest runs the selected handler exactly once in
// its own goroutine under a timeout scope derived from the dispatcher's
// configured duration.
//
// Outcome mapping:
//   - Handler returned a payload → 200, payload unchanged (may be absent)
//   - Blank or unknown request name → 400
//   - Handler error of KindClient (invalid / null argument) → 400
//   - Any other handler error or panic → 500
//   - Deadline elapsed before the handler finished → 500
//
// Every non-200 response carries a JSON object with a non-empty "message".
// A handler that ignores cancellation keeps running detached; the dispatcher
// only withdraws its own wait.
package requests
