package upstream

import "net/http"

// mergeExecutionHeaders computes the final header set sent with an
// execution call: stripped incoming request headers as the base, static
// domain headers layered on top, and hook-supplied extra headers layered
// last, each later source overriding the same key in an earlier one.
func mergeExecutionHeaders(incoming http.Header, static map[string]string, extra map[string]string) http.Header {
	result := stripHopByHop(incoming)
	if result == nil {
		result = http.Header{}
	}
	for k, v := range static {
		result.Set(k, v)
	}
	for k, v := range extra {
		result.Set(k, v)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
