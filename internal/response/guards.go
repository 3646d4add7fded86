package response

import "github.com/goccy/go-json"

// Decode unmarshals a response body into generic JSON values for the guards below.
// Invalid JSON decodes to nil.
func Decode(body []byte) any {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil
	}
	return v
}

// IsSuccessResponse reports whether v is a decoded success envelope:
// an object with success == true and a data key.
func IsSuccessResponse(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	success, ok := obj["success"].(bool)
	if !ok || !success {
		return false
	}
	_, hasData := obj["data"]
	return hasData
}

// IsPaginatedResponse reports whether v is a decoded success envelope with a
// pagination object.
func IsPaginatedResponse(v any) bool {
	if !IsSuccessResponse(v) {
		return false
	}
	_, ok := v.(map[string]any)["pagination"].(map[string]any)
	return ok
}
