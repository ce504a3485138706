package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ReadJSON drains and closes the response body, decoding it into v.
// A non-2xx status is reported as an error that includes the status code.
func ReadJSON(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}
