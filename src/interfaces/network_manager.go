package interfaces

import "context"

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for HTTP requests used by the snapshot loader.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// Get performs exactly one GET request to the specified URL with parameters.
	// Returns the response body and status code, or a transport error.
	Get(ctx context.Context, url string, params map[string]string) ([]byte, int, error)
}
