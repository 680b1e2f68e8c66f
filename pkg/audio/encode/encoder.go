// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for block encoders
package encode

import "github.com/Resonate-Protocol/headunit-go/pkg/audio"

// Encoder encodes normalized output blocks
type Encoder interface {
	// Encode converts one block to encoded bytes
	Encode(block audio.Block) ([]byte, error)

	// Close releases encoder resources
	Close() error
}
