//go:build tools

package tools

// Build-time tool dependencies, kept out of the binaries.
import (
	_ "github.com/swaggo/swag"
)
