//go:build tools

// Package tools pins code generators run through go:generate so go mod tidy keeps them
package tools

import (
	_ "github.com/swaggo/swag/v2/cmd/swag"
)
