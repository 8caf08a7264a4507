//go:build !cgo

package main

import (
	"sharecast/pkg/config"

	"github.com/pion/mediadevices"
)

// newCodecSelector has no encoders without cgo. Capture and mixing then fail
// with a device error and the control API reports it.
func newCodecSelector(cfg *config.Config) (*mediadevices.CodecSelector, error) {
	return nil, nil
}
