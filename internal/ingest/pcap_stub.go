//go:build !pcap
// +build !pcap

package ingest

import (
	"context"
	"errors"
)

// ErrPCAPDisabled is returned by ReplayPCAP in builds without the pcap tag.
var ErrPCAPDisabled = errors.New("PCAP support not enabled: rebuild with -tags=pcap")

// ReplayPCAP is unavailable without the pcap build tag.
func (l *Loop) ReplayPCAP(ctx context.Context, path string, port int) error {
	return ErrPCAPDisabled
}
