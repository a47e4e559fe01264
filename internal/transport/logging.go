package transport

import (
	applog "github.com/Mattallmighty/audio-visualiser-sub001/internal/log"
)

// LoggingTransport implements Transport by logging frames at debug level.
// Useful when developing without a renderer attached.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: using logging transport")
	return &LoggingTransport{}
}

// Send logs the frame. It never fails.
func (lt *LoggingTransport) Send(data any) error {
	applog.Debugf("frame: %+v", data)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
