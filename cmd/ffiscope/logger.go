package main

import (
	"go.uber.org/zap"

	"github.com/wippyai/ffi-runtime/callback"
	"github.com/wippyai/ffi-runtime/connection"
	"github.com/wippyai/ffi-runtime/foreign"
	"github.com/wippyai/ffi-runtime/wrap"
)

var log = zap.NewNop()

func logger() *zap.Logger { return log }

// setupLogging routes every package logger to a development logger.
func setupLogging(verbose bool) error {
	if !verbose {
		return nil
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	log = l
	wrap.SetLogger(l.Named("wrap"))
	callback.SetLogger(l.Named("callback"))
	connection.SetLogger(l.Named("connection"))
	foreign.SetLogger(l.Named("foreign"))
	return nil
}
