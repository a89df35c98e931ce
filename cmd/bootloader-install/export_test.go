package main

import (
	"io"
	"os"

	"github.com/osbuild/bootloader/pkg/runner"
)

var Run = run

func MockOsArgs(new []string) (restore func()) {
	saved := os.Args
	os.Args = append([]string{"argv0"}, new...)
	return func() {
		os.Args = saved
	}
}

func MockOsStdout(new io.Writer) (restore func()) {
	saved := osStdout
	osStdout = new
	return func() {
		osStdout = saved
	}
}

func MockNewRunner(r runner.Runner) (restore func()) {
	saved := newRunner
	newRunner = func() runner.Runner {
		return r
	}
	return func() {
		newRunner = saved
	}
}
