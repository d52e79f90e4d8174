package main

import (
	"errors"

	apperrors "github.com/odvcencio/autotap/pkg/errors"
)

const (
	exitCodeUsage   = 2
	exitCodeConfig  = 3
	exitCodeBrowser = 4
)

type exitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e exitError) Unwrap() error {
	return e.err
}

func (e exitError) ExitCode() int {
	if e.code == 0 {
		return 1
	}
	return e.code
}

func withExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return exitError{code: code, err: err}
}

func exitCodeForError(err error) int {
	if err == nil {
		return 0
	}
	var coded exitCoder
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeConfigLoad, apperrors.ErrCodeConfigParse, apperrors.ErrCodeConfigInvalid:
		return exitCodeConfig
	case apperrors.ErrCodeBrowserLaunch, apperrors.ErrCodeBrowserNavigate, apperrors.ErrCodeScriptInstall:
		return exitCodeBrowser
	}
	return 1
}
