package autoclick

import (
	_ "embed"

	"github.com/odvcencio/autotap/pkg/browser"
)

//go:embed js/autoclick.js
var pageScriptSource string

// PageScript returns the user script that defines the page-side click
// function. It must be installed before the first navigation.
func PageScript() browser.UserScript {
	return browser.UserScript{
		Source:        pageScriptSource,
		InjectAt:      browser.InjectAtDocumentEnd,
		MainFrameOnly: true,
	}
}
