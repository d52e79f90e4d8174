package browser

import "strings"

// WrapUserScript turns a UserScript into source suitable for a
// "run on every new document" hook. DevTools evaluates such hooks in every
// frame before the document is parsed, so the wrapper enforces the main-frame
// restriction and defers document-end scripts to DOMContentLoaded.
//
// The source runs inside a function body; anything it wants to expose must be
// assigned to window explicitly.
func WrapUserScript(script UserScript) string {
	var b strings.Builder
	b.WriteString("(function () {\n")
	if script.MainFrameOnly {
		b.WriteString("  if (window.top !== window) { return; }\n")
	}
	b.WriteString("  var install = function () {\n")
	b.WriteString(script.Source)
	if !strings.HasSuffix(script.Source, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("  };\n")
	switch script.InjectAt {
	case InjectAtDocumentEnd:
		b.WriteString("  if (document.readyState === 'loading') {\n")
		b.WriteString("    document.addEventListener('DOMContentLoaded', install, { once: true });\n")
		b.WriteString("  } else {\n")
		b.WriteString("    install();\n")
		b.WriteString("  }\n")
	default:
		b.WriteString("  install();\n")
	}
	b.WriteString("})();\n")
	return b.String()
}
