// Package pagescripts holds the JS function expressions evaluated in-page
// through TabController.RunInPage.
package pagescripts

import (
	_ "embed"
)

//go:embed page_content.js
var PageContent string

//go:embed extract_data.js
var ExtractData string

//go:embed execute_action.js
var ExecuteAction string
