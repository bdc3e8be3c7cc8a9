package appfs

import "embed"

// FS holds the static assets (email templates, password lists) and the SQL migrations.
//
//go:embed all:assets migrations
var FS embed.FS
