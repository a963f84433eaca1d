// Package config loads the pagewatch server configuration from a YAML file.
//
// Config fields:
//   - Server.HTTPPort: host server port (default 5000)
//   - Server.ContentRoot: base for relative directories (default ".")
//   - Server.StaticDir: static files served at "/" (default "wwwroot")
//   - Watch.Dir: directory watched recursively (default "Pages")
//   - Watch.Filter: filename suffix that triggers a reload (default ".cshtml")
//   - Watch.HubPath: WebSocket hub route (default "/razorpagenotifierhub")
//   - Watch.ScriptPath: browser client script route (default "/pagewatch.js")
//   - Log.*: level, format, optional rotated file
//   - Metrics.*: Prometheus endpoint toggle and path
//
// Load(path) applies defaults before unmarshalling, then validates. An empty
// path returns the defaults.
package config
