// Package project manages the registry of prompt projects.
//
// A project is a named file tree with free-form instructions. The Manager
// owns the ordered project list, the active project and the node selection
// of the active project.
//
// Every mutation clones the target project, applies the change, validates
// the result and swaps it in, so a failed call leaves the registry as it
// was. After each successful mutation the registry is written to the
// storage port under two keys:
//   - promptpack-projects: JSON array of projects
//   - promptpack-current-project: JSON string id of the active project
//
// Write failures are logged at warn level and counted; they are never
// returned to the caller.
package project
