// Package report renders run and history summaries as text, JSON or Markdown
// and maps them to the process exit code.
package report
